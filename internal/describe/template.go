package describe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kozaktomas/photo-gallery/internal/detect"
)

var irregularPlurals = map[string]string{
	"person":   "people",
	"mouse":    "mice",
	"knife":    "knives",
	"sheep":    "sheep",
	"skis":     "skis",
	"scissors": "scissors",
}

type labelCount struct {
	label string
	count int
}

// Labels returns the distinct labels of boxes in first-appearance order.
func Labels(boxes []detect.Box) []string {
	seen := make(map[string]bool, len(boxes))
	var labels []string
	for _, b := range boxes {
		if !seen[b.Label] {
			seen[b.Label] = true
			labels = append(labels, b.Label)
		}
	}
	return labels
}

// Basic builds a templated description such as "This image contains 2 dogs and a cat.".
// Labels are listed by descending count, ties in first-appearance order.
func Basic(boxes []detect.Box) string {
	if len(boxes) == 0 {
		return EmptyDescription
	}

	counts := make(map[string]int)
	for _, b := range boxes {
		counts[b.Label]++
	}
	groups := make([]labelCount, 0, len(counts))
	for _, label := range Labels(boxes) {
		groups = append(groups, labelCount{label: label, count: counts[label]})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].count > groups[j].count
	})

	var b strings.Builder
	b.WriteString("This image contains ")
	for i, g := range groups {
		if i > 0 {
			if i == len(groups)-1 {
				b.WriteString(" and ")
			} else {
				b.WriteString(", ")
			}
		}
		if g.count > 1 {
			fmt.Fprintf(&b, "%d %s", g.count, plural(g.label))
		} else {
			fmt.Fprintf(&b, "%s %s", article(g.label), g.label)
		}
	}
	b.WriteString(".")
	return b.String()
}

func article(label string) string {
	if label != "" && strings.ContainsRune("aeiou", rune(strings.ToLower(label)[0])) {
		return "an"
	}
	return "a"
}

func plural(label string) string {
	if p, ok := irregularPlurals[label]; ok {
		return p
	}
	for _, suffix := range []string{"s", "x", "ch", "sh"} {
		if strings.HasSuffix(label, suffix) {
			return label + "es"
		}
	}
	return label + "s"
}
