// Package query turns loosely structured search text into a Predicate.
package query

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kozaktomas/photo-gallery/internal/detect"
)

// Predicate is the parsed form of a search query.
type Predicate struct {
	People     []string // names that must (RequireAll) or may appear
	RequireAll bool
	Excluded   []string // names whose images are removed from the result
	Tags       []string // object label terms, also required of People matches when both are set
	Keywords   []string // fallback bag when no pattern matched
}

// Empty reports whether the predicate selects nothing at all.
func (p Predicate) Empty() bool {
	return len(p.People) == 0 && len(p.Excluded) == 0 && len(p.Tags) == 0 && len(p.Keywords) == 0
}

// Fallback reports whether only the keyword bag is set.
func (p Predicate) Fallback() bool {
	return len(p.People) == 0 && len(p.Excluded) == 0 && len(p.Tags) == 0 && len(p.Keywords) > 0
}

// peopleMatch is what a people matcher extracts. tags carries an object phrase that
// shared the clause with the names ("where tina is with a dog").
type peopleMatch struct {
	names      []string
	requireAll bool
	tags       []string
}

type peopleMatcher func(head string) (peopleMatch, bool)

type termMatcher func(text string) (terms []string, ok bool)

const trailer = `(?:\s+(?:in it|in them|together))?$`

var (
	// "where X is with Y"
	coOccurrenceRe = regexp.MustCompile(`\bwhere\s+(.+?)\s+(?:is|are)\s+with\s+(.+?)` + trailer)
	// "where X is ..." / "where X and Y are ..."
	whereRe = regexp.MustCompile(`\bwhere\s+(.+?)\s+(?:is|are)\b`)
	// "find [me] [all] images with X [in it]"
	withRe = regexp.MustCompile(`\b(?:find|show|get)(?:\s+me)?(?:\s+all)?\s+(?:images?|photos?|pictures?|pics?)\s+with\s+(.+?)` + trailer)

	exclusionStartRe = regexp.MustCompile(`\s+(?:but\s+not|without|excluding)\b`)
	butNotRe         = regexp.MustCompile(`\bbut\s+not\s+(?:with\s+)?(.+?)` + trailer)
	withoutRe        = regexp.MustCompile(`\bwithout\s+(.+?)` + trailer)
	excludingRe      = regexp.MustCompile(`\bexcluding\s+(.+?)` + trailer)

	objectRe    = regexp.MustCompile(`\b(?:with|containing|of)\s+(?:(?:a|an|the)\s+)?(.+?)(?:\s+in (?:it|them))?$`)
	searchForRe = regexp.MustCompile(`\bsearch\s+for\s+(.+?)$`)

	splitRe = regexp.MustCompile(`\s+and\s+|\s*,\s*`)
)

var peopleMatchers = []peopleMatcher{
	func(head string) (peopleMatch, bool) {
		m := coOccurrenceRe.FindStringSubmatch(head)
		if m == nil {
			return peopleMatch{}, false
		}
		left, right := m[1], m[2]
		if isObjectPhrase(left) {
			left, right = right, left
		}
		if isObjectPhrase(left) {
			return peopleMatch{}, false
		}
		if isObjectPhrase(right) {
			names := splitTerms(left)
			return peopleMatch{names: names, requireAll: hasConnective(left), tags: tagTerms(right)}, len(names) > 0
		}
		names := append(splitTerms(left), splitTerms(right)...)
		return peopleMatch{names: names, requireAll: true}, len(names) > 0
	},
	captureMatcher(whereRe),
	captureMatcher(withRe),
}

var exclusionMatchers = []termMatcher{
	regexMatcher(butNotRe),
	regexMatcher(withoutRe),
	regexMatcher(excludingRe),
}

var tagMatchers = []termMatcher{
	func(head string) ([]string, bool) {
		m := objectRe.FindStringSubmatch(head)
		if m == nil {
			return nil, false
		}
		terms := tagTerms(m[1])
		return terms, len(terms) > 0
	},
	func(head string) ([]string, bool) {
		m := searchForRe.FindStringSubmatch(head)
		if m == nil {
			return nil, false
		}
		terms := tagTerms(m[1])
		return terms, len(terms) > 0
	},
}

func captureMatcher(re *regexp.Regexp) peopleMatcher {
	return func(head string) (peopleMatch, bool) {
		m := re.FindStringSubmatch(head)
		if m == nil || isObjectPhrase(m[1]) {
			return peopleMatch{}, false
		}
		names := splitTerms(m[1])
		return peopleMatch{names: names, requireAll: hasConnective(m[1])}, len(names) > 0
	}
}

func regexMatcher(re *regexp.Regexp) termMatcher {
	return func(text string) ([]string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return nil, false
		}
		terms := splitTerms(m[1])
		return terms, len(terms) > 0
	}
}

// Parse converts search text into a Predicate. People patterns are tried first,
// exclusions always, object patterns only when no people pattern matched, and the
// keyword bag only when nothing matched at all.
func Parse(text string) Predicate {
	text = normalize(text)
	var p Predicate
	if text == "" {
		return p
	}

	// people and object captures never extend into the exclusion clause
	head := text
	if loc := exclusionStartRe.FindStringIndex(text); loc != nil {
		head = text[:loc[0]]
	}

	for _, match := range peopleMatchers {
		if pm, ok := match(head); ok {
			p.People, p.RequireAll, p.Tags = pm.names, pm.requireAll, pm.tags
			break
		}
	}

	for _, match := range exclusionMatchers {
		if names, ok := match(text); ok {
			p.Excluded = names
			break
		}
	}

	if len(p.People) == 0 {
		for _, match := range tagMatchers {
			if terms, ok := match(head); ok {
				p.Tags = terms
				break
			}
		}
	}

	if len(p.People) == 0 && len(p.Excluded) == 0 && len(p.Tags) == 0 {
		p.Keywords = Keywords(text)
	}
	return p
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func hasConnective(s string) bool {
	return strings.Contains(s, " and ") || strings.Contains(s, ",")
}

func splitTerms(s string) []string {
	var out []string
	for _, part := range splitRe.Split(s, -1) {
		part = strings.Trim(part, " .!?;:\"'")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

var articles = []string{"a ", "an ", "the "}

func startsWithArticle(s string) bool {
	for _, a := range articles {
		if strings.HasPrefix(s, a) {
			return true
		}
	}
	return false
}

func stripArticles(terms []string) []string {
	out := terms[:0]
	for _, t := range terms {
		for startsWithArticle(t) {
			t = t[strings.IndexByte(t, ' ')+1:]
		}
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// tagTerms splits an object phrase into terms, drops articles and maps plural
// detector labels to their singular form ("dogs" -> "dog").
func tagTerms(phrase string) []string {
	terms := stripArticles(splitTerms(phrase))
	for i, t := range terms {
		if label, ok := objectLabel(t); ok {
			terms[i] = label
		}
	}
	return terms
}

var objectLabels = func() map[string]struct{} {
	set := make(map[string]struct{}, len(detect.COCOLabels))
	for _, l := range detect.COCOLabels {
		set[strings.ToLower(l)] = struct{}{}
	}
	return set
}()

// objectLabel resolves a term, possibly plural, to the detector label it names.
func objectLabel(term string) (string, bool) {
	for _, candidate := range []string{term, strings.TrimSuffix(term, "s"), strings.TrimSuffix(term, "es")} {
		if _, ok := objectLabels[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

// isObjectPhrase reports whether a people capture actually names objects: it starts
// with an article or every term is a detector label ("dogs and cats").
func isObjectPhrase(capture string) bool {
	if startsWithArticle(capture) {
		return true
	}
	terms := splitTerms(capture)
	if len(terms) == 0 {
		return false
	}
	for _, t := range terms {
		if _, ok := objectLabel(t); !ok {
			return false
		}
	}
	return true
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`find all images with in it where is are a an the
		picture pictures photo photos pic pics image show me
		and or of to my get together containing some any who that there them they
		he she his her their for search on at by but not without excluding`) {
		stopwords[w] = struct{}{}
	}
}

// Keywords extracts the fallback keyword bag: lowercased tokens split on whitespace
// and punctuation, without stopwords and single-character tokens.
func Keywords(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	var out []string
	for _, t := range tokens {
		t = strings.Trim(t, "-")
		if len([]rune(t)) <= 1 {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}
