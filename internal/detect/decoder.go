// Package detect turns raw detector output into labeled pixel-space boxes.
package detect

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kozaktomas/photo-gallery/internal/geometry"
)

// RawTensor is the decoder input: one box row and one score row per candidate.
// Boxes are center x, center y, width, height in model input coordinates.
type RawTensor struct {
	InputWidth  int          `json:"input_width"`
	InputHeight int          `json:"input_height"`
	Boxes       [][4]float32 `json:"boxes"`
	Scores      [][]float32  `json:"scores"`
}

// Box is a decoded detection in original image pixels.
type Box struct {
	geometry.Rect
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Thresholds controls candidate filtering and suppression.
type Thresholds struct {
	Confidence    float64 // minimum class score to keep a candidate
	IoU           float64 // same-label boxes at or above this overlap are suppressed
	MaxDetections int     // 0 = unlimited
}

// Decoder maps detector output onto a label table.
type Decoder struct {
	labels []string
}

// NewDecoder creates a decoder for the given label table.
func NewDecoder(labels []string) *Decoder {
	return &Decoder{labels: labels}
}

// Label returns the label for a class id, UnknownLabel when out of range.
func (d *Decoder) Label(classID int) string {
	if classID >= 0 && classID < len(d.labels) {
		return d.labels[classID]
	}
	return UnknownLabel
}

// Decode thresholds candidates, maps them to pixel space and runs class-wise NMS.
// Malformed input yields an empty result.
func (d *Decoder) Decode(raw *RawTensor, imgW, imgH int, th Thresholds) []Box {
	if raw == nil || raw.InputWidth <= 0 || raw.InputHeight <= 0 || imgW <= 0 || imgH <= 0 {
		return []Box{}
	}
	if len(raw.Boxes) != len(raw.Scores) {
		return []Box{}
	}

	candidates := make([]Box, 0, len(raw.Scores))
	for i, scores := range raw.Scores {
		classID, score := argmax(scores)
		if classID < 0 || score < th.Confidence {
			continue
		}

		b := raw.Boxes[i]
		rect := geometry.FromCenter(
			float64(b[0]), float64(b[1]), float64(b[2]), float64(b[3]),
			raw.InputWidth, raw.InputHeight, imgW, imgH,
		)
		if rect.Empty() {
			continue
		}

		candidates = append(candidates, Box{
			Rect:       rect,
			ClassID:    classID,
			Label:      d.Label(classID),
			Confidence: score,
		})
	}

	kept := NMS(candidates, th.IoU)
	if th.MaxDetections > 0 && len(kept) > th.MaxDetections {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Confidence > kept[j].Confidence
		})
		kept = kept[:th.MaxDetections]
	}
	return kept
}

// NMS runs greedy non-maximum suppression independently per label.
// Labels are visited in order of first appearance, boxes within a label by descending
// confidence. A box is dropped when its IoU with an already kept box of the same label
// reaches iouThreshold.
func NMS(boxes []Box, iouThreshold float64) []Box {
	var order []string
	groups := make(map[string][]Box)
	for _, b := range boxes {
		if _, ok := groups[b.Label]; !ok {
			order = append(order, b.Label)
		}
		groups[b.Label] = append(groups[b.Label], b)
	}

	result := make([]Box, 0, len(boxes))
	for _, label := range order {
		group := groups[label]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Confidence > group[j].Confidence
		})

		for len(group) > 0 {
			top := group[0]
			result = append(result, top)

			remaining := make([]Box, 0, len(group)-1)
			for _, c := range group[1:] {
				if geometry.IoU(top.Rect, c.Rect) < iouThreshold {
					remaining = append(remaining, c)
				}
			}
			group = remaining
		}
	}
	return result
}

// argmax returns the best class and its score, -1 when no finite score exists.
func argmax(scores []float32) (int, float64) {
	best := -1
	bestScore := math.Inf(-1)
	for i, s := range scores {
		v := float64(s)
		if math.IsNaN(v) {
			continue
		}
		if v > bestScore {
			best = i
			bestScore = v
		}
	}
	return best, bestScore
}

// FromChannelMajor converts a (4+numClasses) x numCandidates channel-major output, as
// produced by YOLOv8 style heads, into a RawTensor.
func FromChannelMajor(data []float32, numClasses, numCandidates, inputW, inputH int) (*RawTensor, error) {
	if numClasses <= 0 || numCandidates <= 0 {
		return nil, errors.New("class and candidate counts must be positive")
	}
	if want := (4 + numClasses) * numCandidates; len(data) != want {
		return nil, fmt.Errorf("tensor has %d values, want %d", len(data), want)
	}

	at := func(channel, candidate int) float32 {
		return data[channel*numCandidates+candidate]
	}

	raw := &RawTensor{
		InputWidth:  inputW,
		InputHeight: inputH,
		Boxes:       make([][4]float32, numCandidates),
		Scores:      make([][]float32, numCandidates),
	}
	for i := range numCandidates {
		raw.Boxes[i] = [4]float32{at(0, i), at(1, i), at(2, i), at(3, i)}
		scores := make([]float32, numClasses)
		for c := range numClasses {
			scores[c] = at(4+c, i)
		}
		raw.Scores[i] = scores
	}
	return raw, nil
}
