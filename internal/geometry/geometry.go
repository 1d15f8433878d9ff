// Package geometry holds the box math shared by detection decoding and face handling.
package geometry

import (
	"image"
	"math"
)

// Rect is an axis-aligned box in pixel space.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// FromCorners builds a Rect from [x1, y1, x2, y2] corner coordinates.
func FromCorners(x1, y1, x2, y2 float64) Rect {
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Corners returns the box as [x1, y1, x2, y2].
func (r Rect) Corners() []float64 {
	return []float64{r.X, r.Y, r.X + r.W, r.Y + r.H}
}

// Empty reports whether the box covers no pixels.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// IoU calculates Intersection over Union between two boxes.
func IoU(a, b Rect) float64 {
	return ComputeIoU(a.Corners(), b.Corners())
}

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// FromCenter maps a center/size box given in model input space onto the original image.
// Model coordinates are scaled by original/model ratios and the corners are clamped to
// [0, imgW] x [0, imgH].
func FromCenter(cx, cy, w, h float64, modelW, modelH, imgW, imgH int) Rect {
	if modelW <= 0 || modelH <= 0 {
		return Rect{}
	}
	scaleX := float64(imgW) / float64(modelW)
	scaleY := float64(imgH) / float64(modelH)

	x1 := clamp((cx-w/2)*scaleX, 0, float64(imgW))
	y1 := clamp((cy-h/2)*scaleY, 0, float64(imgH))
	x2 := clamp((cx+w/2)*scaleX, 0, float64(imgW))
	y2 := clamp((cy+h/2)*scaleY, 0, float64(imgH))

	return FromCorners(x1, y1, x2, y2)
}

// Relative converts a pixel box to relative (0-1) coordinates.
// The box is returned unchanged when the dimensions are not positive.
func (r Rect) Relative(width, height int) Rect {
	if width <= 0 || height <= 0 {
		return r
	}
	return Rect{
		X: r.X / float64(width),
		Y: r.Y / float64(height),
		W: r.W / float64(width),
		H: r.H / float64(height),
	}
}

// ImageRect returns the integer pixel rectangle covering the box, limited to bounds.
func (r Rect) ImageRect(bounds image.Rectangle) image.Rectangle {
	rect := image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.W)),
		int(math.Ceil(r.Y+r.H)),
	).Add(bounds.Min)
	return rect.Intersect(bounds)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
