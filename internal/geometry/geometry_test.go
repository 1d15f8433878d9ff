package geometry

import (
	"image"
	"math"
	"testing"
)

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		bbox1    []float64
		bbox2    []float64
		expected float64
	}{
		{
			name:     "identical boxes",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{20, 20, 30, 30},
			expected: 0.0,
		},
		{
			name:     "touching edges",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{10, 0, 20, 10},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{5, 5, 15, 15},
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			bbox1:    []float64{0, 0, 20, 20},
			bbox2:    []float64{5, 5, 15, 15},
			expected: 100.0 / 400.0,
		},
		{
			name:     "invalid bbox1",
			bbox1:    []float64{0, 0, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 0.0,
		},
		{
			name:     "empty bboxes",
			bbox1:    []float64{},
			bbox2:    []float64{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.bbox1, tt.bbox2)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.bbox1, tt.bbox2, result, tt.expected)
			}
		})
	}
}

func TestIoUSymmetric(t *testing.T) {
	boxes := []Rect{
		{X: 0, Y: 0, W: 10, H: 10},
		{X: 5, Y: 5, W: 10, H: 10},
		{X: 3, Y: 1, W: 4, H: 20},
		{X: 100, Y: 100, W: 1, H: 1},
		{X: 2.5, Y: 7.25, W: 13.5, H: 0.75},
	}
	for _, a := range boxes {
		for _, b := range boxes {
			if IoU(a, b) != IoU(b, a) {
				t.Errorf("IoU(%v, %v) = %v, IoU(%v, %v) = %v", a, b, IoU(a, b), b, a, IoU(b, a))
			}
		}
	}
}

func TestFromCenter(t *testing.T) {
	tests := []struct {
		name           string
		cx, cy, w, h   float64
		modelW, modelH int
		imgW, imgH     int
		expected       Rect
	}{
		{
			name: "scales to original size",
			cx:   320, cy: 320, w: 64, h: 128,
			modelW: 640, modelH: 640,
			imgW: 1280, imgH: 960,
			expected: Rect{X: 576, Y: 384, W: 128, H: 192},
		},
		{
			name: "clamps to top left",
			cx:   10, cy: 10, w: 40, h: 40,
			modelW: 100, modelH: 100,
			imgW: 100, imgH: 100,
			expected: Rect{X: 0, Y: 0, W: 30, H: 30},
		},
		{
			name: "clamps to bottom right",
			cx:   95, cy: 90, w: 20, h: 40,
			modelW: 100, modelH: 100,
			imgW: 200, imgH: 100,
			expected: Rect{X: 170, Y: 70, W: 30, H: 30},
		},
		{
			name: "invalid model size",
			cx:   1, cy: 1, w: 1, h: 1,
			modelW: 0, modelH: 100,
			imgW: 100, imgH: 100,
			expected: Rect{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromCenter(tt.cx, tt.cy, tt.w, tt.h, tt.modelW, tt.modelH, tt.imgW, tt.imgH)
			if got != tt.expected {
				t.Errorf("FromCenter() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRelative(t *testing.T) {
	r := Rect{X: 100, Y: 200, W: 300, H: 400}
	got := r.Relative(1000, 1000)
	want := Rect{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}
	if got != want {
		t.Errorf("Relative() = %v, want %v", got, want)
	}

	if got := r.Relative(0, 100); got != r {
		t.Errorf("Relative(0, 100) = %v, want unchanged %v", got, r)
	}
}

func TestImageRect(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)
	tests := []struct {
		name     string
		rect     Rect
		expected image.Rectangle
	}{
		{"inside", Rect{X: 10.2, Y: 5.7, W: 20.1, H: 10}, image.Rect(10, 5, 31, 16)},
		{"clipped", Rect{X: 90, Y: 40, W: 30, H: 30}, image.Rect(90, 40, 100, 50)},
		{"outside", Rect{X: 200, Y: 200, W: 5, H: 5}, image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rect.ImageRect(bounds)
			if got != tt.expected {
				t.Errorf("ImageRect(%v) = %v, want %v", tt.rect, got, tt.expected)
			}
		})
	}
}
