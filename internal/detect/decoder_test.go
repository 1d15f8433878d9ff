package detect

import (
	"reflect"
	"testing"

	"github.com/kozaktomas/photo-gallery/internal/geometry"
)

func box(x, y, w, h float64, label string, conf float64) Box {
	return Box{Rect: geometry.Rect{X: x, Y: y, W: w, H: h}, Label: label, Confidence: conf}
}

func TestNMS(t *testing.T) {
	tests := []struct {
		name      string
		boxes     []Box
		threshold float64
		expected  []Box
	}{
		{
			name: "identical boxes keep higher confidence",
			boxes: []Box{
				box(0, 0, 10, 10, "dog", 0.8),
				box(0, 0, 10, 10, "dog", 0.9),
			},
			threshold: 0.5,
			expected:  []Box{box(0, 0, 10, 10, "dog", 0.9)},
		},
		{
			name: "overlap equal to threshold is suppressed",
			boxes: []Box{
				box(0, 0, 10, 10, "dog", 0.9),
				box(0, 0, 10, 5, "dog", 0.7), // IoU = 50/100
			},
			threshold: 0.5,
			expected:  []Box{box(0, 0, 10, 10, "dog", 0.9)},
		},
		{
			name: "overlap below threshold keeps both",
			boxes: []Box{
				box(0, 0, 10, 10, "dog", 0.9),
				box(0, 0, 10, 4, "dog", 0.7), // IoU = 40/100
			},
			threshold: 0.5,
			expected: []Box{
				box(0, 0, 10, 10, "dog", 0.9),
				box(0, 0, 10, 4, "dog", 0.7),
			},
		},
		{
			name: "different labels never suppress each other",
			boxes: []Box{
				box(0, 0, 10, 10, "dog", 0.9),
				box(0, 0, 10, 10, "cat", 0.6),
			},
			threshold: 0.5,
			expected: []Box{
				box(0, 0, 10, 10, "dog", 0.9),
				box(0, 0, 10, 10, "cat", 0.6),
			},
		},
		{
			name: "chain keeps the non overlapping tail",
			boxes: []Box{
				box(0, 0, 10, 10, "car", 0.5),
				box(1, 0, 10, 10, "car", 0.9),
				box(30, 30, 10, 10, "car", 0.4),
			},
			threshold: 0.5,
			expected: []Box{
				box(1, 0, 10, 10, "car", 0.9),
				box(30, 30, 10, 10, "car", 0.4),
			},
		},
		{
			name:      "empty input",
			boxes:     nil,
			threshold: 0.5,
			expected:  []Box{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NMS(tt.boxes, tt.threshold)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("NMS() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDecoderLabel(t *testing.T) {
	d := NewDecoder(COCOLabels)
	tests := []struct {
		classID  int
		expected string
	}{
		{0, "person"},
		{16, "dog"},
		{79, "toothbrush"},
		{80, UnknownLabel},
		{-1, UnknownLabel},
	}
	for _, tt := range tests {
		if got := d.Label(tt.classID); got != tt.expected {
			t.Errorf("Label(%d) = %q, want %q", tt.classID, got, tt.expected)
		}
	}
}

func sampleTensor() *RawTensor {
	return &RawTensor{
		InputWidth:  100,
		InputHeight: 100,
		Boxes: [][4]float32{
			{50, 50, 20, 20}, // dog, strong
			{50, 50, 20, 20}, // dog, duplicate
			{20, 20, 10, 10}, // cat
			{80, 80, 10, 10}, // below threshold
			{10, 90, 10, 10}, // class outside table
		},
		Scores: [][]float32{
			{0.1, 0.9, 0},
			{0.1, 0.75, 0},
			{0.5, 0.25, 0},
			{0.125, 0.125, 0.125},
			{0, 0, 0.5},
		},
	}
}

func TestDecode(t *testing.T) {
	d := NewDecoder([]string{"cat", "dog"})
	th := Thresholds{Confidence: 0.25, IoU: 0.5}

	got := d.Decode(sampleTensor(), 200, 100, th)

	expected := []Box{
		{Rect: geometry.Rect{X: 80, Y: 40, W: 40, H: 20}, ClassID: 1, Label: "dog", Confidence: float64(float32(0.9))},
		{Rect: geometry.Rect{X: 30, Y: 15, W: 20, H: 10}, ClassID: 0, Label: "cat", Confidence: 0.5},
		{Rect: geometry.Rect{X: 10, Y: 85, W: 20, H: 10}, ClassID: 2, Label: UnknownLabel, Confidence: 0.5},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Decode() = %+v, want %+v", got, expected)
	}
}

func TestDecodeIdempotent(t *testing.T) {
	d := NewDecoder(COCOLabels)
	th := Thresholds{Confidence: 0.25, IoU: 0.5}
	raw := sampleTensor()

	first := d.Decode(raw, 640, 480, th)
	second := d.Decode(raw, 640, 480, th)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Decode() not idempotent: %v vs %v", first, second)
	}
}

func TestDecodeEdgeCases(t *testing.T) {
	d := NewDecoder(COCOLabels)
	th := Thresholds{Confidence: 0.25, IoU: 0.5}

	tests := []struct {
		name string
		raw  *RawTensor
		w, h int
	}{
		{"nil tensor", nil, 100, 100},
		{"no candidates", &RawTensor{InputWidth: 640, InputHeight: 640}, 100, 100},
		{"all below threshold", &RawTensor{
			InputWidth: 640, InputHeight: 640,
			Boxes:  [][4]float32{{10, 10, 5, 5}},
			Scores: [][]float32{{0.1, 0.2}},
		}, 100, 100},
		{"mismatched rows", &RawTensor{
			InputWidth: 640, InputHeight: 640,
			Boxes:  [][4]float32{{10, 10, 5, 5}},
			Scores: [][]float32{{0.9}, {0.9}},
		}, 100, 100},
		{"zero model size", &RawTensor{
			Boxes:  [][4]float32{{10, 10, 5, 5}},
			Scores: [][]float32{{0.9}},
		}, 100, 100},
		{"zero image size", sampleTensor(), 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Decode(tt.raw, tt.w, tt.h, th)
			if got == nil || len(got) != 0 {
				t.Errorf("Decode() = %v, want empty non-nil slice", got)
			}
		})
	}
}

func TestDecodeMaxDetections(t *testing.T) {
	d := NewDecoder(FaceLabels)
	raw := &RawTensor{
		InputWidth:  128,
		InputHeight: 128,
		Boxes: [][4]float32{
			{10, 10, 8, 8},
			{40, 40, 8, 8},
			{70, 70, 8, 8},
		},
		Scores: [][]float32{{0.8}, {0.95}, {0.875}},
	}

	got := d.Decode(raw, 128, 128, Thresholds{Confidence: 0.75, IoU: 0.5, MaxDetections: 2})
	if len(got) != 2 {
		t.Fatalf("Decode() returned %d boxes, want 2", len(got))
	}
	if got[0].Confidence != float64(float32(0.95)) || got[1].Confidence != 0.875 {
		t.Errorf("Decode() kept confidences %v and %v, want the two highest", got[0].Confidence, got[1].Confidence)
	}
}

func TestFromChannelMajor(t *testing.T) {
	// 2 classes, 3 candidates: rows are cx, cy, w, h, class0, class1.
	data := []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
		10, 11, 12,
		0.1, 0.2, 0.3,
		0.9, 0.8, 0.7,
	}

	raw, err := FromChannelMajor(data, 2, 3, 640, 640)
	if err != nil {
		t.Fatalf("FromChannelMajor() error = %v", err)
	}
	if raw.Boxes[1] != [4]float32{2, 5, 8, 11} {
		t.Errorf("Boxes[1] = %v, want [2 5 8 11]", raw.Boxes[1])
	}
	if !reflect.DeepEqual(raw.Scores[2], []float32{0.3, 0.7}) {
		t.Errorf("Scores[2] = %v, want [0.3 0.7]", raw.Scores[2])
	}

	if _, err := FromChannelMajor(data[:10], 2, 3, 640, 640); err == nil {
		t.Error("FromChannelMajor() with short data should fail")
	}
}
