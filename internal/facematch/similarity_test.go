package facematch

import (
	"math"
	"reflect"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero magnitude", []float32{0, 0}, []float32{1, 1}, 0},
		{"mismatched length", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestCosineSimilarityProperties(t *testing.T) {
	vectors := [][]float32{
		{0.3, -1.2, 4.5, 0.01},
		{1, 1, 1, 1},
		{-2, 0.5, 0, 3},
		{1e-3, 2e-3, -5e-3, 7e-3},
	}
	for _, a := range vectors {
		if got := CosineSimilarity(a, a); got != 1 {
			t.Errorf("CosineSimilarity(%v, self) = %v, want 1", a, got)
		}
		for _, b := range vectors {
			ab := CosineSimilarity(a, b)
			ba := CosineSimilarity(b, a)
			if ab != ba {
				t.Errorf("CosineSimilarity not symmetric: %v vs %v", ab, ba)
			}
			if ab < -1 || ab > 1 {
				t.Errorf("CosineSimilarity(%v, %v) = %v out of [-1, 1]", a, b, ab)
			}
		}
	}
}

func TestSameDimension(t *testing.T) {
	tests := []struct {
		a, b     []float32
		expected bool
	}{
		{[]float32{1, 2}, []float32{3, 4}, true},
		{[]float32{1, 2}, []float32{3}, false},
		{nil, nil, false},
	}
	for _, tt := range tests {
		if got := SameDimension(tt.a, tt.b); got != tt.expected {
			t.Errorf("SameDimension(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestRunningAverage(t *testing.T) {
	tests := []struct {
		name     string
		avg      []float32
		next     []float32
		expected []float32
	}{
		{"first face becomes average", nil, []float32{1, 2, 3}, []float32{1, 2, 3}},
		{"pairwise average", []float32{1, 2, 3}, []float32{3, 4, 5}, []float32{2, 3, 4}},
		{"negative components", []float32{-1, 0}, []float32{1, 0.5}, []float32{0, 0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RunningAverage(tt.avg, tt.next)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("RunningAverage(%v, %v) = %v, want %v", tt.avg, tt.next, got, tt.expected)
			}
		})
	}

	next := []float32{5, 6}
	out := RunningAverage(nil, next)
	out[0] = 100
	if next[0] != 5 {
		t.Error("RunningAverage() must copy the first embedding")
	}
}
