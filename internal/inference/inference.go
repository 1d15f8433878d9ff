// Package inference defines the model providers used by the indexing pipeline.
package inference

import (
	"context"
	"image"

	"github.com/kozaktomas/photo-gallery/internal/detect"
)

// Detector runs a detection model and returns its raw output tensor.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*detect.RawTensor, error)
}

// Embedder computes an embedding for an image, typically an aligned face crop.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) ([]float32, error)
}

// handle allows at most one in-flight call. Waiting respects ctx.
type handle chan struct{}

func newHandle() handle {
	return make(handle, 1)
}

func (h handle) acquire(ctx context.Context) error {
	select {
	case h <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h handle) release() {
	<-h
}

// ExclusiveDetector serializes calls to a Detector.
type ExclusiveDetector struct {
	h     handle
	inner Detector
}

func NewExclusiveDetector(d Detector) *ExclusiveDetector {
	return &ExclusiveDetector{h: newHandle(), inner: d}
}

func (e *ExclusiveDetector) Detect(ctx context.Context, img image.Image) (*detect.RawTensor, error) {
	if err := e.h.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.h.release()
	return e.inner.Detect(ctx, img)
}

// ExclusiveEmbedder serializes calls to an Embedder.
type ExclusiveEmbedder struct {
	h     handle
	inner Embedder
}

func NewExclusiveEmbedder(e Embedder) *ExclusiveEmbedder {
	return &ExclusiveEmbedder{h: newHandle(), inner: e}
}

func (e *ExclusiveEmbedder) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	if err := e.h.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.h.release()
	return e.inner.Embed(ctx, img)
}
