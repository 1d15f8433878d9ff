// Package faces detects faces in an image and extracts an embedding for each of them.
package faces

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/detect"
	"github.com/kozaktomas/photo-gallery/internal/inference"
	"github.com/kozaktomas/photo-gallery/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// Face is a detected face region. Embedding is nil when extraction failed.
type Face struct {
	detect.Box
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the face can be matched against persons.
func (f Face) HasEmbedding() bool {
	return len(f.Embedding) > 0
}

// Pipeline runs face detection followed by per-face embedding.
type Pipeline struct {
	detector inference.Detector
	embedder inference.Embedder
	decoder  *detect.Decoder
	cfg      config.DetectionConfig
	log      *zap.Logger
}

func NewPipeline(detector inference.Detector, embedder inference.Embedder, cfg config.DetectionConfig, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		detector: detector,
		embedder: embedder,
		decoder:  detect.NewDecoder(detect.FaceLabels),
		cfg:      cfg,
		log:      log,
	}
}

// Annotate returns the faces found in img, highest confidence first.
// A failed embedding leaves that face unassignable and does not stop the others.
// If ctx is cancelled between faces, the faces gathered so far are returned with ctx.Err().
func (p *Pipeline) Annotate(ctx context.Context, img image.Image) ([]Face, error) {
	raw, err := p.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("face detection: %w", err)
	}

	bounds := img.Bounds()
	boxes := p.decoder.Decode(raw, bounds.Dx(), bounds.Dy(), detect.Thresholds{
		Confidence:    p.cfg.FaceConfidence,
		IoU:           p.cfg.IoUThreshold,
		MaxDetections: p.cfg.MaxFacesPerImage,
	})
	metrics.FacesDetectedTotal.Add(float64(len(boxes)))

	faces := make([]Face, 0, len(boxes))
	for i, box := range boxes {
		if err := ctx.Err(); err != nil {
			return faces, err
		}

		face := Face{Box: box}
		crop := p.cropFace(img, box)
		if crop == nil {
			p.log.Debug("skipping empty face crop", zap.Int("face", i))
			faces = append(faces, face)
			continue
		}

		emb, err := p.embedder.Embed(ctx, crop)
		if err != nil {
			metrics.FaceEmbeddingFailuresTotal.Inc()
			p.log.Warn("face embedding failed",
				zap.Int("face", i),
				zap.Float64("confidence", box.Confidence),
				zap.Error(err))
		} else {
			face.Embedding = emb
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// cropFace cuts the box out of img and scales it to the embedder input size.
// Returns nil when the box does not cover any pixel of the image.
func (p *Pipeline) cropFace(img image.Image, box detect.Box) image.Image {
	rect := box.ImageRect(img.Bounds())
	if rect.Empty() {
		return nil
	}
	cropped := imaging.Crop(img, rect)

	size := p.cfg.EmbedInputSize
	if size <= 0 {
		return cropped
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)
	return dst
}
