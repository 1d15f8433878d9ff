package gallery

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/describe"
	"github.com/kozaktomas/photo-gallery/internal/detect"
	"github.com/kozaktomas/photo-gallery/internal/faces"
	"github.com/kozaktomas/photo-gallery/internal/identity"
	"github.com/kozaktomas/photo-gallery/internal/inference"
	"github.com/kozaktomas/photo-gallery/internal/metrics"
	"go.uber.org/zap"
)

// Result summarizes the processing of one image.
type Result struct {
	ImageID int64  `json:"image_id"`
	Path    string `json:"path"`
	Skipped bool   `json:"skipped"`
	Tags    int    `json:"tags"`
	Faces   int    `json:"faces"`
	People  int    `json:"people"` // faces assigned to a person
}

// Processor runs the full annotation pipeline for single images.
type Processor struct {
	images    database.ImageWriter
	objects   inference.Detector
	faces     *faces.Pipeline
	resolver  *identity.Resolver
	describer *describe.Describer
	decoder   *detect.Decoder
	cfg       config.DetectionConfig
	log       *zap.Logger
}

func NewProcessor(
	images database.ImageWriter,
	objects inference.Detector,
	facePipeline *faces.Pipeline,
	resolver *identity.Resolver,
	describer *describe.Describer,
	cfg config.DetectionConfig,
	log *zap.Logger,
) *Processor {
	return &Processor{
		images:    images,
		objects:   objects,
		faces:     facePipeline,
		resolver:  resolver,
		describer: describer,
		decoder:   detect.NewDecoder(detect.COCOLabels),
		cfg:       cfg,
		log:       log,
	}
}

// Process indexes the image at path. Images that were already processed are skipped
// unless force is set. Face embedding and identity failures leave the face unassigned;
// they never fail the image.
func (p *Processor) Process(ctx context.Context, path string, force bool) (*Result, error) {
	res, err := p.process(ctx, path, force)
	switch {
	case err != nil:
		metrics.ImagesProcessedTotal.WithLabelValues("failed").Inc()
	case res.Skipped:
		metrics.ImagesProcessedTotal.WithLabelValues("skipped").Inc()
	default:
		metrics.ImagesProcessedTotal.WithLabelValues("processed").Inc()
	}
	return res, err
}

func (p *Processor) process(ctx context.Context, path string, force bool) (*Result, error) {
	existing, err := p.images.GetImageByPath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", path, err)
	}
	if existing != nil && existing.Processed() && !force {
		return &Result{ImageID: existing.ID, Path: path, Skipped: true}, nil
	}

	meta, err := ReadMetadata(path)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	record := &database.Image{
		Path:     path,
		FileName: filepath.Base(path),
		FileSize: meta.FileSize,
		Width:    meta.Width,
		Height:   meta.Height,
		TakenAt:  meta.TakenAt,
	}
	if err := p.images.SaveImage(ctx, record); err != nil {
		return nil, fmt.Errorf("save image %s: %w", path, err)
	}

	raw, err := p.objects.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("object detection %s: %w", path, err)
	}
	bounds := img.Bounds()
	boxes := p.decoder.Decode(raw, bounds.Dx(), bounds.Dy(), detect.Thresholds{
		Confidence: p.cfg.ObjectConfidence,
		IoU:        p.cfg.IoUThreshold,
	})

	ann := &database.ImageAnnotations{ImageID: record.ID}
	for _, b := range boxes {
		ann.Tags = append(ann.Tags, database.Tag{Label: b.Label, Confidence: b.Confidence, BBox: b.Rect})
	}

	res := &Result{ImageID: record.ID, Path: path, Tags: len(ann.Tags)}

	if p.wantFaces(boxes) {
		found, err := p.faces.Annotate(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.Warn("face annotation failed", zap.String("path", path), zap.Error(err))
		}
		for i, f := range found {
			face := database.Face{
				FaceIndex:  i,
				BBox:       f.Rect,
				Confidence: f.Confidence,
				Embedding:  f.Embedding,
			}
			if f.HasEmbedding() {
				personID, err := p.resolver.Assign(ctx, f.Embedding)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					p.log.Warn("face left unassigned", zap.String("path", path), zap.Int("face", i), zap.Error(err))
				} else {
					face.PersonID = &personID
					res.People++
				}
			}
			ann.Faces = append(ann.Faces, face)
		}
		res.Faces = len(ann.Faces)
	}

	ann.Description = p.describer.Describe(ctx, boxes)

	if err := p.images.ReplaceAnnotations(ctx, ann); err != nil {
		return nil, fmt.Errorf("store annotations %s: %w", path, err)
	}

	p.log.Debug("image processed",
		zap.String("path", path),
		zap.Int("tags", res.Tags),
		zap.Int("faces", res.Faces),
		zap.Int("people", res.People))
	return res, nil
}

func (p *Processor) wantFaces(boxes []detect.Box) bool {
	if p.faces == nil {
		return false
	}
	if !p.cfg.FacesRequirePerson {
		return true
	}
	return slices.ContainsFunc(boxes, func(b detect.Box) bool {
		return b.Label == detect.PersonLabel
	})
}
