package gallery

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"go.uber.org/zap"
)

// ImageProcessor processes a single image file.
type ImageProcessor interface {
	Process(ctx context.Context, path string, force bool) (*Result, error)
}

// Progress is reported after every image of a batch.
type Progress struct {
	Path      string `json:"path"`
	Total     int    `json:"total"`
	Done      int    `json:"done"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// Summary is the outcome of a batch.
type Summary struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Faces     int           `json:"faces"`
	People    int           `json:"people"`
	Duration  time.Duration `json:"duration"`
}

// Indexer processes batches of images with a bounded number of workers.
type Indexer struct {
	processor   ImageProcessor
	concurrency int
	log         *zap.Logger
}

func NewIndexer(processor ImageProcessor, concurrency int, log *zap.Logger) *Indexer {
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrency
	}
	return &Indexer{processor: processor, concurrency: concurrency, log: log}
}

// IndexAll processes every path. Failures are logged and counted, the batch continues.
// onProgress may be nil; it is called from worker goroutines, one call at a time.
// Images not started before ctx is cancelled are left out and ctx.Err() is returned.
func (ix *Indexer) IndexAll(ctx context.Context, paths []string, force bool, onProgress func(Progress)) (Summary, error) {
	start := time.Now()
	summary := Summary{Total: len(paths)}

	var mu sync.Mutex
	var done int
	sem := make(chan struct{}, ix.concurrency)
	var wg sync.WaitGroup

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			res, err := ix.processor.Process(ctx, path, force)

			mu.Lock()
			defer mu.Unlock()
			done++
			progress := Progress{Path: path, Total: len(paths)}
			switch {
			case err != nil:
				summary.Failed++
				progress.Error = err.Error()
				ix.log.Warn("failed to index image", zap.String("path", path), zap.Error(err))
			case res.Skipped:
				summary.Skipped++
			default:
				summary.Processed++
				summary.Faces += res.Faces
				summary.People += res.People
			}
			progress.Done = done
			progress.Processed = summary.Processed
			progress.Skipped = summary.Skipped
			progress.Failed = summary.Failed
			if onProgress != nil {
				onProgress(progress)
			}
		}(path)
	}

	wg.Wait()
	summary.Duration = time.Since(start)
	return summary, ctx.Err()
}

// IndexDirectory scans root and indexes every image found.
func (ix *Indexer) IndexDirectory(ctx context.Context, root string, recursive, force bool, onProgress func(Progress)) (Summary, error) {
	paths, err := ScanDirectory(ctx, root, recursive)
	if err != nil {
		return Summary{}, err
	}
	ix.log.Info("scanned directory", zap.String("root", root), zap.Int("images", len(paths)))
	return ix.IndexAll(ctx, paths, force, onProgress)
}
