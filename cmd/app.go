package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-gallery/internal/ai"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/describe"
	"github.com/kozaktomas/photo-gallery/internal/faces"
	"github.com/kozaktomas/photo-gallery/internal/gallery"
	"github.com/kozaktomas/photo-gallery/internal/identity"
	"github.com/kozaktomas/photo-gallery/internal/inference"
	"github.com/kozaktomas/photo-gallery/internal/search"
	"go.uber.org/zap"
)

// app holds the components shared by the commands.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	store     database.Store
	resolver  *identity.Resolver
	describer *describe.Describer
	search    *search.Engine
	llm       ai.Provider
}

// newApp opens the configured store and builds the identity, description and search
// components. The person index is restored from disk when an index path is configured.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	log.Debug("opening database", zap.String("driver", cfg.Database.Driver))
	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	llm, err := ai.NewProvider(ctx, cfg)
	switch {
	case errors.Is(err, ai.ErrNoProvider):
		log.Info("no LLM provider configured, descriptions stay templated")
		llm = nil
	case err != nil:
		_ = store.Close()
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	default:
		llm = ai.NewExclusive(llm)
		log.Info("using LLM provider", zap.String("provider", llm.Name()))
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		resolver:  identity.NewResolver(store, database.NewPersonIndex(), cfg.Identity, log),
		describer: describe.New(llm, log),
		search:    search.NewEngine(store, store, log),
		llm:       llm,
	}

	if err := a.resolver.LoadIndex(ctx, cfg.Database.HNSWIndexPath); err != nil {
		log.Warn("failed to build person index, similar-people suggestions are unavailable", zap.Error(err))
	}
	return a, nil
}

// indexer wires the inference client, face pipeline and processor into a directory indexer.
func (a *app) indexer(client *inference.Client, concurrency int) *gallery.Indexer {
	det := a.cfg.Detection
	objects := inference.NewExclusiveDetector(client.ObjectDetector(det.ObjectInputSize))
	pipeline := faces.NewPipeline(
		inference.NewExclusiveDetector(client.FaceDetector(det.FaceInputSize)),
		inference.NewExclusiveEmbedder(client.FaceEmbedder(det.EmbedInputSize)),
		det, a.log,
	)
	processor := gallery.NewProcessor(a.store, objects, pipeline, a.resolver, a.describer, det, a.log)

	if concurrency <= 0 {
		concurrency = a.cfg.Scan.Concurrency
	}
	return gallery.NewIndexer(processor, concurrency, a.log)
}

// withApp loads the configuration, opens the app and runs fn.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// close persists the person index and closes the store.
func (a *app) close() {
	if err := a.resolver.SaveIndex(a.cfg.Database.HNSWIndexPath); err != nil {
		a.log.Warn("failed to save person index", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}

// printUsage reports accumulated LLM usage, if any.
func (a *app) printUsage() {
	if a.llm == nil {
		return
	}
	u := a.llm.GetUsage()
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		return
	}
	fmt.Printf("LLM usage: %d input tokens, %d output tokens, $%.4f\n", u.InputTokens, u.OutputTokens, u.TotalCost)
}
