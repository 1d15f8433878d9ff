package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/logger"
	"github.com/kozaktomas/photo-gallery/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "photo-gallery",
	Short: "A local photo gallery with object tags, face identities and natural-language search",
	Long: `Photo Gallery indexes a directory of images: it detects objects and faces,
groups faces into persons, writes a short description of every image and lets you
search the collection with queries like "find all images with Samantha in it".`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML file overriding detection, identity and scan settings (env GALLERY_CONFIG)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the environment, applies the optional YAML overrides and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()

	path := configFile
	if path == "" {
		path = os.Getenv("GALLERY_CONFIG")
	}
	if path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, nil, err
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	metrics.RegisterGalleryMetrics()
	return cfg, log, nil
}
