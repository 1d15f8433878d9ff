package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/gallery"
	"github.com/kozaktomas/photo-gallery/internal/inference"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "Index all images in a directory",
	Long: `Index every image below a directory: detect objects and faces, assign faces
to persons and store a description. Images that are already indexed are skipped.

The scan can be interrupted with Ctrl+C and resumed later.

Examples:
  # Index a directory tree
  photo-gallery scan ~/Pictures

  # Only the top-level directory, re-indexing everything
  photo-gallery scan ~/Pictures --recursive=false --force

  # Use more workers
  photo-gallery scan ~/Pictures --concurrency 8`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("recursive", true, "Descend into subdirectories (default SCAN_RECURSIVE)")
	scanCmd.Flags().Bool("force", false, "Re-index images that were already processed")
	scanCmd.Flags().Int("concurrency", 0, "Number of parallel workers (0 = SCAN_CONCURRENCY)")
}

func runScan(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid directory: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("recursive") {
		cfg.Scan.Recursive = mustGetBool(cmd, "recursive")
	}
	force := mustGetBool(cmd, "force")
	concurrency := mustGetInt(cmd, "concurrency")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	client := inference.NewClient(cfg.Inference)
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("inference server unavailable: %w", err)
	}
	indexer := a.indexer(client, concurrency)

	fmt.Printf("Scanning %s...\n", root)
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Indexing images"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var failures []gallery.Progress
	summary, err := indexer.IndexDirectory(ctx, root, cfg.Scan.Recursive, force, func(p gallery.Progress) {
		if bar.GetMax() != p.Total {
			bar.ChangeMax(p.Total)
		}
		_ = bar.Set(p.Done)
		if p.Error != "" {
			failures = append(failures, p)
		}
	})
	_ = bar.Finish()
	fmt.Println()

	for _, f := range failures {
		fmt.Printf("  failed: %s: %s\n", f.Path, f.Error)
	}

	fmt.Printf("\nScan complete in %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Printf("  Images:    %d\n", summary.Total)
	fmt.Printf("  Processed: %d\n", summary.Processed)
	fmt.Printf("  Skipped:   %d\n", summary.Skipped)
	fmt.Printf("  Failed:    %d\n", summary.Failed)
	fmt.Printf("  Faces:     %d (%d assigned to people)\n", summary.Faces, summary.People)
	a.printUsage()

	if errors.Is(err, context.Canceled) {
		fmt.Println("Scan interrupted, run the command again to resume.")
		return nil
	}
	return err
}
