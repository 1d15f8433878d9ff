package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List detected object labels",
	Long:  `List every detected object label with the number of images carrying it, most frequent first.`,
	Args:  cobra.NoArgs,
	RunE:  runLabels,
}

func init() {
	rootCmd.AddCommand(labelsCmd)
}

func runLabels(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		counts, err := a.store.LabelCounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to count labels: %w", err)
		}
		if len(counts) == 0 {
			fmt.Println("No labels found. Run 'photo-gallery scan' first.")
			return nil
		}

		fmt.Printf("%-20s %s\n", "LABEL", "IMAGES")
		for _, c := range counts {
			fmt.Printf("%-20s %d\n", c.Label, c.Count)
		}
		return nil
	})
}
