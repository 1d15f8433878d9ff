package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search images with a natural-language query",
	Long: `Search indexed images with a natural-language query.

Examples:
  photo-gallery search "find all images with Samantha in it"
  photo-gallery search "find all images where Samantha and Tina are together"
  photo-gallery search "find all images with Samantha but not Tina"
  photo-gallery search "show me pictures of a dog"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Int("limit", constants.DefaultSearchLimit, "Maximum number of results to print")
}

func runSearch(cmd *cobra.Command, args []string) error {
	q := strings.Join(args, " ")
	limit := mustGetInt(cmd, "limit")

	return withApp(func(ctx context.Context, a *app) error {
		results, err := a.search.Search(ctx, q)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("No images found.")
			return nil
		}

		fmt.Printf("Found %d images\n\n", len(results))
		for i, r := range results {
			if limit > 0 && i == limit {
				fmt.Printf("... and %d more\n", len(results)-limit)
				break
			}
			img, err := a.store.GetImage(ctx, r.ImageID)
			if err != nil {
				return fmt.Errorf("failed to load image %d: %w", r.ImageID, err)
			}
			if img != nil {
				fmt.Printf("%6d  %.2f  %s\n", img.ID, r.Relevance, img.Path)
			}
		}
		return nil
	})
}
