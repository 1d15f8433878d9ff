package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-gallery/internal/ai"
	"github.com/kozaktomas/photo-gallery/internal/describe"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <image-id>",
	Short: "Show what is known about an image",
	Long: `Show the stored description, detected objects and faces of an indexed image.
With --ask the configured LLM answers a question about the image.

Examples:
  photo-gallery describe 42
  photo-gallery describe 42 --ask "Is this photo taken indoors?"`,
	Args: cobra.ExactArgs(1),
	RunE: runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)

	describeCmd.Flags().String("ask", "", "Ask a question about the image")
}

func runDescribe(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "image ID")
	if err != nil {
		return err
	}
	question := mustGetString(cmd, "ask")

	return withApp(func(ctx context.Context, a *app) error {
		img, err := a.store.GetImage(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get image: %w", err)
		}
		if img == nil {
			return fmt.Errorf("image %d not found", id)
		}
		ann, err := a.store.GetAnnotations(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get annotations: %w", err)
		}

		fmt.Printf("Image %d: %s\n", img.ID, img.Path)
		fmt.Printf("  Size:    %dx%d, %d bytes\n", img.Width, img.Height, img.FileSize)
		if img.TakenAt != nil {
			fmt.Printf("  Taken:   %s\n", img.TakenAt.Format("2006-01-02 15:04:05"))
		}
		if !img.Processed() || ann == nil {
			fmt.Println("  Not indexed yet.")
			return nil
		}
		fmt.Printf("  %s\n", img.Description)

		if len(ann.Tags) > 0 {
			fmt.Println("\nObjects:")
			for _, t := range ann.Tags {
				fmt.Printf("  %-15s %.2f\n", t.Label, t.Confidence)
			}
		}
		if len(ann.Faces) > 0 {
			fmt.Println("\nFaces:")
			for _, f := range ann.Faces {
				who := "unassigned"
				if f.PersonID != nil {
					if p, err := a.store.GetPerson(ctx, *f.PersonID); err == nil && p != nil {
						who = p.Name
					}
				}
				fmt.Printf("  #%d %.2f %s\n", f.FaceIndex, f.Confidence, who)
			}
		}

		if question != "" {
			reply := a.describer.Chat(ctx, describe.ContextFromAnnotations(ann),
				[]ai.Message{{Role: ai.RoleUser, Content: question}})
			fmt.Printf("\nQ: %s\nA: %s\n", question, reply)
			a.printUsage()
		}
		return nil
	})
}
