package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/identity"
	"github.com/spf13/cobra"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage recognized people",
	Long: `Manage the persons faces were grouped into.

Examples:
  photo-gallery people list
  photo-gallery people rename 3 "Samantha"
  photo-gallery people similar 3
  photo-gallery people images 3`,
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all people",
	Args:  cobra.NoArgs,
	RunE:  runPeopleList,
}

var peopleRenameCmd = &cobra.Command{
	Use:   "rename <person-id> <name>",
	Short: "Rename a person",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPeopleRename,
}

var peopleSimilarCmd = &cobra.Command{
	Use:   "similar <person-id>",
	Short: "Suggest people that may be the same person",
	Long: `Suggest people whose face averages are close to the given person.
Suggestions come from an approximate index and are never applied automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: runPeopleSimilar,
}

var peopleImagesCmd = &cobra.Command{
	Use:   "images <person-id>",
	Short: "List images containing a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleImages,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd, peopleRenameCmd, peopleSimilarCmd, peopleImagesCmd)

	peopleSimilarCmd.Flags().Int("limit", constants.DefaultSimilarPeopleLimit, "Number of suggestions")
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		persons, err := a.store.ListPersons(ctx)
		if err != nil {
			return fmt.Errorf("failed to list people: %w", err)
		}
		if len(persons) == 0 {
			fmt.Println("No people found.")
			return nil
		}
		fmt.Printf("%6s  %-30s %s\n", "ID", "NAME", "FACES")
		for _, p := range persons {
			fmt.Printf("%6d  %-30s %d\n", p.ID, p.Name, p.FaceCount)
		}
		return nil
	})
}

func runPeopleRename(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "person ID")
	if err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(args[1:], " "))
	if name == "" {
		return errors.New("name must not be empty")
	}

	return withApp(func(ctx context.Context, a *app) error {
		if err := a.resolver.Rename(ctx, id, name); err != nil {
			if errors.Is(err, identity.ErrPersonNotFound) {
				return fmt.Errorf("person %d not found", id)
			}
			return fmt.Errorf("failed to rename person: %w", err)
		}
		fmt.Printf("Person %d renamed to %q\n", id, name)
		return nil
	})
}

func runPeopleSimilar(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "person ID")
	if err != nil {
		return err
	}
	limit := mustGetInt(cmd, "limit")

	return withApp(func(ctx context.Context, a *app) error {
		similar, err := a.resolver.SimilarPeople(ctx, id, limit)
		if err != nil {
			if errors.Is(err, identity.ErrPersonNotFound) {
				return fmt.Errorf("person %d not found", id)
			}
			return fmt.Errorf("failed to find similar people: %w", err)
		}
		if len(similar) == 0 {
			fmt.Println("No similar people found.")
			return nil
		}
		for _, s := range similar {
			fmt.Printf("%6d  %-30s %.3f\n", s.Person.ID, s.Person.Name, s.Similarity)
		}
		return nil
	})
}

func runPeopleImages(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "person ID")
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		p, err := a.store.GetPerson(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get person: %w", err)
		}
		if p == nil {
			return fmt.Errorf("person %d not found", id)
		}
		ids, err := a.store.ImagesByPerson(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list images: %w", err)
		}
		fmt.Printf("%s appears in %d images\n", p.Name, len(ids))
		for _, imageID := range ids {
			img, err := a.store.GetImage(ctx, imageID)
			if err != nil {
				return fmt.Errorf("failed to load image %d: %w", imageID, err)
			}
			if img != nil {
				fmt.Printf("%6d  %s\n", img.ID, img.Path)
			}
		}
		return nil
	})
}
