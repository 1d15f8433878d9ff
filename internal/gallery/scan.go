// Package gallery indexes image files on disk into the annotation store.
package gallery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
	"github.com/kozaktomas/photo-gallery/internal/constants"
)

// ScanDirectory lists the image files under root, grouped by extension in
// constants.ImageExtensions order and naturally sorted within each group.
// The context is checked between extension groups. On cancellation the files found
// so far are returned without an error.
func ScanDirectory(ctx context.Context, root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", root)
	}

	var found []string
	for _, ext := range constants.ImageExtensions {
		if ctx.Err() != nil {
			break
		}
		files, err := filesWithExtension(root, ext, recursive)
		if err != nil {
			return found, err
		}
		natsort.Sort(files)
		found = append(found, files...)
	}
	return found, nil
}

// IsImageFile reports whether path has one of the supported image extensions.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range constants.ImageExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func filesWithExtension(root, ext string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) == ext {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}
