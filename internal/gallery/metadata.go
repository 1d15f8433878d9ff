package gallery

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Metadata is what can be learned about an image file without decoding its pixels.
type Metadata struct {
	Format   string
	Width    int
	Height   int
	FileSize int64
	TakenAt  *time.Time // EXIF DateTimeOriginal, nil when absent
}

// ReadMetadata reads the dimensions, size and EXIF capture time of an image file.
// Missing EXIF data is not an error.
func ReadMetadata(path string) (*Metadata, error) {
	file, err := os.Open(path) //nolint:gosec // path comes from a directory scan
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open file %s: %w", path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to stat %s: %w", path, err)
	}

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("metadata: could not decode config of %s: %w", path, err)
	}

	meta := &Metadata{
		Format:   format,
		Width:    cfg.Width,
		Height:   cfg.Height,
		FileSize: stat.Size(),
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return meta, nil
	}
	if x, err := exif.Decode(file); err == nil {
		if taken, err := x.DateTime(); err == nil && !taken.IsZero() {
			meta.TakenAt = &taken
		}
	}
	return meta, nil
}
