package gallery

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 200, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestReadMetadata(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "a.png")
	writePNG(t, pngPath, 40, 30)

	jpgPath := filepath.Join(dir, "b.jpg")
	f, err := os.Create(jpgPath)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 12, 16)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	f.Close()

	tests := []struct {
		path       string
		wantFormat string
		wantW      int
		wantH      int
	}{
		{pngPath, "png", 40, 30},
		{jpgPath, "jpeg", 12, 16},
	}

	for _, tt := range tests {
		t.Run(tt.wantFormat, func(t *testing.T) {
			meta, err := ReadMetadata(tt.path)
			if err != nil {
				t.Fatalf("ReadMetadata() error = %v", err)
			}
			if meta.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", meta.Format, tt.wantFormat)
			}
			if meta.Width != tt.wantW || meta.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", meta.Width, meta.Height, tt.wantW, tt.wantH)
			}
			if meta.FileSize <= 0 {
				t.Errorf("FileSize = %d, want > 0", meta.FileSize)
			}
			if meta.TakenAt != nil {
				t.Errorf("TakenAt = %v, want nil without EXIF", meta.TakenAt)
			}
		})
	}
}

func TestReadMetadata_Errors(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.jpg")
	if err := os.WriteFile(bogus, []byte("not an image"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, path := range []string{bogus, filepath.Join(dir, "missing.jpg")} {
		if _, err := ReadMetadata(path); err == nil {
			t.Errorf("ReadMetadata(%s) expected error", path)
		}
	}
}
