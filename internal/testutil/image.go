package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// PatternImage draws a deterministic, asymmetric test picture. Different seeds
// give visually different images.
func PatternImage(width, height int, seed uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x*7 + int(seed)*13) % 256)
			g := uint8((y*5 + x*x/3 + int(seed)*29) % 256)
			b := uint8((x*y/2 + int(seed)*53) % 256)
			if x < width/3 && y < height/2 {
				r, g, b = 240, uint8(seed), 30
			}
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// PNG encodes img as PNG bytes.
func PNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG encodes img as JPEG bytes at quality 90.
func JPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data to path on fs, creating parent directories.
func WriteFile(t *testing.T, fs afero.Fs, path string, data []byte) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create parent of %s: %v", path, err)
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// MkdirAll creates a directory tree on fs.
func MkdirAll(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if err := fs.MkdirAll(path, 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
}
