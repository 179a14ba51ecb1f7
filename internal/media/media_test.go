package media

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/testutil"
)

func TestDecode(t *testing.T) {
	p := NewProcessor()
	data := testutil.PNG(t, testutil.PatternImage(40, 20, 1))

	img, err := p.Decode(data, models.Rotate0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Errorf("Expected 40x20, got %v", img.Bounds())
	}

	rotated, err := p.Decode(data, models.Rotate90)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if rotated.Bounds().Dx() != 20 || rotated.Bounds().Dy() != 40 {
		t.Errorf("Expected 20x40 after rotation, got %v", rotated.Bounds())
	}
}

func TestDecode_Corrupted(t *testing.T) {
	p := NewProcessor()
	if _, err := p.Decode([]byte("not an image"), models.Rotate0); err == nil {
		t.Error("Expected error for undecodable data")
	}
	if _, err := p.Decode(nil, models.Rotate0); err == nil {
		t.Error("Expected error for empty data")
	}
}

func TestRotate_Clockwise(t *testing.T) {
	src := testutil.PatternImage(30, 10, 2)
	// top-left corner ends up top-right after a clockwise quarter turn
	rotated := Rotate(src, models.Rotate90)
	want := src.NRGBAAt(0, 0)
	r, g, b, _ := rotated.At(rotated.Bounds().Dx()-1, 0).RGBA()
	if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
		t.Errorf("Unexpected pixel after rotation")
	}
}

func TestReadOrientation_NoExif(t *testing.T) {
	p := NewProcessor()
	rotation, ok := p.ReadOrientation(testutil.PNG(t, testutil.PatternImage(8, 8, 1)))
	if ok || rotation != models.Rotate0 {
		t.Errorf("Expected no orientation, got %v %v", rotation, ok)
	}
}

func TestOrientationToRotation(t *testing.T) {
	tests := map[int]models.Rotation{
		1: models.Rotate0, 2: models.Rotate0, 3: models.Rotate180, 6: models.Rotate90,
		8: models.Rotate270, 0: models.Rotate0,
	}
	for orientation, want := range tests {
		if got := orientationToRotation(orientation); got != want {
			t.Errorf("orientationToRotation(%d) = %v, want %v", orientation, got, want)
		}
	}
}

func TestThumbnail(t *testing.T) {
	p := NewProcessor()

	data, size, err := p.Thumbnail(testutil.PatternImage(400, 200, 3), 200, 150)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if size.Width != 200 || size.Height != 100 {
		t.Errorf("Expected 200x100, got %+v", size)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Thumbnail is not a jpeg: %v", err)
	}
	if cfg.Width != 200 || cfg.Height != 100 {
		t.Errorf("Unexpected encoded size %dx%d", cfg.Width, cfg.Height)
	}

	_, small, err := p.Thumbnail(testutil.PatternImage(50, 40, 3), 200, 150)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if small.Width != 50 || small.Height != 40 {
		t.Errorf("Expected small image kept at 50x40, got %+v", small)
	}
}
