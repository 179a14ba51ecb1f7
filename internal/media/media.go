// Package media decodes image files, reads their EXIF orientation and
// renders thumbnails.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/victor/stormcatalog/internal/models"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const thumbnailQuality = 80

var ErrEmptyImage = errors.New("empty image data")

// Decoder turns encoded image bytes into pixels
type Decoder interface {
	ReadOrientation(data []byte) (models.Rotation, bool)
	Decode(data []byte, rotation models.Rotation) (image.Image, error)
}

// ThumbnailRenderer produces an encoded thumbnail bounded by a maximum size
type ThumbnailRenderer interface {
	Thumbnail(img image.Image, maxWidth, maxHeight int) ([]byte, models.Size, error)
}

// Processor implements Decoder and ThumbnailRenderer
type Processor struct{}

func NewProcessor() *Processor {
	return &Processor{}
}

// ReadOrientation maps the EXIF orientation tag to a clockwise rotation.
// Mirrored orientations keep their rotation and drop the flip.
func (p *Processor) ReadOrientation(data []byte) (models.Rotation, bool) {
	if len(data) == 0 {
		return models.Rotate0, false
	}
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return models.Rotate0, false
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return models.Rotate0, false
	}
	value, err := tag.Int(0)
	if err != nil {
		return models.Rotate0, false
	}
	return orientationToRotation(value), true
}

func orientationToRotation(orientation int) models.Rotation {
	switch orientation {
	case 3, 4:
		return models.Rotate180
	case 5, 6:
		return models.Rotate90
	case 7, 8:
		return models.Rotate270
	default:
		return models.Rotate0
	}
}

// Decode decodes data and applies the clockwise rotation
func (p *Processor) Decode(data []byte, rotation models.Rotation) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return Rotate(img, rotation), nil
}

// Rotate turns img clockwise. imaging rotates counter-clockwise.
func Rotate(img image.Image, rotation models.Rotation) image.Image {
	switch rotation {
	case models.Rotate90:
		return imaging.Rotate270(img)
	case models.Rotate180:
		return imaging.Rotate180(img)
	case models.Rotate270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Thumbnail scales img down to fit maxWidth x maxHeight and encodes it as JPEG.
// Smaller images are encoded at their own size.
func (p *Processor) Thumbnail(img image.Image, maxWidth, maxHeight int) ([]byte, models.Size, error) {
	if img == nil {
		return nil, models.Size{}, ErrEmptyImage
	}
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, models.Size{}, fmt.Errorf("invalid thumbnail bounds %dx%d", maxWidth, maxHeight)
	}

	thumb := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, models.Size{}, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	bounds := thumb.Bounds()
	return buf.Bytes(), models.Size{Width: bounds.Dx(), Height: bounds.Dy()}, nil
}
