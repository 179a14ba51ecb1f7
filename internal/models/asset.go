package models

import (
	"image"
	"path/filepath"
	"time"
)

const (
	CorruptedMessage = "The asset is corrupted"
	RotatedMessage   = "The asset has been rotated"
)

// Rotation is the clockwise rotation applied when decoding an asset
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Valid reports whether r is one of the four supported rotations
func (r Rotation) Valid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	}
	return false
}

// Size is a pixel width and height
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Pixel holds the dimensions of the original image and of its thumbnail
type Pixel struct {
	Asset     Size `json:"asset"`
	Thumbnail Size `json:"thumbnail"`
}

// Flag is a boolean with a human readable explanation
type Flag struct {
	IsTrue  bool   `json:"is_true"`
	Message string `json:"message"`
}

// Metadata carries anomalies detected while decoding
type Metadata struct {
	Corrupted Flag `json:"corrupted"`
	Rotated   Flag `json:"rotated"`
}

// Asset represents one catalogued image file
type Asset struct {
	FolderID                  string         `json:"folder_id"`
	Folder                    *Folder        `json:"-"`
	FileName                  string         `json:"file_name"`
	Hash                      string         `json:"hash"`
	Pixel                     Pixel          `json:"pixel"`
	FileProperties            FileProperties `json:"file_properties"`
	ThumbnailCreationDateTime time.Time      `json:"thumbnail_creation_date_time"`
	ImageRotation             Rotation       `json:"image_rotation"`
	Metadata                  Metadata       `json:"metadata"`

	// ImageData is only populated for assets of the folder being browsed
	ImageData image.Image `json:"-"`
}

// FullPath returns the absolute path of the asset file, or the bare file
// name when the folder has not been resolved.
func (a *Asset) FullPath() string {
	if a.Folder == nil {
		return a.FileName
	}
	return filepath.Join(a.Folder.Path, a.FileName)
}

// MarkCorrupted flags the asset as undecodable
func (a *Asset) MarkCorrupted() {
	a.Metadata.Corrupted = Flag{IsTrue: true, Message: CorruptedMessage}
}

// MarkRotated flags the asset as carrying a non-default orientation
func (a *Asset) MarkRotated() {
	a.Metadata.Rotated = Flag{IsTrue: true, Message: RotatedMessage}
}
