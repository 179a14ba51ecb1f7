package database

import (
	"fmt"
	"strconv"
	"time"

	"github.com/victor/stormcatalog/internal/models"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

type folderCodec struct{}

func (folderCodec) Columns() int { return 2 }

func (folderCodec) Encode(f models.Folder) []string {
	return []string{f.ID, f.Path}
}

func (folderCodec) Decode(fields []string) (models.Folder, error) {
	if fields[0] == "" || fields[1] == "" {
		return models.Folder{}, fmt.Errorf("folder id and path are required")
	}
	return models.Folder{ID: fields[0], Path: fields[1]}, nil
}

const (
	assetFolderID = iota
	assetFileName
	assetFileSize
	assetFileCreation
	assetFileModification
	assetRotation
	assetPixelWidth
	assetPixelHeight
	assetThumbnailWidth
	assetThumbnailHeight
	assetThumbnailCreation
	assetHash
	assetIsCorrupted
	assetCorruptedMessage
	assetIsRotated
	assetRotatedMessage
	assetColumns
)

type assetCodec struct{}

func (assetCodec) Columns() int { return assetColumns }

func (assetCodec) Encode(a models.Asset) []string {
	fields := make([]string, assetColumns)
	fields[assetFolderID] = a.FolderID
	fields[assetFileName] = a.FileName
	fields[assetFileSize] = strconv.FormatInt(a.FileProperties.Size, 10)
	fields[assetFileCreation] = formatTime(a.FileProperties.Creation)
	fields[assetFileModification] = formatTime(a.FileProperties.Modification)
	fields[assetRotation] = strconv.Itoa(int(a.ImageRotation))
	fields[assetPixelWidth] = strconv.Itoa(a.Pixel.Asset.Width)
	fields[assetPixelHeight] = strconv.Itoa(a.Pixel.Asset.Height)
	fields[assetThumbnailWidth] = strconv.Itoa(a.Pixel.Thumbnail.Width)
	fields[assetThumbnailHeight] = strconv.Itoa(a.Pixel.Thumbnail.Height)
	fields[assetThumbnailCreation] = formatTime(a.ThumbnailCreationDateTime)
	fields[assetHash] = a.Hash
	fields[assetIsCorrupted] = strconv.FormatBool(a.Metadata.Corrupted.IsTrue)
	fields[assetCorruptedMessage] = a.Metadata.Corrupted.Message
	fields[assetIsRotated] = strconv.FormatBool(a.Metadata.Rotated.IsTrue)
	fields[assetRotatedMessage] = a.Metadata.Rotated.Message
	return fields
}

func (assetCodec) Decode(fields []string) (models.Asset, error) {
	var a models.Asset
	var err error

	a.FolderID = fields[assetFolderID]
	a.FileName = fields[assetFileName]
	if a.FolderID == "" || a.FileName == "" {
		return a, fmt.Errorf("asset folder id and file name are required")
	}
	if a.FileProperties.Size, err = strconv.ParseInt(fields[assetFileSize], 10, 64); err != nil {
		return a, fmt.Errorf("file size: %w", err)
	}
	if a.FileProperties.Creation, err = parseTime(fields[assetFileCreation]); err != nil {
		return a, fmt.Errorf("file creation: %w", err)
	}
	if a.FileProperties.Modification, err = parseTime(fields[assetFileModification]); err != nil {
		return a, fmt.Errorf("file modification: %w", err)
	}

	rotation, err := strconv.Atoi(fields[assetRotation])
	if err != nil || !models.Rotation(rotation).Valid() {
		return a, fmt.Errorf("invalid rotation %q", fields[assetRotation])
	}
	a.ImageRotation = models.Rotation(rotation)

	ints := []struct {
		column int
		target *int
	}{
		{assetPixelWidth, &a.Pixel.Asset.Width},
		{assetPixelHeight, &a.Pixel.Asset.Height},
		{assetThumbnailWidth, &a.Pixel.Thumbnail.Width},
		{assetThumbnailHeight, &a.Pixel.Thumbnail.Height},
	}
	for _, field := range ints {
		if *field.target, err = strconv.Atoi(fields[field.column]); err != nil {
			return a, fmt.Errorf("column %d: %w", field.column, err)
		}
	}

	if a.ThumbnailCreationDateTime, err = parseTime(fields[assetThumbnailCreation]); err != nil {
		return a, fmt.Errorf("thumbnail creation: %w", err)
	}
	a.Hash = fields[assetHash]

	if a.Metadata.Corrupted.IsTrue, err = strconv.ParseBool(fields[assetIsCorrupted]); err != nil {
		return a, fmt.Errorf("corrupted flag: %w", err)
	}
	a.Metadata.Corrupted.Message = fields[assetCorruptedMessage]
	if a.Metadata.Rotated.IsTrue, err = strconv.ParseBool(fields[assetIsRotated]); err != nil {
		return a, fmt.Errorf("rotated flag: %w", err)
	}
	a.Metadata.Rotated.Message = fields[assetRotatedMessage]

	return a, nil
}

type syncDefinitionCodec struct{}

func (syncDefinitionCodec) Columns() int { return 4 }

func (syncDefinitionCodec) Encode(d models.SyncDefinition) []string {
	return []string{
		d.SourceDirectory,
		d.DestinationDirectory,
		strconv.FormatBool(d.IncludeSubFolders),
		strconv.FormatBool(d.DeleteAssetsNotInSource),
	}
}

func (syncDefinitionCodec) Decode(fields []string) (models.SyncDefinition, error) {
	d := models.SyncDefinition{SourceDirectory: fields[0], DestinationDirectory: fields[1]}
	var err error
	if d.IncludeSubFolders, err = strconv.ParseBool(fields[2]); err != nil {
		return d, fmt.Errorf("include sub folders: %w", err)
	}
	if d.DeleteAssetsNotInSource, err = strconv.ParseBool(fields[3]); err != nil {
		return d, fmt.Errorf("delete assets not in source: %w", err)
	}
	return d, nil
}

type pathCodec struct{}

func (pathCodec) Columns() int { return 1 }

func (pathCodec) Encode(path string) []string { return []string{path} }

func (pathCodec) Decode(fields []string) (string, error) { return fields[0], nil }

type timeCodec struct{}

func (timeCodec) Columns() int { return 1 }

func (timeCodec) Encode(t time.Time) []string { return []string{formatTime(t)} }

func (timeCodec) Decode(fields []string) (time.Time, error) { return parseTime(fields[0]) }
