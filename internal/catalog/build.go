package catalog

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/models"
)

// buildAsset reads, fingerprints and decodes one file. Files that cannot be
// decoded are still catalogued, flagged as corrupted and without a thumbnail.
func (s *Service) buildAsset(folder *models.Folder, name string, props models.FileProperties) (*models.Asset, []byte, error) {
	path := filepath.Join(folder.Path, name)

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	hash, err := s.hasher.CalculateHash(data, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	asset := &models.Asset{
		FolderID:       folder.ID,
		Folder:         folder,
		FileName:       name,
		Hash:           hash,
		FileProperties: props,
	}

	rotation, _ := s.decoder.ReadOrientation(data)
	img, err := s.decoder.Decode(data, rotation)
	if err != nil {
		s.logger.Debug("asset is corrupted", slog.String("path", path), slog.String("error", err.Error()))
		asset.MarkCorrupted()
		return asset, nil, nil
	}

	asset.ImageRotation = rotation
	if rotation != models.Rotate0 {
		asset.MarkRotated()
	}
	bounds := img.Bounds()
	asset.Pixel.Asset = models.Size{Width: bounds.Dx(), Height: bounds.Dy()}

	thumbnail, size, err := s.renderer.Thumbnail(img, s.opts.ThumbnailMaxWidth, s.opts.ThumbnailMaxHeight)
	if err != nil {
		s.logger.Warn("failed to render thumbnail", slog.String("path", path), slog.String("error", err.Error()))
		return asset, nil, nil
	}
	asset.Pixel.Thumbnail = size
	asset.ThumbnailCreationDateTime = s.clock.Now()
	return asset, thumbnail, nil
}

// CreateAsset catalogues one file outside of a run, adding its folder when
// needed and replacing an existing record of the same file.
func (s *Service) CreateAsset(folderPath, fileName string) (*models.Asset, error) {
	path := filepath.Join(folderPath, fileName)
	if err := s.repo.ValidateField(path); err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	folder, err := s.repo.AddFolder(folderPath)
	if err != nil {
		return nil, err
	}
	asset, thumbnail, err := s.buildAsset(folder, fileName, fileProperties(info))
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteAsset(folder.Path, fileName); err != nil {
		return nil, err
	}
	if err := s.repo.AddAsset(asset, thumbnail); err != nil {
		return nil, err
	}
	return asset, nil
}
