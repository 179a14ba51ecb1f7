package sync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/apperr"
	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/repository"
)

// AssetCreator catalogues a single file
type AssetCreator interface {
	CreateAsset(folderPath, fileName string) (*models.Asset, error)
}

// MoveService copies, moves and deletes catalogued files
type MoveService struct {
	repo    *repository.AssetRepository
	creator AssetCreator
	fs      afero.Fs
}

func NewMoveService(repo *repository.AssetRepository, creator AssetCreator, fs afero.Fs) *MoveService {
	return &MoveService{repo: repo, creator: creator, fs: fs}
}

// CopyAsset copies the file at source to destination and catalogues the copy.
// It returns false when the source file does not exist.
func (m *MoveService) CopyAsset(source, destination string) (bool, error) {
	if source == "" || destination == "" {
		return false, fmt.Errorf("copy paths: %w", apperr.ErrMissingArgument)
	}
	info, err := m.fs.Stat(source)
	if err != nil || info.IsDir() {
		return false, nil
	}

	if err := copyFile(m.fs, source, destination, info.Mode().Perm()); err != nil {
		return false, err
	}
	if err := m.fs.Chtimes(destination, info.ModTime(), info.ModTime()); err != nil {
		return false, fmt.Errorf("failed to preserve times of %s: %w", destination, err)
	}

	if _, err := m.creator.CreateAsset(filepath.Dir(destination), filepath.Base(destination)); err != nil {
		return false, fmt.Errorf("failed to catalog %s: %w", destination, err)
	}
	return true, nil
}

// MoveAssets copies every asset into destinationFolder and, unless
// preserveOriginal is set, removes the originals. It stops at the first
// asset whose source is gone.
func (m *MoveService) MoveAssets(assets []*models.Asset, destinationFolder string, preserveOriginal bool) (bool, error) {
	if len(assets) == 0 || destinationFolder == "" {
		return false, fmt.Errorf("assets and destination: %w", apperr.ErrMissingArgument)
	}
	destinationFolder = models.NormalizePath(destinationFolder)

	for _, asset := range assets {
		source := asset.FullPath()
		destination := filepath.Join(destinationFolder, asset.FileName)
		if source == destination {
			return false, fmt.Errorf("%s is already in %s: %w", asset.FileName, destinationFolder, apperr.ErrAlreadyExists)
		}

		ok, err := m.CopyAsset(source, destination)
		if err != nil || !ok {
			return false, err
		}
		if preserveOriginal {
			continue
		}
		if err := m.fs.Remove(source); err != nil {
			return false, fmt.Errorf("failed to remove %s: %w", source, err)
		}
		if asset.Folder != nil {
			if err := m.repo.DeleteAsset(asset.Folder.Path, asset.FileName); err != nil {
				return false, err
			}
		}
	}

	m.repo.AddRecentTargetPath(destinationFolder)
	return true, nil
}

// DeleteAssets removes the records of assets and, when deleteFiles is set,
// their files. Files already gone are ignored.
func (m *MoveService) DeleteAssets(assets []*models.Asset, deleteFiles bool) error {
	if len(assets) == 0 {
		return fmt.Errorf("assets: %w", apperr.ErrMissingArgument)
	}
	for _, asset := range assets {
		if deleteFiles {
			if exists, _ := afero.Exists(m.fs, asset.FullPath()); exists {
				if err := m.fs.Remove(asset.FullPath()); err != nil {
					return fmt.Errorf("failed to remove %s: %w", asset.FullPath(), err)
				}
			}
		}
		if asset.Folder != nil {
			if err := m.repo.DeleteAsset(asset.Folder.Path, asset.FileName); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(fs afero.Fs, source, destination string, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(destination), err)
	}

	in, err := fs.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer in.Close()

	tmp := destination + ".wip"
	out, err := fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destination, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to copy %s: %w", source, err)
	}
	if err := out.Close(); err != nil {
		_ = fs.Remove(tmp)
		return err
	}
	if perm != 0 {
		_ = fs.Chmod(tmp, perm)
	}
	return fs.Rename(tmp, destination)
}
