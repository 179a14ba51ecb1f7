// Package sync copies, moves and mirrors catalogued image files.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/logging"
	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/repository"
)

// DirectoryPlan lists the work needed to mirror one source directory
type DirectoryPlan struct {
	Source        string
	Destination   string
	SourceMissing bool
	ToCopy        []string
	ToDelete      []string
}

// Result reports the outcome for one source directory
type Result struct {
	Source        string
	Destination   string
	SyncedImages  int
	DeletedImages int
	Message       string
}

// SyncService mirrors the image files of the stored sync definitions
type SyncService struct {
	repo   *repository.AssetRepository
	fs     afero.Fs
	mover  *MoveService
	logger *slog.Logger

	// DryRun computes results without touching files or the catalog
	DryRun bool
}

func NewSyncService(repo *repository.AssetRepository, fs afero.Fs, mover *MoveService, logger *slog.Logger) *SyncService {
	return &SyncService{repo: repo, fs: fs, mover: mover, logger: logging.OrDiscard(logger)}
}

// Plan compares a source tree with its destination by file name
func (s *SyncService) Plan(def models.SyncDefinition) ([]DirectoryPlan, error) {
	var plans []DirectoryPlan
	err := s.plan(def, models.NormalizePath(def.SourceDirectory), models.NormalizePath(def.DestinationDirectory), &plans)
	return plans, err
}

func (s *SyncService) plan(def models.SyncDefinition, source, destination string, plans *[]DirectoryPlan) error {
	sourceImages, subDirs, err := s.listImages(source)
	if err != nil {
		if exists, _ := afero.DirExists(s.fs, source); !exists {
			*plans = append(*plans, DirectoryPlan{Source: source, Destination: destination, SourceMissing: true})
			return nil
		}
		return fmt.Errorf("failed to list source %s: %w", source, err)
	}

	destinationImages := map[string]bool{}
	if exists, _ := afero.DirExists(s.fs, destination); exists {
		names, _, err := s.listImages(destination)
		if err != nil {
			return fmt.Errorf("failed to list destination %s: %w", destination, err)
		}
		for _, name := range names {
			destinationImages[name] = true
		}
	}

	p := DirectoryPlan{Source: source, Destination: destination}
	inSource := make(map[string]bool, len(sourceImages))
	for _, name := range sourceImages {
		inSource[name] = true
		if !destinationImages[name] {
			p.ToCopy = append(p.ToCopy, name)
		}
	}
	if def.DeleteAssetsNotInSource {
		for name := range destinationImages {
			if !inSource[name] {
				p.ToDelete = append(p.ToDelete, name)
			}
		}
		sort.Strings(p.ToDelete)
	}
	*plans = append(*plans, p)

	if !def.IncludeSubFolders {
		return nil
	}
	for _, dir := range subDirs {
		if err := s.plan(def, filepath.Join(source, dir), filepath.Join(destination, dir), plans); err != nil {
			return err
		}
	}
	return nil
}

// listImages returns the sorted visible image names and sub-directories of dir
func (s *SyncService) listImages(dir string) ([]string, []string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, nil, err
	}
	var images, dirs []string
	for _, entry := range entries {
		if models.IsHidden(entry.Name()) {
			continue
		}
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else if models.IsImageFile(entry.Name()) {
			images = append(images, entry.Name())
		}
	}
	return images, dirs, nil
}

// Execute runs every stored sync definition in order. cb, when set, receives
// each directory result as soon as it is known.
func (s *SyncService) Execute(ctx context.Context, cb func(Result)) ([]Result, error) {
	var results []Result
	for _, def := range s.repo.GetSyncDefinitions() {
		plans, err := s.Plan(def)
		if err != nil {
			return results, err
		}
		for _, p := range plans {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			result, err := s.apply(p)
			if err != nil {
				return results, err
			}
			results = append(results, result)
			if cb != nil {
				cb(result)
			}
		}
	}
	return results, nil
}

func (s *SyncService) apply(p DirectoryPlan) (Result, error) {
	result := Result{Source: p.Source, Destination: p.Destination}
	if p.SourceMissing {
		result.Message = fmt.Sprintf("Source directory '%s' not found.", p.Source)
		return result, nil
	}

	for _, name := range p.ToCopy {
		if !s.DryRun {
			ok, err := s.mover.CopyAsset(filepath.Join(p.Source, name), filepath.Join(p.Destination, name))
			if err != nil {
				return result, err
			}
			if !ok {
				continue
			}
		}
		result.SyncedImages++
	}

	for _, name := range p.ToDelete {
		if !s.DryRun {
			path := filepath.Join(p.Destination, name)
			if err := s.fs.Remove(path); err != nil {
				return result, fmt.Errorf("failed to remove %s: %w", path, err)
			}
			if err := s.repo.DeleteAsset(p.Destination, name); err != nil {
				return result, err
			}
		}
		result.DeletedImages++
	}

	result.Message = syncMessage(result.SyncedImages, p.Source, p.Destination)
	s.logger.Debug("directory synced",
		slog.String("source", p.Source),
		slog.String("destination", p.Destination),
		slog.Int("copied", result.SyncedImages),
		slog.Int("deleted", result.DeletedImages))
	return result, nil
}

func syncMessage(count int, source, destination string) string {
	switch count {
	case 0:
		return fmt.Sprintf("No images synced from '%s' to '%s'.", source, destination)
	case 1:
		return fmt.Sprintf("1 image synced from '%s' to '%s'.", source, destination)
	default:
		return fmt.Sprintf("%d images synced from '%s' to '%s'.", count, source, destination)
	}
}
