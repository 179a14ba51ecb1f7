package repository

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/victor/stormcatalog/internal/models"
)

// SaveProgress reports one completed step of SaveCatalog
type SaveProgress struct {
	Step      string
	Completed int
	Total     int
}

// SaveCatalog writes every table and the pending thumbnails, then takes a
// backup. The dirty flag is only cleared once everything succeeded.
func (r *AssetRepository) SaveCatalog(progress func(SaveProgress)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]string, 0, len(r.pendingThumbnails))
	for path := range r.pendingThumbnails {
		if r.unreadableThumbnails[path] {
			r.logger.Warn("keeping unreadable thumbnails untouched", slog.String("folder", path))
			continue
		}
		pending = append(pending, path)
	}
	sort.Strings(pending)
	detached := make([]string, 0, len(r.detachedFolders))
	for path := range r.detachedFolders {
		detached = append(detached, path)
	}
	sort.Strings(detached)

	total := 6 + len(pending) + len(detached)
	done := 0
	report := func(step string) {
		done++
		if progress != nil {
			progress(SaveProgress{Step: step, Completed: done, Total: total})
		}
	}

	folders := make([]models.Folder, 0, len(r.folders))
	assets := make([]models.Asset, 0, len(r.assetIndex))
	for _, folder := range r.folders {
		folders = append(folders, *folder)
		for _, asset := range r.assetsByFolder[folder.ID] {
			assets = append(assets, *asset)
		}
	}

	if err := r.db.Folders.Write(folders); err != nil {
		return fmt.Errorf("failed to save folders: %w", err)
	}
	report("folders")
	if err := r.db.Assets.Write(assets); err != nil {
		return fmt.Errorf("failed to save assets: %w", err)
	}
	report("assets")
	if err := r.db.SyncDefinitions.Write(r.syncDefinitions); err != nil {
		return fmt.Errorf("failed to save sync definitions: %w", err)
	}
	report("sync definitions")
	if err := r.db.RecentTargetPaths.Write(r.recentTargetPaths); err != nil {
		return fmt.Errorf("failed to save recent target paths: %w", err)
	}
	report("recent target paths")
	var runs []time.Time
	if !r.lastCatalogRun.IsZero() {
		runs = append(runs, r.lastCatalogRun)
	}
	if err := r.db.CatalogRuns.Write(runs); err != nil {
		return fmt.Errorf("failed to save catalog runs: %w", err)
	}
	report("catalog runs")

	for _, path := range detached {
		if err := r.db.DeleteBlob(path); err != nil {
			return fmt.Errorf("failed to delete thumbnails of %s: %w", path, err)
		}
		report("thumbnails")
	}
	for _, path := range pending {
		if err := r.writeThumbnails(path); err != nil {
			return err
		}
		report("thumbnails")
	}

	snap, err := r.db.Backup()
	if err != nil {
		return fmt.Errorf("failed to back up catalog: %w", err)
	}
	report("backup")

	r.pendingThumbnails = make(map[string]map[string][]byte)
	r.pendingOrder = nil
	r.unreadableThumbnails = make(map[string]bool)
	r.detachedFolders = make(map[string]bool)
	r.hasChanges = false
	r.logger.Debug("catalog saved",
		slog.Int("folders", len(folders)),
		slog.Int("assets", len(assets)),
		slog.String("backup", snap.Name))
	return nil
}
