// Package repository holds the in-memory catalog of folders and assets and
// persists it through the database facade.
package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/victor/stormcatalog/internal/apperr"
	"github.com/victor/stormcatalog/internal/clock"
	"github.com/victor/stormcatalog/internal/database"
	"github.com/victor/stormcatalog/internal/logging"
	"github.com/victor/stormcatalog/internal/models"
)

const maxRecentTargetPaths = 20

type assetKey struct {
	folderID string
	fileName string
}

// Option configures an AssetRepository
type Option func(*AssetRepository)

// WithIDGenerator replaces the uuid generator used for new folders
func WithIDGenerator(ids clock.IDGenerator) Option {
	return func(r *AssetRepository) { r.ids = ids }
}

// WithLogger sets the repository logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *AssetRepository) { r.logger = logger }
}

// AssetRepository is the single in-memory catalog. It is safe to read
// concurrently; mutations are expected from one logical operation at a time.
type AssetRepository struct {
	db     *database.DB
	ids    clock.IDGenerator
	logger *slog.Logger

	mu                sync.RWMutex
	folders           []*models.Folder
	foldersByPath     map[string]*models.Folder
	foldersByID       map[string]*models.Folder
	assetsByFolder    map[string][]*models.Asset
	assetIndex        map[assetKey]*models.Asset
	syncDefinitions   []models.SyncDefinition
	recentTargetPaths []string

	lastCatalogRun    time.Time

	// thumbnails changed since the last save, keyed by folder path
	pendingThumbnails map[string]map[string][]byte
	pendingOrder      []string
	// folders whose stored blob could not be decoded; never written back
	unreadableThumbnails map[string]bool
	detachedFolders      map[string]bool
	hasChanges           bool
}

// New creates an empty repository bound to db. Call Initialize to load the tables.
func New(db *database.DB, opts ...Option) *AssetRepository {
	r := &AssetRepository{
		db:  db,
		ids: clock.UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	r.reset()
	return r
}

func (r *AssetRepository) reset() {
	r.folders = nil
	r.foldersByPath = make(map[string]*models.Folder)
	r.foldersByID = make(map[string]*models.Folder)
	r.assetsByFolder = make(map[string][]*models.Asset)
	r.assetIndex = make(map[assetKey]*models.Asset)
	r.syncDefinitions = nil
	r.recentTargetPaths = nil
	r.lastCatalogRun = time.Time{}
	r.pendingThumbnails = make(map[string]map[string][]byte)
	r.pendingOrder = nil
	r.unreadableThumbnails = make(map[string]bool)
	r.detachedFolders = make(map[string]bool)
	r.hasChanges = false
}

// Initialize loads every table. Corrupt tables trigger a restore of the
// latest backup; if nothing usable remains the catalog starts empty.
func (r *AssetRepository) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.load()
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperr.ErrCorruptTable) {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	r.logger.Warn("catalog tables unreadable, restoring latest backup", slog.String("error", err.Error()))
	snap, restoreErr := r.db.RestoreLatestBackup()
	if restoreErr != nil {
		r.logger.Error("backup restore failed, starting with an empty catalog", slog.String("error", restoreErr.Error()))
		r.reset()
		return nil
	}
	if err := r.load(); err != nil {
		r.logger.Error("restored backup unreadable, starting with an empty catalog",
			slog.String("backup", snap.Name), slog.String("error", err.Error()))
		r.reset()
		return nil
	}
	r.logger.Info("catalog restored from backup", slog.String("backup", snap.Name))
	return nil
}

// load must be called with mu held
func (r *AssetRepository) load() error {
	r.reset()

	folders, err := r.db.Folders.Read()
	if err != nil {
		return err
	}
	assets, err := r.db.Assets.Read()
	if err != nil {
		return err
	}
	definitions, err := r.db.SyncDefinitions.Read()
	if err != nil {
		return err
	}
	recent, err := r.db.RecentTargetPaths.Read()
	if err != nil {
		return err
	}
	runs, err := r.db.CatalogRuns.Read()
	if err != nil {
		return err
	}

	for i := range folders {
		folder := folders[i]
		folder.Path = models.NormalizePath(folder.Path)
		if _, exists := r.foldersByPath[folder.Path]; exists {
			r.logger.Warn("skipping duplicate folder", slog.String("path", folder.Path))
			continue
		}
		r.insertFolder(&folder)
	}

	for i := range assets {
		asset := assets[i]
		folder, ok := r.foldersByID[asset.FolderID]
		if !ok {
			r.logger.Warn("skipping asset of unknown folder",
				slog.String("folder_id", asset.FolderID), slog.String("file", asset.FileName))
			continue
		}
		key := assetKey{folderID: asset.FolderID, fileName: asset.FileName}
		if _, exists := r.assetIndex[key]; exists {
			continue
		}
		asset.Folder = folder
		r.insertAsset(&asset)
	}

	r.syncDefinitions = definitions
	r.recentTargetPaths = recent
	if len(runs) > 0 {
		r.lastCatalogRun = runs[len(runs)-1]
	}
	r.hasChanges = false
	return nil
}

func (r *AssetRepository) insertFolder(folder *models.Folder) {
	r.folders = append(r.folders, folder)
	r.foldersByPath[folder.Path] = folder
	r.foldersByID[folder.ID] = folder
}

func (r *AssetRepository) insertAsset(asset *models.Asset) {
	r.assetsByFolder[asset.FolderID] = append(r.assetsByFolder[asset.FolderID], asset)
	r.assetIndex[assetKey{folderID: asset.FolderID, fileName: asset.FileName}] = asset
}

// ValidateField reports whether value, a path or a file name, can be persisted
func (r *AssetRepository) ValidateField(value string) error {
	return r.db.ValidateField(value)
}

// HasChanges reports whether there are mutations not yet saved
func (r *AssetRepository) HasChanges() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasChanges
}

// AddFolder registers a directory. An existing folder with the same
// normalized path is returned unchanged.
func (r *AssetRepository) AddFolder(path string) (*models.Folder, error) {
	if path == "" {
		return nil, fmt.Errorf("folder path: %w", apperr.ErrMissingArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	normalized := models.NormalizePath(path)
	if folder, ok := r.foldersByPath[normalized]; ok {
		return folder, nil
	}
	if err := r.db.ValidateField(normalized); err != nil {
		return nil, fmt.Errorf("folder path: %w", err)
	}

	folder := &models.Folder{ID: r.ids.New(), Path: normalized}
	r.insertFolder(folder)
	if r.detachedFolders[normalized] {
		delete(r.detachedFolders, normalized)
		delete(r.unreadableThumbnails, normalized)
		r.setPending(normalized, map[string][]byte{})
	}
	r.hasChanges = true
	return folder, nil
}

// FolderExists reports whether path is catalogued
func (r *AssetRepository) FolderExists(path string) bool {
	_, ok := r.GetFolderByPath(path)
	return ok
}

// GetFolderByPath looks a folder up by its normalized path
func (r *AssetRepository) GetFolderByPath(path string) (*models.Folder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	folder, ok := r.foldersByPath[models.NormalizePath(path)]
	return folder, ok
}

// GetFolderByID looks a folder up by its identifier
func (r *AssetRepository) GetFolderByID(id string) (*models.Folder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	folder, ok := r.foldersByID[id]
	return folder, ok
}

// GetFolders returns every folder in insertion order
func (r *AssetRepository) GetFolders() []*models.Folder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*models.Folder(nil), r.folders...)
}

// GetSubFolders returns the catalogued direct children of parentPath
func (r *AssetRepository) GetSubFolders(parentPath string, includeHidden bool) []*models.Folder {
	parent := models.NormalizePath(parentPath)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var children []*models.Folder
	for _, folder := range r.folders {
		if folder.Path == parent || filepath.Dir(folder.Path) != parent {
			continue
		}
		if !includeHidden && models.IsHidden(folder.Name()) {
			continue
		}
		children = append(children, folder)
	}
	return children
}

// DeleteFolder detaches a folder: its record, its assets and its thumbnails.
// Unknown folders are ignored.
func (r *AssetRepository) DeleteFolder(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	normalized := models.NormalizePath(path)
	folder, ok := r.foldersByPath[normalized]
	if !ok {
		return
	}

	for _, asset := range r.assetsByFolder[folder.ID] {
		delete(r.assetIndex, assetKey{folderID: folder.ID, fileName: asset.FileName})
	}
	delete(r.assetsByFolder, folder.ID)
	delete(r.foldersByPath, normalized)
	delete(r.foldersByID, folder.ID)
	for i, f := range r.folders {
		if f == folder {
			r.folders = append(r.folders[:i], r.folders[i+1:]...)
			break
		}
	}

	r.dropPending(normalized)
	delete(r.unreadableThumbnails, normalized)
	r.detachedFolders[normalized] = true
	r.hasChanges = true
}

// AddAsset catalogues an asset of a known folder together with its thumbnail
func (r *AssetRepository) AddAsset(asset *models.Asset, thumbnail []byte) error {
	if asset == nil || asset.FileName == "" {
		return fmt.Errorf("asset: %w", apperr.ErrMissingArgument)
	}
	if err := r.db.ValidateField(asset.FileName); err != nil {
		return fmt.Errorf("asset file name: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	folder, ok := r.foldersByID[asset.FolderID]
	if !ok {
		return fmt.Errorf("folder %s: %w", asset.FolderID, apperr.ErrNotFound)
	}
	key := assetKey{folderID: folder.ID, fileName: asset.FileName}
	if _, exists := r.assetIndex[key]; exists {
		return fmt.Errorf("asset %s in %s: %w", asset.FileName, folder.Path, apperr.ErrAlreadyExists)
	}

	var thumbnails map[string][]byte
	if thumbnail != nil {
		var err error
		if thumbnails, err = r.pendingFor(folder.Path); err != nil {
			return err
		}
	}

	asset.Folder = folder
	r.insertAsset(asset)
	if thumbnails != nil {
		thumbnails[asset.FileName] = thumbnail
	}
	r.hasChanges = true
	return nil
}

// GetAssets returns the assets of one folder in insertion order
func (r *AssetRepository) GetAssets(folderPath string) []*models.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	folder, ok := r.foldersByPath[models.NormalizePath(folderPath)]
	if !ok {
		return nil
	}
	return append([]*models.Asset(nil), r.assetsByFolder[folder.ID]...)
}

// GetCataloguedAssets returns every asset, folders in insertion order first
func (r *AssetRepository) GetCataloguedAssets() []*models.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*models.Asset
	for _, folder := range r.folders {
		all = append(all, r.assetsByFolder[folder.ID]...)
	}
	return all
}

// GetAsset returns one asset by folder path and file name
func (r *AssetRepository) GetAsset(folderPath, fileName string) (*models.Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	folder, ok := r.foldersByPath[models.NormalizePath(folderPath)]
	if !ok {
		return nil, false
	}
	asset, ok := r.assetIndex[assetKey{folderID: folder.ID, fileName: fileName}]
	return asset, ok
}

// IsAssetCatalogued reports whether fileName is catalogued in folderPath
func (r *AssetRepository) IsAssetCatalogued(folderPath, fileName string) bool {
	_, ok := r.GetAsset(folderPath, fileName)
	return ok
}

// DeleteAsset removes an asset and its thumbnail. Deleting an unknown asset is a no-op.
func (r *AssetRepository) DeleteAsset(folderPath, fileName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	normalized := models.NormalizePath(folderPath)
	folder, ok := r.foldersByPath[normalized]
	if !ok {
		return nil
	}
	key := assetKey{folderID: folder.ID, fileName: fileName}
	asset, ok := r.assetIndex[key]
	if !ok {
		return nil
	}

	thumbnails, err := r.pendingFor(normalized)
	if err != nil {
		return err
	}

	delete(r.assetIndex, key)
	assets := r.assetsByFolder[folder.ID]
	for i, a := range assets {
		if a == asset {
			r.assetsByFolder[folder.ID] = append(assets[:i], assets[i+1:]...)
			break
		}
	}
	delete(thumbnails, fileName)
	r.hasChanges = true
	return nil
}

// UpdateAssetProperties refreshes the filesystem metadata of an asset
func (r *AssetRepository) UpdateAssetProperties(folderPath, fileName string, props models.FileProperties) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	folder, ok := r.foldersByPath[models.NormalizePath(folderPath)]
	if !ok {
		return fmt.Errorf("folder %s: %w", folderPath, apperr.ErrNotFound)
	}
	asset, ok := r.assetIndex[assetKey{folderID: folder.ID, fileName: fileName}]
	if !ok {
		return fmt.Errorf("asset %s in %s: %w", fileName, folderPath, apperr.ErrNotFound)
	}
	if asset.FileProperties != props {
		asset.FileProperties = props
		r.hasChanges = true
	}
	return nil
}

// GetSyncDefinitions returns the stored sync definitions
func (r *AssetRepository) GetSyncDefinitions() []models.SyncDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.SyncDefinition(nil), r.syncDefinitions...)
}

// SetSyncDefinitions replaces the stored sync definitions
func (r *AssetRepository) SetSyncDefinitions(definitions []models.SyncDefinition) error {
	for _, d := range definitions {
		for _, dir := range []string{d.SourceDirectory, d.DestinationDirectory} {
			if err := r.db.ValidateField(dir); err != nil {
				return fmt.Errorf("sync definition: %w", err)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncDefinitions = append([]models.SyncDefinition(nil), definitions...)
	r.hasChanges = true
	return nil
}

// GetRecentTargetPaths returns move destinations, most recent first
func (r *AssetRepository) GetRecentTargetPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.recentTargetPaths...)
}

// AddRecentTargetPath moves path to the front of the recent destinations
func (r *AssetRepository) AddRecentTargetPath(path string) {
	normalized := models.NormalizePath(path)
	if err := r.db.ValidateField(normalized); err != nil {
		r.logger.Warn("not remembering target path", slog.String("error", err.Error()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	paths := []string{normalized}
	for _, p := range r.recentTargetPaths {
		if p != normalized {
			paths = append(paths, p)
		}
	}
	if len(paths) > maxRecentTargetPaths {
		paths = paths[:maxRecentTargetPaths]
	}
	r.recentTargetPaths = paths
	r.hasChanges = true
}

// LastCatalogRun returns when the last catalog run completed, zero if never
func (r *AssetRepository) LastCatalogRun() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastCatalogRun
}

// SetLastCatalogRun records the completion of a catalog run. It is persisted
// by the next SaveCatalog.
func (r *AssetRepository) SetLastCatalogRun(completed time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !completed.Equal(r.lastCatalogRun) {
		r.lastCatalogRun = completed
		r.hasChanges = true
	}
}
