// Package database composes the table, blob and backup stores behind named tables.
package database

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/clock"
	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/storage"
)

const (
	FoldersTable           = "folders"
	AssetsTable            = "assets"
	SyncDefinitionsTable   = "syncdefinitions"
	RecentTargetPathsTable = "recenttargetpaths"
	CatalogRunsTable       = "catalogruns"
)

// Paths locates the storage sub-directories
type Paths struct {
	Root    string
	Tables  string
	Blobs   string
	Backups string
}

// NewPaths joins the sub-directory names onto root
func NewPaths(root, tablesDir, blobsDir, backupsDir string) Paths {
	return Paths{
		Root:    root,
		Tables:  filepath.Join(root, tablesDir),
		Blobs:   filepath.Join(root, blobsDir),
		Backups: filepath.Join(root, backupsDir),
	}
}

// Options tune the stores
type Options struct {
	Separator                         rune
	ThumbnailsDictionaryEntriesToKeep int
	BackupsToKeep                     int
	Clock                             clock.Clock
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{
		Separator:                         '|',
		ThumbnailsDictionaryEntriesToKeep: 5,
		BackupsToKeep:                     2,
		Clock:                             clock.RealClock{},
	}
}

type DB struct {
	fs      afero.Fs
	paths   Paths
	opts    Options
	tables  *storage.TableStore
	blobs   *storage.BlobStore
	backups *storage.BackupStore

	Folders           *storage.Table[models.Folder]
	Assets            *storage.Table[models.Asset]
	SyncDefinitions   *storage.Table[models.SyncDefinition]
	RecentTargetPaths *storage.Table[string]
	// completion time of the last catalog run, at most one row
	CatalogRuns *storage.Table[time.Time]
}

// NewDB opens (and creates when needed) the storage directories
func NewDB(fs afero.Fs, paths Paths, opts Options) (*DB, error) {
	if opts.Separator == 0 {
		opts.Separator = DefaultOptions().Separator
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.BackupsToKeep < 1 {
		return nil, fmt.Errorf("backups to keep must be at least 1, got %d", opts.BackupsToKeep)
	}

	tables, err := storage.NewTableStore(fs, paths.Tables, opts.Separator)
	if err != nil {
		return nil, fmt.Errorf("failed to open tables: %w", err)
	}
	blobs, err := storage.NewBlobStore(fs, paths.Blobs, opts.ThumbnailsDictionaryEntriesToKeep)
	if err != nil {
		return nil, fmt.Errorf("failed to open blobs: %w", err)
	}
	backups, err := storage.NewBackupStore(fs, paths.Backups, map[string]string{
		filepath.Base(paths.Tables): paths.Tables,
		filepath.Base(paths.Blobs):  paths.Blobs,
	}, opts.Clock)
	if err != nil {
		return nil, fmt.Errorf("failed to open backups: %w", err)
	}

	return &DB{
		fs:                fs,
		paths:             paths,
		opts:              opts,
		tables:            tables,
		blobs:             blobs,
		backups:           backups,
		Folders:           storage.NewTable[models.Folder](tables, FoldersTable, folderCodec{}),
		Assets:            storage.NewTable[models.Asset](tables, AssetsTable, assetCodec{}),
		SyncDefinitions:   storage.NewTable[models.SyncDefinition](tables, SyncDefinitionsTable, syncDefinitionCodec{}),
		RecentTargetPaths: storage.NewTable[string](tables, RecentTargetPathsTable, pathCodec{}),
		CatalogRuns:       storage.NewTable[time.Time](tables, CatalogRunsTable, timeCodec{}),
	}, nil
}

// Paths returns the storage layout
func (db *DB) Paths() Paths {
	return db.paths
}

// Fs returns the filesystem the stores write to
func (db *DB) Fs() afero.Fs {
	return db.fs
}

// ValidateField reports whether value can be stored in a table column
func (db *DB) ValidateField(value string) error {
	if err := db.tables.ValidField(value); err != nil {
		return fmt.Errorf("%q contains %q or a line break: %w", value, db.opts.Separator, err)
	}
	return nil
}

// ThumbnailsDictionaryEntriesToKeep returns how many folder blobs stay in memory
func (db *DB) ThumbnailsDictionaryEntriesToKeep() int {
	return db.opts.ThumbnailsDictionaryEntriesToKeep
}

// ReadBlob returns the thumbnail blob of a folder
func (db *DB) ReadBlob(folderPath string) ([]byte, bool, error) {
	return db.blobs.ReadBlob(folderPath)
}

// WriteBlob persists the thumbnail blob of a folder
func (db *DB) WriteBlob(folderPath string, data []byte) error {
	return db.blobs.WriteBlob(folderPath, data)
}

// DeleteBlob removes the thumbnail blob of a folder
func (db *DB) DeleteBlob(folderPath string) error {
	return db.blobs.DeleteBlob(folderPath)
}

// ResidentBlobs lists the folders whose blobs are held in memory
func (db *DB) ResidentBlobs() []string {
	return db.blobs.Resident()
}

// Backup snapshots the tables and blobs, then prunes snapshots beyond the retention count
func (db *DB) Backup() (storage.Snapshot, error) {
	snap, err := db.backups.CreateBackup()
	if err != nil {
		return storage.Snapshot{}, err
	}
	if _, err := db.backups.PruneBackups(db.opts.BackupsToKeep); err != nil {
		return snap, fmt.Errorf("backup %s created but pruning failed: %w", snap.Name, err)
	}
	return snap, nil
}

// RestoreLatestBackup replaces tables and blobs with the newest complete snapshot
func (db *DB) RestoreLatestBackup() (storage.Snapshot, error) {
	snap, err := db.backups.RestoreLatestBackup()
	db.blobs.Clear()
	return snap, err
}

// Backups lists complete snapshots, oldest first
func (db *DB) Backups() ([]storage.Snapshot, error) {
	return db.backups.Backups()
}
