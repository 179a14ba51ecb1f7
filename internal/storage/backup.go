package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/apperr"
	"github.com/victor/stormcatalog/internal/clock"
)

const (
	completeMarker   = "COMPLETE"
	backupTimeLayout = "20060102T150405"
)

// Snapshot is one versioned copy of the storage directories
type Snapshot struct {
	Name      string
	Version   int
	CreatedAt time.Time
	Path      string
	Complete  bool
}

// BackupStore snapshots a set of named source directories into versioned
// folders. A snapshot only counts once its completion marker exists.
type BackupStore struct {
	fs      afero.Fs
	dir     string
	sources map[string]string
	clock   clock.Clock
}

// NewBackupStore creates the backup directory if needed. sources maps the
// name of each copy inside a snapshot to the directory it mirrors.
func NewBackupStore(fs afero.Fs, dir string, sources map[string]string, clk clock.Clock) (*BackupStore, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("backup sources: %w", apperr.ErrMissingArgument)
	}
	for name, source := range sources {
		if within(dir, source) {
			return nil, fmt.Errorf("backup directory %s must not be inside source %s (%s)", dir, name, source)
		}
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &BackupStore{fs: fs, dir: dir, sources: sources, clock: clk}, nil
}

// Dir returns the backup root
func (s *BackupStore) Dir() string {
	return s.dir
}

// CreateBackup copies every source directory into a new snapshot and
// writes the completion marker last.
func (s *BackupStore) CreateBackup() (Snapshot, error) {
	all, err := s.scan()
	if err != nil {
		return Snapshot{}, err
	}

	version := 1
	for _, snap := range all {
		if snap.Version >= version {
			version = snap.Version + 1
		}
	}

	now := s.clock.Now().UTC()
	name := fmt.Sprintf("%06d_%s", version, now.Format(backupTimeLayout))
	target := filepath.Join(s.dir, name)
	if err := s.fs.MkdirAll(target, 0755); err != nil {
		return Snapshot{}, fmt.Errorf("failed to create backup %s: %w", name, err)
	}

	for _, key := range s.sourceNames() {
		if err := copyTree(s.fs, s.sources[key], filepath.Join(target, key)); err != nil {
			return Snapshot{}, fmt.Errorf("failed to back up %s: %w", key, err)
		}
	}

	marker := filepath.Join(target, completeMarker)
	if err := afero.WriteFile(s.fs, marker, []byte(now.Format(time.RFC3339)), 0644); err != nil {
		return Snapshot{}, fmt.Errorf("failed to complete backup %s: %w", name, err)
	}

	return Snapshot{Name: name, Version: version, CreatedAt: now, Path: target, Complete: true}, nil
}

// Backups lists complete snapshots, oldest first
func (s *BackupStore) Backups() ([]Snapshot, error) {
	all, err := s.scan()
	if err != nil {
		return nil, err
	}
	complete := all[:0]
	for _, snap := range all {
		if snap.Complete {
			complete = append(complete, snap)
		}
	}
	return complete, nil
}

// Latest returns the newest complete snapshot
func (s *BackupStore) Latest() (Snapshot, error) {
	backups, err := s.Backups()
	if err != nil {
		return Snapshot{}, err
	}
	if len(backups) == 0 {
		return Snapshot{}, apperr.ErrNoBackup
	}
	return backups[len(backups)-1], nil
}

// PruneBackups deletes incomplete snapshots and the oldest complete ones
// beyond keep. It returns the removed snapshots.
func (s *BackupStore) PruneBackups(keep int) ([]Snapshot, error) {
	if keep < 1 {
		return nil, fmt.Errorf("backups to keep must be at least 1, got %d", keep)
	}

	all, err := s.scan()
	if err != nil {
		return nil, err
	}

	var complete, removed []Snapshot
	for _, snap := range all {
		if !snap.Complete {
			if err := s.fs.RemoveAll(snap.Path); err != nil {
				return removed, fmt.Errorf("failed to remove incomplete backup %s: %w", snap.Name, err)
			}
			removed = append(removed, snap)
			continue
		}
		complete = append(complete, snap)
	}

	for len(complete) > keep {
		oldest := complete[0]
		if err := s.fs.RemoveAll(oldest.Path); err != nil {
			return removed, fmt.Errorf("failed to remove backup %s: %w", oldest.Name, err)
		}
		removed = append(removed, oldest)
		complete = complete[1:]
	}
	return removed, nil
}

// RestoreLatestBackup replaces every source directory with its copy from
// the newest complete snapshot.
func (s *BackupStore) RestoreLatestBackup() (Snapshot, error) {
	latest, err := s.Latest()
	if err != nil {
		return Snapshot{}, err
	}

	for _, key := range s.sourceNames() {
		source := s.sources[key]
		if err := s.fs.RemoveAll(source); err != nil {
			return latest, fmt.Errorf("failed to clear %s before restore: %w", source, err)
		}
		if err := copyTree(s.fs, filepath.Join(latest.Path, key), source); err != nil {
			return latest, fmt.Errorf("failed to restore %s from %s: %w", key, latest.Name, err)
		}
	}
	return latest, nil
}

func (s *BackupStore) sourceNames() []string {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scan lists every snapshot directory, complete or not, ordered by version
func (s *BackupStore) scan() ([]Snapshot, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		snap, ok := parseSnapshotName(entry.Name())
		if !ok {
			continue
		}
		snap.Path = filepath.Join(s.dir, entry.Name())
		snap.Complete, err = afero.Exists(s.fs, filepath.Join(snap.Path, completeMarker))
		if err != nil {
			return nil, fmt.Errorf("failed to inspect backup %s: %w", snap.Name, err)
		}
		snapshots = append(snapshots, snap)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Version < snapshots[j].Version
	})
	return snapshots, nil
}

func parseSnapshotName(name string) (Snapshot, bool) {
	versionPart, timePart, ok := strings.Cut(name, "_")
	if !ok {
		return Snapshot{}, false
	}
	version, err := strconv.Atoi(versionPart)
	if err != nil || version < 1 {
		return Snapshot{}, false
	}
	created, err := time.Parse(backupTimeLayout, timePart)
	if err != nil {
		return Snapshot{}, false
	}
	return Snapshot{Name: name, Version: version, CreatedAt: created}, true
}

// copyTree mirrors src into dst. A missing src produces an empty dst.
func copyTree(fs afero.Fs, src, dst string) error {
	if err := fs.MkdirAll(dst, 0755); err != nil {
		return err
	}
	exists, err := afero.DirExists(fs, src)
	if err != nil || !exists {
		return err
	}

	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, 0755)
		}
		if strings.HasSuffix(path, workInProgressSuffix) {
			return nil
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		return afero.WriteFile(fs, target, data, 0644)
	})
}

func within(path, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
