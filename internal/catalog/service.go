// Package catalog keeps the repository in step with the image files on disk.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/apperr"
	"github.com/victor/stormcatalog/internal/clock"
	"github.com/victor/stormcatalog/internal/logging"
	"github.com/victor/stormcatalog/internal/media"
	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Options control a catalog run
type Options struct {
	Roots              []string
	BatchSize          int
	Cooldown           time.Duration
	ExemptedFolderPath string
	DetectModified     bool
	SkipHidden         bool
	Workers            int
	ThumbnailMaxWidth  int
	ThumbnailMaxHeight int
	SaveAfterRun       bool
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{
		BatchSize:          1000,
		Cooldown:           5 * time.Minute,
		DetectModified:     true,
		SkipHidden:         true,
		ThumbnailMaxWidth:  200,
		ThumbnailMaxHeight: 150,
		SaveAfterRun:       true,
	}
}

// Hasher fingerprints asset content
type Hasher interface {
	CalculateHash(data []byte, path string) (string, error)
}

// Result summarises a run
type Result struct {
	Skipped        bool
	FoldersVisited int
	FoldersCreated int
	Created        int
	Deleted        int
	Corrupted      int
	Errors         []error
	Duration       time.Duration
}

// Service catalogs image files found below the configured roots
type Service struct {
	repo     *repository.AssetRepository
	hasher   Hasher
	decoder  media.Decoder
	renderer media.ThumbnailRenderer
	fs       afero.Fs
	clock    clock.Clock
	logger   *slog.Logger
	opts     Options

	run   sync.Mutex
	state atomic.Int32
}

// NewService wires the collaborators of a catalog run
func NewService(repo *repository.AssetRepository, hasher Hasher, decoder media.Decoder,
	renderer media.ThumbnailRenderer, fsys afero.Fs, clk clock.Clock, logger *slog.Logger, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ThumbnailMaxWidth <= 0 || opts.ThumbnailMaxHeight <= 0 {
		opts.ThumbnailMaxWidth = DefaultOptions().ThumbnailMaxWidth
		opts.ThumbnailMaxHeight = DefaultOptions().ThumbnailMaxHeight
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	roots := make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		roots = append(roots, models.NormalizePath(root))
	}
	opts.Roots = roots
	if opts.ExemptedFolderPath != "" {
		opts.ExemptedFolderPath = models.NormalizePath(opts.ExemptedFolderPath)
	}

	s := &Service{
		repo:     repo,
		hasher:   hasher,
		decoder:  decoder,
		renderer: renderer,
		fs:       fsys,
		clock:    clk,
		logger:   logging.OrDiscard(logger),
		opts:     opts,
	}
	if s.CooldownRemaining() > 0 {
		s.setState(CoolingDown)
	}
	return s
}

// Options returns the effective options
func (s *Service) Options() Options {
	return s.opts
}

// State reports the current phase
func (s *Service) State() State {
	state := State(s.state.Load())
	if state == CoolingDown && s.CooldownRemaining() == 0 {
		return Idle
	}
	return state
}

// CooldownRemaining is the time left before another run is accepted. The
// completion time of the last run is stored in the catalog, so the cooldown
// spans processes.
func (s *Service) CooldownRemaining() time.Duration {
	last := s.repo.LastCatalogRun()
	if last.IsZero() || s.opts.Cooldown <= 0 {
		return 0
	}
	remaining := s.opts.Cooldown - s.clock.Now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Service) setState(state State) {
	s.state.Store(int32(state))
}

// Run synchronises the catalog with the disk. Runs are serialised; a run
// requested during the cooldown of the previous one is skipped. ctx is
// checked between folders and after every batch, so a cancelled run leaves
// whole batches applied and returns ctx.Err().
func (s *Service) Run(ctx context.Context, cb Callback) (*Result, error) {
	s.run.Lock()
	defer s.run.Unlock()

	emit := func(ev Event) {
		if cb != nil {
			cb(ev)
		}
	}

	if remaining := s.CooldownRemaining(); remaining > 0 {
		result := &Result{Skipped: true}
		s.logger.Debug("catalog run skipped", slog.Duration("cooldown_remaining", remaining))
		emit(Event{Type: CatalogSkipped, Result: result})
		return result, nil
	}

	start := s.clock.Now()
	result := &Result{}
	err := s.scan(ctx, result, emit)
	result.Duration = s.clock.Now().Sub(start)

	previous := s.repo.LastCatalogRun()
	if err == nil && s.opts.Cooldown > 0 {
		s.repo.SetLastCatalogRun(s.clock.Now())
	}

	if s.opts.SaveAfterRun && s.repo.HasChanges() {
		if saveErr := s.repo.SaveCatalog(nil); saveErr != nil {
			s.repo.SetLastCatalogRun(previous)
			s.setState(Idle)
			return result, errors.Join(err, fmt.Errorf("failed to save catalog: %w", saveErr))
		}
	}

	if err != nil {
		s.setState(Idle)
		return result, err
	}

	if s.opts.Cooldown > 0 {
		s.setState(CoolingDown)
	} else {
		s.setState(Idle)
	}

	s.logger.Info("catalog run completed",
		slog.Int("folders", result.FoldersVisited),
		slog.Int("created", result.Created),
		slog.Int("deleted", result.Deleted),
		slog.Int("corrupted", result.Corrupted),
		slog.Int("errors", len(result.Errors)))
	emit(Event{Type: CatalogCompleted, Result: result})
	return result, nil
}

func (s *Service) exempted(path string) bool {
	return s.opts.ExemptedFolderPath != "" && models.IsUnder(path, s.opts.ExemptedFolderPath)
}

// scan visits every folder breadth first, root by root
func (s *Service) scan(ctx context.Context, result *Result, emit func(Event)) error {
	visited := make(map[string]bool)
	var scannedRoots []string

	for _, root := range s.opts.Roots {
		if s.exempted(root) {
			continue
		}
		if info, err := s.fs.Stat(root); err != nil || !info.IsDir() {
			result.Errors = append(result.Errors, fmt.Errorf("root %s is not a readable directory", root))
			s.logger.Warn("skipping catalog root", slog.String("root", root))
			continue
		}
		scannedRoots = append(scannedRoots, root)

		queue := []string{root}
		for len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := queue[0]
			queue = queue[1:]
			if visited[path] {
				continue
			}
			visited[path] = true

			subDirs, err := s.catalogFolder(ctx, path, result, emit)
			if err != nil {
				return err
			}
			queue = append(queue, subDirs...)
		}
	}

	return s.removeVanishedFolders(scannedRoots, visited, result, emit)
}

// catalogFolder brings one folder up to date and returns its sub-directories
func (s *Service) catalogFolder(ctx context.Context, path string, result *Result, emit func(Event)) ([]string, error) {
	s.setState(Scanning)

	entries, err := afero.ReadDir(s.fs, path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("failed to read %s: %w", path, err))
		s.logger.Warn("unreadable folder", slog.String("path", path), slog.String("error", err.Error()))
		return nil, nil
	}
	result.FoldersVisited++

	var subDirs []string
	onDisk := make(map[string]models.FileProperties)
	for _, entry := range entries {
		name := entry.Name()
		if s.opts.SkipHidden && models.IsHidden(name) {
			continue
		}
		full := filepath.Join(path, name)
		if err := s.repo.ValidateField(full); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("skipping %s: %w", full, err))
			s.logger.Warn("name cannot be catalogued", slog.String("path", full))
			continue
		}
		if entry.IsDir() {
			if !s.exempted(full) {
				subDirs = append(subDirs, full)
			}
			continue
		}
		if !entry.Mode().IsRegular() || !models.IsImageFile(name) {
			continue
		}
		onDisk[name] = fileProperties(entry)
	}

	folder, ok := s.repo.GetFolderByPath(path)
	if !ok {
		folder, err = s.repo.AddFolder(path)
		if errors.Is(err, apperr.ErrInvalidField) {
			result.Errors = append(result.Errors, fmt.Errorf("skipping %s: %w", path, err))
			s.logger.Warn("folder cannot be catalogued", slog.String("path", path))
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		result.FoldersCreated++
		emit(Event{Type: FolderCreated, Folder: folder})
	}

	s.setState(Diffing)
	var added []string
	for _, asset := range s.repo.GetAssets(path) {
		props, present := onDisk[asset.FileName]
		stale := !present
		if present && s.opts.DetectModified && !asset.FileProperties.SameSignature(props) {
			stale = true
		}
		if !stale {
			delete(onDisk, asset.FileName)
			continue
		}
		if err := s.repo.DeleteAsset(path, asset.FileName); err != nil {
			return nil, err
		}
		result.Deleted++
		emit(Event{Type: AssetDeleted, Folder: folder, Asset: asset, FileName: asset.FileName})
	}
	for name := range onDisk {
		added = append(added, name)
	}
	sort.Strings(added)

	s.setState(Applying)
	batch := 0
	for startIdx := 0; startIdx < len(added); startIdx += s.opts.BatchSize {
		endIdx := startIdx + s.opts.BatchSize
		if endIdx > len(added) {
			endIdx = len(added)
		}
		batch++
		names := added[startIdx:endIdx]
		if err := s.applyBatch(folder, names, onDisk, result, emit); err != nil {
			return nil, err
		}
		emit(Event{Type: BatchCompleted, Folder: folder, Batch: batch, BatchSize: len(names)})
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	emit(Event{Type: FolderCompleted, Folder: folder})
	return subDirs, nil
}

type builtAsset struct {
	asset     *models.Asset
	thumbnail []byte
	err       error
}

// applyBatch builds the assets of names in parallel and adds them in order
func (s *Service) applyBatch(folder *models.Folder, names []string, onDisk map[string]models.FileProperties,
	result *Result, emit func(Event)) error {
	built := make([]builtAsset, len(names))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			asset, thumbnail, err := s.buildAsset(folder, name, onDisk[name])
			built[i] = builtAsset{asset: asset, thumbnail: thumbnail, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, b := range built {
		if b.err != nil {
			result.Errors = append(result.Errors, b.err)
			s.logger.Warn("failed to catalog asset",
				slog.String("path", filepath.Join(folder.Path, names[i])),
				slog.String("error", b.err.Error()))
			continue
		}
		if err := s.repo.AddAsset(b.asset, b.thumbnail); err != nil {
			return err
		}
		result.Created++
		if b.asset.Metadata.Corrupted.IsTrue {
			result.Corrupted++
		}
		emit(Event{Type: AssetCreated, Folder: folder, Asset: b.asset, FileName: b.asset.FileName})
	}
	return nil
}

// removeVanishedFolders detaches catalogued folders below a scanned root
// that no longer exist on disk
func (s *Service) removeVanishedFolders(roots []string, visited map[string]bool, result *Result, emit func(Event)) error {
	for _, folder := range s.repo.GetFolders() {
		if visited[folder.Path] || s.exempted(folder.Path) || !underAny(folder.Path, roots) {
			continue
		}
		if _, err := s.fs.Stat(folder.Path); err == nil {
			// still present but hidden or otherwise excluded from the walk
			continue
		} else if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, os.ErrNotExist) {
			result.Errors = append(result.Errors, err)
			continue
		}

		for _, asset := range s.repo.GetAssets(folder.Path) {
			if err := s.repo.DeleteAsset(folder.Path, asset.FileName); err != nil {
				return err
			}
			result.Deleted++
			emit(Event{Type: AssetDeleted, Folder: folder, Asset: asset, FileName: asset.FileName})
		}
		s.repo.DeleteFolder(folder.Path)
		s.logger.Info("removed vanished folder", slog.String("path", folder.Path))
	}
	return nil
}

func underAny(path string, roots []string) bool {
	for _, root := range roots {
		if models.IsUnder(path, root) {
			return true
		}
	}
	return false
}

func fileProperties(info os.FileInfo) models.FileProperties {
	return models.FileProperties{
		Size:         info.Size(),
		Creation:     info.ModTime(),
		Modification: info.ModTime(),
	}
}
