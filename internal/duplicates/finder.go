// Package duplicates groups catalogued assets sharing a fingerprint.
package duplicates

import (
	"log/slog"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/hashing"
	"github.com/victor/stormcatalog/internal/logging"
	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/repository"
)

// Finder groups the assets of a repository by fingerprint
type Finder struct {
	repo      *repository.AssetRepository
	fs        afero.Fs
	algorithm hashing.Algorithm
	threshold int
	logger    *slog.Logger
}

// NewFinder creates a finder. threshold is only used for pHash fingerprints,
// which are compared by bit distance instead of equality.
func NewFinder(repo *repository.AssetRepository, fs afero.Fs, algorithm hashing.Algorithm, threshold int, logger *slog.Logger) *Finder {
	if threshold < 0 {
		threshold = 0
	}
	return &Finder{
		repo:      repo,
		fs:        fs,
		algorithm: algorithm,
		threshold: threshold,
		logger:    logging.OrDiscard(logger),
	}
}

type group struct {
	members []*models.Asset
}

// FindDuplicatedAssets returns the sets of at least two assets whose files
// still exist and share a fingerprint, in catalog order.
func (f *Finder) FindDuplicatedAssets() ([][]*models.Asset, error) {
	var groups []*group
	byHash := make(map[string]*group)

	for _, asset := range f.repo.GetCataloguedAssets() {
		if asset.Hash == "" || asset.Hash == hashing.CorruptedFingerprint {
			continue
		}

		if f.algorithm == hashing.PHash {
			if g := f.closest(groups, asset.Hash); g != nil {
				g.members = append(g.members, asset)
				continue
			}
			groups = append(groups, &group{members: []*models.Asset{asset}})
			continue
		}

		g, ok := byHash[asset.Hash]
		if !ok {
			g = &group{}
			byHash[asset.Hash] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, asset)
	}

	var sets [][]*models.Asset
	for _, g := range groups {
		if len(g.members) < 2 {
			continue
		}
		var existing []*models.Asset
		for _, asset := range g.members {
			if ok, err := afero.Exists(f.fs, asset.FullPath()); err != nil {
				return nil, err
			} else if !ok {
				f.logger.Debug("dropping duplicate whose file is gone", slog.String("path", asset.FullPath()))
				continue
			}
			existing = append(existing, asset)
		}
		if len(existing) >= 2 {
			sets = append(sets, existing)
		}
	}
	return sets, nil
}

// closest returns the first group whose first member lies within the threshold
func (f *Finder) closest(groups []*group, hash string) *group {
	for _, g := range groups {
		if hashing.Distance(g.members[0].Hash, hash) <= f.threshold {
			return g
		}
	}
	return nil
}
