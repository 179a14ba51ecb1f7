package duplicates

import "github.com/victor/stormcatalog/internal/models"

// SelectOne marks a single asset for deletion
func SelectOne(asset *models.Asset) []*models.Asset {
	if asset == nil {
		return nil
	}
	return []*models.Asset{asset}
}

// SelectAllExcept marks every member of set but keep
func SelectAllExcept(set []*models.Asset, keep *models.Asset) []*models.Asset {
	var selected []*models.Asset
	for _, asset := range set {
		if !sameAsset(asset, keep) {
			selected = append(selected, asset)
		}
	}
	return selected
}

// SelectNotInExemptedFolder marks, for every set that has a copy inside the
// exempted folder, the members living elsewhere.
func SelectNotInExemptedFolder(sets [][]*models.Asset, exemptedPath string) []*models.Asset {
	if exemptedPath == "" {
		return nil
	}
	var selected []*models.Asset
	for _, set := range sets {
		var inside, outside []*models.Asset
		for _, asset := range set {
			if asset.Folder != nil && models.IsUnder(asset.Folder.Path, exemptedPath) {
				inside = append(inside, asset)
			} else {
				outside = append(outside, asset)
			}
		}
		if len(inside) > 0 {
			selected = append(selected, outside...)
		}
	}
	return selected
}

func sameAsset(a, b *models.Asset) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.FullPath() == b.FullPath()
}
