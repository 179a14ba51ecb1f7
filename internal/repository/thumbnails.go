package repository

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"

	"github.com/victor/stormcatalog/internal/models"
)

func encodeThumbnails(thumbnails map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(thumbnails); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeThumbnails(data []byte) (map[string][]byte, error) {
	thumbnails := make(map[string][]byte)
	if len(data) == 0 {
		return thumbnails, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&thumbnails); err != nil {
		return nil, err
	}
	return thumbnails, nil
}

// readThumbnails must be called with mu held (read or write)
func (r *AssetRepository) readThumbnails(folderPath string) (map[string][]byte, error) {
	if pending, ok := r.pendingThumbnails[folderPath]; ok {
		return pending, nil
	}
	if r.detachedFolders[folderPath] {
		return map[string][]byte{}, nil
	}
	thumbnails, _, err := r.storedThumbnails(folderPath)
	return thumbnails, err
}

// storedThumbnails decodes the blob of folderPath. unreadable is set when a
// blob exists but cannot be decoded; an empty dictionary is returned then.
func (r *AssetRepository) storedThumbnails(folderPath string) (thumbnails map[string][]byte, unreadable bool, err error) {
	data, found, err := r.db.ReadBlob(folderPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read thumbnails of %s: %w", folderPath, err)
	}
	if !found {
		return map[string][]byte{}, false, nil
	}
	thumbnails, err = decodeThumbnails(data)
	if err != nil {
		r.logger.Warn("thumbnails unreadable",
			slog.String("folder", folderPath), slog.String("error", err.Error()))
		return map[string][]byte{}, true, nil
	}
	return thumbnails, false, nil
}

// pendingFor returns the mutable dictionary of folderPath; mu must be held for writing
func (r *AssetRepository) pendingFor(folderPath string) (map[string][]byte, error) {
	if pending, ok := r.pendingThumbnails[folderPath]; ok {
		return pending, nil
	}

	thumbnails := map[string][]byte{}
	if !r.detachedFolders[folderPath] {
		stored, unreadable, err := r.storedThumbnails(folderPath)
		if err != nil {
			return nil, err
		}
		thumbnails = stored
		if unreadable {
			r.unreadableThumbnails[folderPath] = true
		}
	}
	r.setPending(folderPath, thumbnails)
	if err := r.flushPending(folderPath); err != nil {
		return nil, err
	}
	return thumbnails, nil
}

func (r *AssetRepository) setPending(folderPath string, thumbnails map[string][]byte) {
	if _, ok := r.pendingThumbnails[folderPath]; !ok {
		r.pendingOrder = append(r.pendingOrder, folderPath)
	}
	r.pendingThumbnails[folderPath] = thumbnails
}

func (r *AssetRepository) dropPending(folderPath string) {
	delete(r.pendingThumbnails, folderPath)
	for i, path := range r.pendingOrder {
		if path == folderPath {
			r.pendingOrder = append(r.pendingOrder[:i], r.pendingOrder[i+1:]...)
			break
		}
	}
}

// flushPending writes the oldest pending dictionaries to their blobs until no
// more than ThumbnailsDictionaryEntriesToKeep remain. current is never flushed.
func (r *AssetRepository) flushPending(current string) error {
	limit := r.db.ThumbnailsDictionaryEntriesToKeep()
	for i := 0; len(r.pendingOrder) > limit && i < len(r.pendingOrder); {
		path := r.pendingOrder[i]
		if path == current || r.unreadableThumbnails[path] {
			i++
			continue
		}
		if err := r.writeThumbnails(path); err != nil {
			return err
		}
		r.logger.Debug("flushed thumbnails", slog.String("folder", path))
		r.dropPending(path)
	}
	return nil
}

func (r *AssetRepository) writeThumbnails(folderPath string) error {
	data, err := encodeThumbnails(r.pendingThumbnails[folderPath])
	if err != nil {
		return fmt.Errorf("failed to encode thumbnails of %s: %w", folderPath, err)
	}
	if err := r.db.WriteBlob(folderPath, data); err != nil {
		return fmt.Errorf("failed to save thumbnails of %s: %w", folderPath, err)
	}
	return nil
}

// LoadThumbnail returns the encoded thumbnail of one asset
func (r *AssetRepository) LoadThumbnail(folderPath, fileName string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	thumbnails, err := r.readThumbnails(models.NormalizePath(folderPath))
	if err != nil {
		return nil, false, err
	}
	data, ok := thumbnails[fileName]
	return data, ok, nil
}

// GetThumbnails returns a copy of the thumbnail dictionary of a folder
func (r *AssetRepository) GetThumbnails(folderPath string) (map[string][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	thumbnails, err := r.readThumbnails(models.NormalizePath(folderPath))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(thumbnails))
	for name, data := range thumbnails {
		out[name] = data
	}
	return out, nil
}
