package storage

import (
	"container/list"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

const blobExtension = ".bin"

type blobEntry struct {
	key  string
	data []byte
}

// BlobStore persists one binary blob per key and keeps at most capacity
// blobs resident in memory, evicting the least recently accessed one.
type BlobStore struct {
	fs       afero.Fs
	dir      string
	capacity int

	mu       sync.Mutex
	order    *list.List // front is the most recently accessed
	resident map[string]*list.Element
}

// NewBlobStore creates the blob directory if needed
func NewBlobStore(fs afero.Fs, dir string, capacity int) (*BlobStore, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("blob capacity must be at least 1, got %d", capacity)
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blobs directory: %w", err)
	}
	return &BlobStore{
		fs:       fs,
		dir:      dir,
		capacity: capacity,
		order:    list.New(),
		resident: make(map[string]*list.Element),
	}, nil
}

// Dir returns the directory holding the blob files
func (b *BlobStore) Dir() string {
	return b.dir
}

func (b *BlobStore) path(key string) string {
	sum := sha1.Sum([]byte(key))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:])+blobExtension)
}

// WriteBlob persists data under key and marks it as the most recently used
func (b *BlobStore) WriteBlob(key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.fs.MkdirAll(b.dir, 0755); err != nil {
		return fmt.Errorf("failed to create blobs directory: %w", err)
	}

	target := b.path(key)
	tempPath := target + workInProgressSuffix
	if err := afero.WriteFile(b.fs, tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob for %s: %w", key, err)
	}
	if err := b.fs.Rename(tempPath, target); err != nil {
		return fmt.Errorf("failed to replace blob for %s: %w", key, err)
	}

	b.touch(key, data)
	return nil
}

// ReadBlob returns the blob stored under key. found is false when no blob exists.
func (b *BlobStore) ReadBlob(key string) (data []byte, found bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if elem, ok := b.resident[key]; ok {
		b.order.MoveToFront(elem)
		return elem.Value.(*blobEntry).data, true, nil
	}

	data, err = afero.ReadFile(b.fs, b.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read blob for %s: %w", key, err)
	}

	b.touch(key, data)
	return data, true, nil
}

// DeleteBlob removes the blob file and its resident copy. Missing blobs are ignored.
func (b *BlobStore) DeleteBlob(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if elem, ok := b.resident[key]; ok {
		b.order.Remove(elem)
		delete(b.resident, key)
	}
	if err := b.fs.Remove(b.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob for %s: %w", key, err)
	}
	return nil
}

// Resident lists the keys held in memory, most recently used first
func (b *BlobStore) Resident() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, b.order.Len())
	for elem := b.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*blobEntry).key)
	}
	return keys
}

// touch must be called with mu held
func (b *BlobStore) touch(key string, data []byte) {
	if elem, ok := b.resident[key]; ok {
		elem.Value.(*blobEntry).data = data
		b.order.MoveToFront(elem)
		return
	}

	b.resident[key] = b.order.PushFront(&blobEntry{key: key, data: data})
	for b.order.Len() > b.capacity {
		oldest := b.order.Back()
		b.order.Remove(oldest)
		delete(b.resident, oldest.Value.(*blobEntry).key)
	}
}

// Clear drops every resident blob. Files are left untouched.
func (b *BlobStore) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.order.Init()
	b.resident = make(map[string]*list.Element)
}
