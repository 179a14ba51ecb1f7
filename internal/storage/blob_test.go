package storage

import (
	"reflect"
	"testing"

	"github.com/spf13/afero"
)

func setupTestBlobs(t *testing.T, capacity int) *BlobStore {
	store, err := NewBlobStore(afero.NewMemMapFs(), "/data/Blobs", capacity)
	if err != nil {
		t.Fatalf("Failed to create blob store: %v", err)
	}
	return store
}

func TestBlobStore_WriteRead(t *testing.T) {
	store := setupTestBlobs(t, 3)

	if err := store.WriteBlob("/photos/2024", []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteBlob failed: %v", err)
	}

	data, found, err := store.ReadBlob("/photos/2024")
	if err != nil || !found {
		t.Fatalf("ReadBlob failed: found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(data, []byte{1, 2, 3}) {
		t.Errorf("Unexpected blob %v", data)
	}
}

func TestBlobStore_MissingKey(t *testing.T) {
	store := setupTestBlobs(t, 3)

	data, found, err := store.ReadBlob("/nowhere")
	if err != nil {
		t.Fatalf("ReadBlob failed: %v", err)
	}
	if found || data != nil {
		t.Error("Expected no blob for a missing key")
	}
}

func TestBlobStore_EvictsLeastRecentlyUsed(t *testing.T) {
	store := setupTestBlobs(t, 2)

	store.WriteBlob("a", []byte("a"))
	store.WriteBlob("b", []byte("b"))

	// touching a makes b the least recently used
	if _, _, err := store.ReadBlob("a"); err != nil {
		t.Fatalf("ReadBlob failed: %v", err)
	}
	store.WriteBlob("c", []byte("c"))

	if got := store.Resident(); !reflect.DeepEqual(got, []string{"c", "a"}) {
		t.Errorf("Expected resident [c a], got %v", got)
	}

	// evicted blobs stay on disk
	data, found, err := store.ReadBlob("b")
	if err != nil || !found || string(data) != "b" {
		t.Fatalf("Evicted blob should be readable from disk: found=%v err=%v", found, err)
	}
	if got := store.Resident(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Expected resident [b c], got %v", got)
	}
}

func TestBlobStore_NeverExceedsCapacity(t *testing.T) {
	store := setupTestBlobs(t, 3)

	for _, key := range []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7"} {
		if err := store.WriteBlob(key, []byte(key)); err != nil {
			t.Fatalf("WriteBlob failed: %v", err)
		}
		if n := len(store.Resident()); n > 3 {
			t.Fatalf("Resident count %d exceeds capacity", n)
		}
	}
	if got := store.Resident(); !reflect.DeepEqual(got, []string{"k7", "k6", "k5"}) {
		t.Errorf("Expected the three most recent keys, got %v", got)
	}
}

func TestBlobStore_Delete(t *testing.T) {
	store := setupTestBlobs(t, 2)
	store.WriteBlob("a", []byte("a"))

	if err := store.DeleteBlob("a"); err != nil {
		t.Fatalf("DeleteBlob failed: %v", err)
	}
	if err := store.DeleteBlob("a"); err != nil {
		t.Fatalf("Deleting twice should be a no-op: %v", err)
	}
	if _, found, _ := store.ReadBlob("a"); found {
		t.Error("Deleted blob should be gone")
	}
}

func TestNewBlobStore_InvalidCapacity(t *testing.T) {
	if _, err := NewBlobStore(afero.NewMemMapFs(), "/blobs", 0); err == nil {
		t.Error("Expected error for zero capacity")
	}
}
