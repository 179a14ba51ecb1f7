package models

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizePath(t *testing.T) {
	root := string(filepath.Separator)
	photos := filepath.Join(root, "photos", "2024")

	if got := NormalizePath(photos + string(filepath.Separator)); got != photos {
		t.Errorf("Expected %s, got %s", photos, got)
	}
	if got := NormalizePath(photos + string(filepath.Separator) + string(filepath.Separator)); got != photos {
		t.Errorf("Expected %s, got %s", photos, got)
	}
	if got := NormalizePath(root); got != root {
		t.Errorf("Expected root to stay %s, got %s", root, got)
	}
	if got := NormalizePath(""); got != "" {
		t.Errorf("Expected empty path, got %s", got)
	}
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.gif", "e.webp", "f.tiff"} {
		if !IsImageFile(name) {
			t.Errorf("Expected %s to be an image", name)
		}
	}
	for _, name := range []string{"notes.txt", "movie.mp4", "noextension"} {
		if IsImageFile(name) {
			t.Errorf("Expected %s not to be an image", name)
		}
	}
}

func TestIsUnder(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "photos")

	if !IsUnder(root, root) {
		t.Error("A folder should be under itself")
	}
	if !IsUnder(filepath.Join(root, "trip"), root) {
		t.Error("Child folder should be under root")
	}
	if IsUnder(root+"-old", root) {
		t.Error("Sibling sharing a prefix must not be under root")
	}
	if IsUnder(root, "") {
		t.Error("Nothing is under an empty root")
	}
}

func TestSameSignature(t *testing.T) {
	modified := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	a := FileProperties{Size: 10, Modification: modified}
	b := FileProperties{Size: 10, Modification: modified.Add(400 * time.Millisecond)}

	if !a.SameSignature(b) {
		t.Error("Expected second-precision times to compare equal")
	}

	c := FileProperties{Size: 11, Modification: modified}
	if a.SameSignature(c) {
		t.Error("Different sizes should not share a signature")
	}

	d := FileProperties{Size: 10, Modification: modified.Add(time.Minute)}
	if a.SameSignature(d) {
		t.Error("Different modification times should not share a signature")
	}
}

func TestAssetFullPath(t *testing.T) {
	folder := &Folder{ID: "1", Path: filepath.Join(string(filepath.Separator), "photos")}
	asset := &Asset{FolderID: folder.ID, Folder: folder, FileName: "a.jpg"}

	if got := asset.FullPath(); got != filepath.Join(folder.Path, "a.jpg") {
		t.Errorf("Unexpected full path %s", got)
	}

	orphan := &Asset{FileName: "b.jpg"}
	if orphan.FullPath() != "b.jpg" {
		t.Errorf("Expected bare file name, got %s", orphan.FullPath())
	}
}

func TestAssetFlags(t *testing.T) {
	asset := &Asset{}
	asset.MarkCorrupted()
	asset.MarkRotated()

	if !asset.Metadata.Corrupted.IsTrue || asset.Metadata.Corrupted.Message != CorruptedMessage {
		t.Errorf("Unexpected corrupted flag: %+v", asset.Metadata.Corrupted)
	}
	if !asset.Metadata.Rotated.IsTrue || asset.Metadata.Rotated.Message != RotatedMessage {
		t.Errorf("Unexpected rotated flag: %+v", asset.Metadata.Rotated)
	}
}
