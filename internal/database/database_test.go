package database

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/apperr"
	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/testutil"
)

func setupTestDB(t *testing.T) (*DB, afero.Fs, *testutil.StubClock) {
	fs := afero.NewMemMapFs()
	clk := testutil.FixedClock()
	opts := DefaultOptions()
	opts.Clock = clk
	opts.ThumbnailsDictionaryEntriesToKeep = 2

	db, err := NewDB(fs, NewPaths("/data", "Tables", "Blobs", "Backups"), opts)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return db, fs, clk
}

func TestNewDB(t *testing.T) {
	db, fs, _ := setupTestDB(t)

	for _, dir := range []string{db.Paths().Tables, db.Paths().Blobs, db.Paths().Backups} {
		if exists, _ := afero.DirExists(fs, dir); !exists {
			t.Errorf("Expected directory %s to exist", dir)
		}
	}
}

func TestNewDB_InvalidRetention(t *testing.T) {
	opts := DefaultOptions()
	opts.BackupsToKeep = 0
	if _, err := NewDB(afero.NewMemMapFs(), NewPaths("/data", "T", "B", "K"), opts); err == nil {
		t.Error("Expected error for zero backups to keep")
	}
}

func TestAssetsTable(t *testing.T) {
	db, _, _ := setupTestDB(t)

	created := time.Date(2023, 7, 1, 8, 0, 0, 0, time.UTC)
	asset := models.Asset{
		FolderID: "id-1",
		FileName: "Image 1.jpg",
		Hash:     "abc123",
		Pixel: models.Pixel{
			Asset:     models.Size{Width: 1280, Height: 720},
			Thumbnail: models.Size{Width: 200, Height: 112},
		},
		FileProperties: models.FileProperties{
			Size:         29857,
			Creation:     created,
			Modification: created.Add(time.Hour),
		},
		ThumbnailCreationDateTime: created.Add(2 * time.Hour),
		ImageRotation:             models.Rotate90,
	}
	asset.MarkRotated()

	if err := db.Assets.Write([]models.Asset{asset}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := db.Assets.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 asset, got %d", len(got))
	}

	a := got[0]
	if a.FolderID != asset.FolderID || a.FileName != asset.FileName || a.Hash != asset.Hash {
		t.Errorf("Identity mismatch: %+v", a)
	}
	if a.Pixel != asset.Pixel {
		t.Errorf("Expected pixels %+v, got %+v", asset.Pixel, a.Pixel)
	}
	if !a.FileProperties.Creation.Equal(created) || !a.ThumbnailCreationDateTime.Equal(asset.ThumbnailCreationDateTime) {
		t.Errorf("Times not preserved: %+v", a)
	}
	if a.ImageRotation != models.Rotate90 || !a.Metadata.Rotated.IsTrue || a.Metadata.Corrupted.IsTrue {
		t.Errorf("Rotation/metadata not preserved: %+v", a)
	}
}

func TestAssetsTable_InvalidRotationIsCorrupt(t *testing.T) {
	db, fs, _ := setupTestDB(t)

	row := "id-1|a.jpg|1|||45|0|0|0|0||h|false||false|\n"
	afero.WriteFile(fs, "/data/Tables/assets.db", []byte(row), 0644)

	if _, err := db.Assets.Read(); !errors.Is(err, apperr.ErrCorruptTable) {
		t.Errorf("Expected ErrCorruptTable, got %v", err)
	}
}

func TestSyncDefinitionsTable(t *testing.T) {
	db, _, _ := setupTestDB(t)

	defs := []models.SyncDefinition{
		{SourceDirectory: "/src", DestinationDirectory: "/dst", IncludeSubFolders: true},
		{SourceDirectory: "/a", DestinationDirectory: "/b", DeleteAssetsNotInSource: true},
	}
	if err := db.SyncDefinitions.Write(defs); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := db.SyncDefinitions.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 2 || got[0] != defs[0] || got[1] != defs[1] {
		t.Errorf("Expected %+v, got %+v", defs, got)
	}
}

func TestBackup_RetentionAndRestore(t *testing.T) {
	db, _, clk := setupTestDB(t)

	for i := 0; i < 4; i++ {
		folders := []models.Folder{{ID: "id-1", Path: "/photos"}}
		if i == 3 {
			folders = append(folders, models.Folder{ID: "id-2", Path: "/photos/last"})
		}
		if err := db.Folders.Write(folders); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if _, err := db.Backup(); err != nil {
			t.Fatalf("Backup failed: %v", err)
		}
		clk.Advance(time.Minute)
	}

	backups, err := db.Backups()
	if err != nil {
		t.Fatalf("Backups failed: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("Expected 2 backups kept, got %d", len(backups))
	}

	if err := db.Folders.Write(nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := db.RestoreLatestBackup(); err != nil {
		t.Fatalf("RestoreLatestBackup failed: %v", err)
	}
	folders, err := db.Folders.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(folders) != 2 {
		t.Errorf("Expected the latest snapshot with 2 folders, got %d", len(folders))
	}
}

func TestBlobs(t *testing.T) {
	db, _, _ := setupTestDB(t)

	db.WriteBlob("/a", []byte("a"))
	db.WriteBlob("/b", []byte("b"))
	db.WriteBlob("/c", []byte("c"))

	if n := len(db.ResidentBlobs()); n != 2 {
		t.Errorf("Expected 2 resident blobs, got %d", n)
	}
	data, found, err := db.ReadBlob("/a")
	if err != nil || !found || string(data) != "a" {
		t.Errorf("Expected evicted blob to be read back: %q %v %v", data, found, err)
	}
}

func TestValidateField(t *testing.T) {
	db, _, _ := setupTestDB(t)

	if err := db.ValidateField("/photos/holiday 2024.jpg"); err != nil {
		t.Errorf("Expected plain path to be valid, got %v", err)
	}
	for _, value := range []string{"holiday|2024.jpg", "a\nb.jpg", "a\rb.jpg"} {
		if err := db.ValidateField(value); !errors.Is(err, apperr.ErrInvalidField) {
			t.Errorf("ValidateField(%q) = %v, want ErrInvalidField", value, err)
		}
	}
}

func TestCatalogRunsTable(t *testing.T) {
	db, _, _ := setupTestDB(t)

	runs, err := db.CatalogRuns.Read()
	if err != nil || len(runs) != 0 {
		t.Fatalf("Expected empty table, got %v, %v", runs, err)
	}
	completed := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	if err := db.CatalogRuns.Write([]time.Time{completed}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	runs, err = db.CatalogRuns.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(runs) != 1 || !runs[0].Equal(completed) {
		t.Errorf("Expected [%v], got %v", completed, runs)
	}
}
