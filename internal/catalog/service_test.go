package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/apperr"
	"github.com/victor/stormcatalog/internal/database"
	"github.com/victor/stormcatalog/internal/hashing"
	"github.com/victor/stormcatalog/internal/logging"
	"github.com/victor/stormcatalog/internal/media"
	"github.com/victor/stormcatalog/internal/repository"
	"github.com/victor/stormcatalog/internal/testutil"
)

type testEnv struct {
	fs    afero.Fs
	clock *testutil.StubClock
	repo  *repository.AssetRepository
}

func setupTestEnv(t *testing.T) *testEnv {
	fs := afero.NewMemMapFs()
	clk := testutil.FixedClock()
	dbOpts := database.DefaultOptions()
	dbOpts.Clock = clk
	db, err := database.NewDB(fs, database.NewPaths("/data", "Tables", "Blobs", "Backups"), dbOpts)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	repo := repository.New(db, repository.WithIDGenerator(testutil.NewStubIDGenerator()))
	if err := repo.Initialize(); err != nil {
		t.Fatalf("Failed to initialize repository: %v", err)
	}
	return &testEnv{fs: fs, clock: clk, repo: repo}
}

// reopen loads the saved catalog into a new repository on the same filesystem
func (env *testEnv) reopen(t *testing.T) *testEnv {
	t.Helper()
	dbOpts := database.DefaultOptions()
	dbOpts.Clock = env.clock
	db, err := database.NewDB(env.fs, database.NewPaths("/data", "Tables", "Blobs", "Backups"), dbOpts)
	if err != nil {
		t.Fatalf("Failed to reopen test database: %v", err)
	}
	repo := repository.New(db, repository.WithIDGenerator(testutil.NewStubIDGenerator()))
	if err := repo.Initialize(); err != nil {
		t.Fatalf("Failed to initialize repository: %v", err)
	}
	return &testEnv{fs: env.fs, clock: env.clock, repo: repo}
}

func (env *testEnv) service(opts Options) *Service {
	processor := media.NewProcessor()
	calc := hashing.NewCalculator(env.fs, hashing.NewSelection(false, false, false), processor)
	return NewService(env.repo, calc, processor, processor, env.fs, env.clock, logging.Discard(), opts)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Roots = []string{"/photos"}
	opts.Workers = 2
	return opts
}

func writeImage(t *testing.T, fs afero.Fs, path string, seed uint8) {
	t.Helper()
	testutil.WriteFile(t, fs, path, testutil.JPEG(t, testutil.PatternImage(64, 48, seed)))
}

func TestRun_CataloguesNewAssets(t *testing.T) {
	env := setupTestEnv(t)
	writeImage(t, env.fs, "/photos/b.jpg", 1)
	writeImage(t, env.fs, "/photos/a.jpg", 2)
	writeImage(t, env.fs, "/photos/sub/c.jpg", 3)
	writeImage(t, env.fs, "/photos/.hidden.jpg", 4)
	writeImage(t, env.fs, "/photos/.thumbs/d.jpg", 5)
	testutil.WriteFile(t, env.fs, "/photos/notes.txt", []byte("not an image"))

	svc := env.service(testOptions())
	var created []string
	var folders int
	result, err := svc.Run(context.Background(), func(ev Event) {
		switch ev.Type {
		case AssetCreated:
			created = append(created, ev.Asset.FullPath())
		case FolderCreated:
			folders++
		}
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Created != 3 || result.Deleted != 0 {
		t.Errorf("Unexpected result: %+v", result)
	}
	want := []string{"/photos/a.jpg", "/photos/b.jpg", "/photos/sub/c.jpg"}
	if len(created) != len(want) {
		t.Fatalf("Expected %v, got %v", want, created)
	}
	for i := range want {
		if created[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, created[i])
		}
	}
	if folders != 2 {
		t.Errorf("Expected 2 folders created, got %d", folders)
	}

	asset, ok := env.repo.GetAsset("/photos", "a.jpg")
	if !ok {
		t.Fatal("Expected a.jpg to be catalogued")
	}
	if asset.Pixel.Asset.Width != 64 || asset.Pixel.Asset.Height != 48 {
		t.Errorf("Unexpected pixels: %+v", asset.Pixel)
	}
	if len(asset.Hash) != 128 {
		t.Errorf("Expected a SHA512 hash, got %q", asset.Hash)
	}
	if _, ok, _ := env.repo.LoadThumbnail("/photos", "a.jpg"); !ok {
		t.Error("Expected a thumbnail for a.jpg")
	}
	if env.repo.HasChanges() {
		t.Error("Expected the catalog to be saved after the run")
	}
}

func TestRun_Converges(t *testing.T) {
	env := setupTestEnv(t)
	writeImage(t, env.fs, "/photos/a.jpg", 1)
	writeImage(t, env.fs, "/photos/sub/b.jpg", 2)

	svc := env.service(testOptions())
	if _, err := svc.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	env.clock.Advance(6 * time.Minute)

	result, err := svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Skipped || result.Created != 0 || result.Deleted != 0 {
		t.Errorf("Expected an unchanged second run, got %+v", result)
	}
	if n := len(env.repo.GetCataloguedAssets()); n != 2 {
		t.Errorf("Expected 2 assets, got %d", n)
	}
}

func TestRun_RemovesStaleAssets(t *testing.T) {
	env := setupTestEnv(t)
	writeImage(t, env.fs, "/photos/a.jpg", 1)
	writeImage(t, env.fs, "/photos/b.jpg", 2)

	opts := testOptions()
	opts.Cooldown = 0
	svc := env.service(opts)
	if _, err := svc.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if err := env.fs.Remove("/photos/b.jpg"); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}
	var deleted []string
	result, err := svc.Run(context.Background(), func(ev Event) {
		if ev.Type == AssetDeleted {
			deleted = append(deleted, ev.FileName)
		}
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Deleted != 1 || len(deleted) != 1 || deleted[0] != "b.jpg" {
		t.Errorf("Expected b.jpg deleted, got %v (%+v)", deleted, result)
	}
	if env.repo.IsAssetCatalogued("/photos", "b.jpg") {
		t.Error("Expected b.jpg to be removed from the catalog")
	}
}

func TestRun_DetectsModifiedFiles(t *testing.T) {
	env := setupTestEnv(t)
	writeImage(t, env.fs, "/photos/a.jpg", 1)

	opts := testOptions()
	opts.Cooldown = 0
	svc := env.service(opts)
	if _, err := svc.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	before, _ := env.repo.GetAsset("/photos", "a.jpg")
	oldHash := before.Hash

	testutil.WriteFile(t, env.fs, "/photos/a.jpg", testutil.JPEG(t, testutil.PatternImage(120, 90, 9)))
	result, err := svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Deleted != 1 || result.Created != 1 {
		t.Errorf("Expected a modified file to be replaced, got %+v", result)
	}
	after, _ := env.repo.GetAsset("/photos", "a.jpg")
	if after.Hash == oldHash || after.Pixel.Asset.Width != 120 {
		t.Errorf("Expected refreshed asset, got %+v", after)
	}
}

func TestRun_Cooldown(t *testing.T) {
	env := setupTestEnv(t)
	writeImage(t, env.fs, "/photos/a.jpg", 1)

	svc := env.service(testOptions())
	if svc.State() != Idle {
		t.Errorf("Expected idle, got %v", svc.State())
	}
	if _, err := svc.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if svc.State() != CoolingDown {
		t.Errorf("Expected cooling down, got %v", svc.State())
	}

	writeImage(t, env.fs, "/photos/b.jpg", 2)
	var skipped bool
	result, err := svc.Run(context.Background(), func(ev Event) {
		skipped = skipped || ev.Type == CatalogSkipped
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Skipped || !skipped {
		t.Error("Expected the run to be skipped during cooldown")
	}
	if env.repo.IsAssetCatalogued("/photos", "b.jpg") {
		t.Error("Expected b.jpg not catalogued during cooldown")
	}

	env.clock.Advance(5 * time.Minute)
	if svc.State() != Idle {
		t.Errorf("Expected idle after cooldown, got %v", svc.State())
	}
	result, err = svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Skipped || result.Created != 1 {
		t.Errorf("Expected b.jpg catalogued after cooldown, got %+v", result)
	}
}

func TestRun_ExemptedFolder(t *testing.T) {
	env := setupTestEnv(t)
	writeImage(t, env.fs, "/photos/a.jpg", 1)
	writeImage(t, env.fs, "/photos/exempt/b.jpg", 2)
	writeImage(t, env.fs, "/photos/exempt/deep/c.jpg", 3)

	opts := testOptions()
	opts.ExemptedFolderPath = "/photos/exempt"
	result, err := env.service(opts).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("Expected only a.jpg catalogued, got %+v", result)
	}
	if env.repo.FolderExists("/photos/exempt") || env.repo.FolderExists("/photos/exempt/deep") {
		t.Error("Expected exempted folders not to be catalogued")
	}
}

func TestRun_CorruptedAsset(t *testing.T) {
	env := setupTestEnv(t)
	testutil.WriteFile(t, env.fs, "/photos/broken.jpg", []byte("this is not a jpeg"))

	result, err := env.service(testOptions()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Created != 1 || result.Corrupted != 1 {
		t.Errorf("Expected one corrupted asset, got %+v", result)
	}

	asset, ok := env.repo.GetAsset("/photos", "broken.jpg")
	if !ok {
		t.Fatal("Expected corrupted file to be catalogued")
	}
	if !asset.Metadata.Corrupted.IsTrue || asset.Metadata.Corrupted.Message == "" {
		t.Errorf("Expected corrupted flag, got %+v", asset.Metadata)
	}
	if asset.Pixel.Asset.Width != 0 || asset.Pixel.Asset.Height != 0 {
		t.Errorf("Expected zero pixels, got %+v", asset.Pixel)
	}
	if _, ok, _ := env.repo.LoadThumbnail("/photos", "broken.jpg"); ok {
		t.Error("Expected no thumbnail for a corrupted asset")
	}
}

func TestRun_Batches(t *testing.T) {
	env := setupTestEnv(t)
	for i, name := range []string{"e.jpg", "d.jpg", "c.jpg", "b.jpg", "a.jpg"} {
		writeImage(t, env.fs, "/photos/"+name, uint8(i))
	}

	opts := testOptions()
	opts.BatchSize = 2
	var sizes []int
	_, err := env.service(opts).Run(context.Background(), func(ev Event) {
		if ev.Type == BatchCompleted {
			sizes = append(sizes, ev.BatchSize)
		}
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("Unexpected batches: %v", sizes)
	}

	assets := env.repo.GetAssets("/photos")
	for i, want := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"} {
		if assets[i].FileName != want {
			t.Errorf("Expected %s at %d, got %s", want, i, assets[i].FileName)
		}
	}
}

func TestRun_CancelBetweenBatches(t *testing.T) {
	env := setupTestEnv(t)
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"} {
		writeImage(t, env.fs, "/photos/"+name, uint8(i))
	}

	opts := testOptions()
	opts.BatchSize = 2
	svc := env.service(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := svc.Run(ctx, func(ev Event) {
		if ev.Type == BatchCompleted {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if n := len(env.repo.GetAssets("/photos")); n != 2 {
		t.Errorf("Expected exactly one batch applied, got %d assets", n)
	}
	if svc.State() != Idle {
		t.Errorf("Expected idle after cancellation, got %v", svc.State())
	}

	result, err := svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Created != 3 {
		t.Errorf("Expected the remaining 3 assets, got %+v", result)
	}
}

func TestRun_VanishedFolder(t *testing.T) {
	env := setupTestEnv(t)
	writeImage(t, env.fs, "/photos/a.jpg", 1)
	writeImage(t, env.fs, "/photos/sub/b.jpg", 2)

	opts := testOptions()
	opts.Cooldown = 0
	svc := env.service(opts)
	if _, err := svc.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if err := env.fs.RemoveAll("/photos/sub"); err != nil {
		t.Fatalf("Failed to remove folder: %v", err)
	}
	result, err := svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Deleted != 1 {
		t.Errorf("Expected b.jpg deleted, got %+v", result)
	}
	if env.repo.FolderExists("/photos/sub") {
		t.Error("Expected vanished folder to be detached")
	}
}

func TestRun_SkipsUnstorableNames(t *testing.T) {
	env := setupTestEnv(t)
	writeImage(t, env.fs, "/photos/a.jpg", 1)
	writeImage(t, env.fs, "/photos/holiday|2024.jpg", 2)
	writeImage(t, env.fs, "/photos/trip|2023/b.jpg", 3)

	opts := testOptions()
	opts.Cooldown = 0
	svc := env.service(opts)
	result, err := svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Created != 1 || len(result.Errors) != 2 {
		t.Errorf("Expected 1 asset and 2 errors, got %+v", result)
	}
	for _, e := range result.Errors {
		if !errors.Is(e, apperr.ErrInvalidField) {
			t.Errorf("Expected ErrInvalidField, got %v", e)
		}
	}
	if env.repo.HasChanges() {
		t.Error("Expected the catalog to be saved")
	}

	writeImage(t, env.fs, "/photos/c.jpg", 4)
	result, err = svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if result.Created != 1 || !env.repo.IsAssetCatalogued("/photos", "c.jpg") {
		t.Errorf("Expected c.jpg catalogued on the second run, got %+v", result)
	}
	if env.repo.HasChanges() {
		t.Error("Expected the catalog to be saved after the second run")
	}

	if _, err := svc.CreateAsset("/photos", "holiday|2024.jpg"); !errors.Is(err, apperr.ErrInvalidField) {
		t.Errorf("Expected CreateAsset to reject the name, got %v", err)
	}
}

func TestRun_CooldownSpansServices(t *testing.T) {
	env := setupTestEnv(t)
	writeImage(t, env.fs, "/photos/a.jpg", 1)

	if _, err := env.service(testOptions()).Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// a later invocation loads the catalog from disk
	reopened := env.reopen(t)
	writeImage(t, env.fs, "/photos/b.jpg", 2)
	env.clock.Advance(time.Minute)

	svc := reopened.service(testOptions())
	if svc.State() != CoolingDown {
		t.Errorf("Expected cooling down, got %v", svc.State())
	}
	result, err := svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Skipped {
		t.Errorf("Expected the run to be skipped during the persisted cooldown, got %+v", result)
	}

	env.clock.Advance(5 * time.Minute)
	result, err = svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Skipped || result.Created != 1 {
		t.Errorf("Expected b.jpg catalogued after the cooldown, got %+v", result)
	}
}

func TestRun_MissingRoot(t *testing.T) {
	env := setupTestEnv(t)
	result, err := env.service(testOptions()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected one error for the missing root, got %v", result.Errors)
	}
}

func TestCreateAsset(t *testing.T) {
	env := setupTestEnv(t)
	writeImage(t, env.fs, "/elsewhere/a.jpg", 1)
	svc := env.service(testOptions())

	asset, err := svc.CreateAsset("/elsewhere", "a.jpg")
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}
	if !env.repo.FolderExists("/elsewhere") || asset.Pixel.Asset.Width != 64 {
		t.Errorf("Unexpected asset: %+v", asset)
	}

	writeImage(t, env.fs, "/elsewhere/a.jpg", 2)
	if _, err := svc.CreateAsset("/elsewhere", "a.jpg"); err != nil {
		t.Fatalf("CreateAsset failed on replace: %v", err)
	}
	if n := len(env.repo.GetAssets("/elsewhere")); n != 1 {
		t.Errorf("Expected the record to be replaced, got %d assets", n)
	}

	if _, err := svc.CreateAsset("/elsewhere", "missing.jpg"); err == nil {
		t.Error("Expected error for a missing file")
	}
}
