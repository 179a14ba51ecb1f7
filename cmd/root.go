package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/catalog"
	"github.com/victor/stormcatalog/internal/clock"
	"github.com/victor/stormcatalog/internal/config"
	"github.com/victor/stormcatalog/internal/database"
	"github.com/victor/stormcatalog/internal/hashing"
	"github.com/victor/stormcatalog/internal/logging"
	"github.com/victor/stormcatalog/internal/media"
	"github.com/victor/stormcatalog/internal/repository"
	"github.com/victor/stormcatalog/internal/sync"
)

var (
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
	appFs  = afero.NewOsFs()
	db     *database.DB
	repo   *repository.AssetRepository
)

var rootCmd = &cobra.Command{
	Use:   "stormcatalog",
	Short: "An incremental photo catalog with duplicate detection",
	Long: `StormCatalog keeps a catalog of the images found below one or more
root folders. It records file properties, thumbnails and fingerprints in flat
tables with rotating backups, finds duplicated photos, and copies, moves or
mirrors images between folders while keeping the catalog up to date.`,
}

func init() {
	cobra.OnInitialize(initConfig, initCatalog)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.stormcatalog/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger = logging.New(cfg.LogLevel, os.Stderr)
}

func initCatalog() {
	var err error
	db, err = database.NewDB(appFs, cfg.DatabasePaths(), cfg.DatabaseOptions(clock.RealClock{}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing storage: %v\n", err)
		os.Exit(1)
	}

	repo = repository.New(db, repository.WithLogger(logger))
	if err := repo.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
		os.Exit(1)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCalculator(processor *media.Processor) *hashing.Calculator {
	return hashing.NewCalculator(appFs, cfg.Selection(), processor)
}

func newCatalogService(opts catalog.Options) *catalog.Service {
	processor := media.NewProcessor()
	return catalog.NewService(repo, newCalculator(processor), processor, processor,
		appFs, clock.RealClock{}, logger, opts)
}

func newMoveService() *sync.MoveService {
	opts := cfg.CatalogOptions()
	opts.SaveAfterRun = false
	return sync.NewMoveService(repo, newCatalogService(opts), appFs)
}

// saveCatalog persists pending changes, exiting on failure
func saveCatalog() {
	if !repo.HasChanges() {
		return
	}
	bar := newProgressBar(-1, "Saving catalog")
	err := repo.SaveCatalog(func(p repository.SaveProgress) {
		if bar != nil {
			bar.Describe(fmt.Sprintf("Saving catalog: %s", p.Step))
			_ = bar.Add(1)
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error saving catalog: %v\n", err)
		os.Exit(1)
	}
}

