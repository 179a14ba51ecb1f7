// Package config loads the stormcatalog settings with viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
	"github.com/victor/stormcatalog/internal/catalog"
	"github.com/victor/stormcatalog/internal/clock"
	"github.com/victor/stormcatalog/internal/database"
	"github.com/victor/stormcatalog/internal/hashing"
	"github.com/victor/stormcatalog/internal/logging"
)

const (
	envPrefix = "STORMCATALOG"
	appDir    = ".stormcatalog"
)

type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	Storage  StorageConfig `mapstructure:"storage"`
	Catalog  CatalogConfig `mapstructure:"catalog"`
	Hashing  HashingConfig `mapstructure:"hashing"`
}

type StorageConfig struct {
	Root                              string `mapstructure:"root"`
	TablesDir                         string `mapstructure:"tables_dir"`
	BlobsDir                          string `mapstructure:"blobs_dir"`
	BackupsDir                        string `mapstructure:"backups_dir"`
	Separator                         string `mapstructure:"separator"`
	BackupsToKeep                     int    `mapstructure:"backups_to_keep"`
	ThumbnailsDictionaryEntriesToKeep int    `mapstructure:"thumbnails_dictionary_entries_to_keep"`
}

type CatalogConfig struct {
	Roots              []string `mapstructure:"roots"`
	BatchSize          int      `mapstructure:"batch_size"`
	CooldownMinutes    int      `mapstructure:"cooldown_minutes"`
	ExemptedFolderPath string   `mapstructure:"exempted_folder_path"`
	DetectModified     bool     `mapstructure:"detect_modified"`
	SkipHidden         bool     `mapstructure:"skip_hidden"`
	Workers            int      `mapstructure:"workers"`
	ThumbnailMaxWidth  int      `mapstructure:"thumbnail_max_width"`
	ThumbnailMaxHeight int      `mapstructure:"thumbnail_max_height"`
	SaveAfterRun       bool     `mapstructure:"save_after_run"`
}

type HashingConfig struct {
	UsePHash       bool `mapstructure:"use_phash"`
	UseDHash       bool `mapstructure:"use_dhash"`
	UseMD5         bool `mapstructure:"use_md5"`
	PHashThreshold int  `mapstructure:"phash_threshold"`
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(appDir, "data")
	}
	return filepath.Join(home, appDir, "data")
}

var defaults = map[string]any{
	"log_level":                                     "info",
	"storage.tables_dir":                            "Tables",
	"storage.blobs_dir":                             "Blobs",
	"storage.backups_dir":                           "Backups",
	"storage.separator":                             "|",
	"storage.backups_to_keep":                       2,
	"storage.thumbnails_dictionary_entries_to_keep": 5,
	"catalog.roots":                                 []string{},
	"catalog.batch_size":                            1000,
	"catalog.cooldown_minutes":                      5,
	"catalog.exempted_folder_path":                  "",
	"catalog.detect_modified":                       true,
	"catalog.skip_hidden":                           true,
	"catalog.workers":                               0,
	"catalog.thumbnail_max_width":                   200,
	"catalog.thumbnail_max_height":                  150,
	"catalog.save_after_run":                        true,
	"hashing.use_phash":                             false,
	"hashing.use_dhash":                             false,
	"hashing.use_md5":                               false,
	"hashing.phash_threshold":                       10,
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage.root", defaultRoot())
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load reads configFile, or config.yaml from the working directory and
// $HOME/.stormcatalog when configFile is empty. Missing files fall back to defaults.
func Load(configFile string) (*Config, error) {
	v := newViper()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("$HOME", appDir))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path
func Save(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range cfg.Settings() {
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return v.WriteConfigAs(path)
}

// Settings flattens the configuration into viper keys
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"log_level":                                     c.LogLevel,
		"storage.root":                                  c.Storage.Root,
		"storage.tables_dir":                            c.Storage.TablesDir,
		"storage.blobs_dir":                             c.Storage.BlobsDir,
		"storage.backups_dir":                           c.Storage.BackupsDir,
		"storage.separator":                             c.Storage.Separator,
		"storage.backups_to_keep":                       c.Storage.BackupsToKeep,
		"storage.thumbnails_dictionary_entries_to_keep": c.Storage.ThumbnailsDictionaryEntriesToKeep,
		"catalog.roots":                                 c.Catalog.Roots,
		"catalog.batch_size":                            c.Catalog.BatchSize,
		"catalog.cooldown_minutes":                      c.Catalog.CooldownMinutes,
		"catalog.exempted_folder_path":                  c.Catalog.ExemptedFolderPath,
		"catalog.detect_modified":                       c.Catalog.DetectModified,
		"catalog.skip_hidden":                           c.Catalog.SkipHidden,
		"catalog.workers":                               c.Catalog.Workers,
		"catalog.thumbnail_max_width":                   c.Catalog.ThumbnailMaxWidth,
		"catalog.thumbnail_max_height":                  c.Catalog.ThumbnailMaxHeight,
		"catalog.save_after_run":                        c.Catalog.SaveAfterRun,
		"hashing.use_phash":                             c.Hashing.UsePHash,
		"hashing.use_dhash":                             c.Hashing.UseDHash,
		"hashing.use_md5":                               c.Hashing.UseMD5,
		"hashing.phash_threshold":                       c.Hashing.PHashThreshold,
	}
}

// Default returns the configuration used when no file or environment overrides exist
func Default() *Config {
	cfg := &Config{}
	_ = newViper().Unmarshal(cfg)
	cfg.expandPaths()
	return cfg
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}

func (c *Config) expandPaths() {
	c.Storage.Root = expandPath(c.Storage.Root)
	if c.Catalog.ExemptedFolderPath != "" {
		c.Catalog.ExemptedFolderPath = expandPath(c.Catalog.ExemptedFolderPath)
	}
	for i, root := range c.Catalog.Roots {
		c.Catalog.Roots[i] = expandPath(root)
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := c.Hashing.Validate(); err != nil {
		return fmt.Errorf("hashing: %w", err)
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.TablesDir, validation.Required),
		validation.Field(&c.BlobsDir, validation.Required),
		validation.Field(&c.BackupsDir, validation.Required),
		validation.Field(&c.Separator, validation.Required, validation.RuneLength(1, 1), validation.NotIn("\n", "\r")),
		validation.Field(&c.BackupsToKeep, validation.Required, validation.Min(1)),
		validation.Field(&c.ThumbnailsDictionaryEntriesToKeep, validation.Required, validation.Min(1)),
	)
}

func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Roots, validation.Each(validation.By(absolutePath))),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.CooldownMinutes, validation.Min(0)),
		validation.Field(&c.ExemptedFolderPath, validation.By(absolutePath)),
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.ThumbnailMaxWidth, validation.Required, validation.Min(1)),
		validation.Field(&c.ThumbnailMaxHeight, validation.Required, validation.Min(1)),
	)
}

func (c *HashingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PHashThreshold, validation.Min(0)),
	)
}

func absolutePath(value any) error {
	path, _ := value.(string)
	if path != "" && !filepath.IsAbs(path) {
		return fmt.Errorf("%q is not an absolute path", path)
	}
	return nil
}

// SeparatorRune returns the single table separator character
func (c StorageConfig) SeparatorRune() rune {
	for _, r := range c.Separator {
		return r
	}
	return '|'
}

// DatabasePaths locates the storage directories
func (c *Config) DatabasePaths() database.Paths {
	return database.NewPaths(c.Storage.Root, c.Storage.TablesDir, c.Storage.BlobsDir, c.Storage.BackupsDir)
}

// DatabaseOptions converts the storage section
func (c *Config) DatabaseOptions(clk clock.Clock) database.Options {
	return database.Options{
		Separator:                         c.Storage.SeparatorRune(),
		ThumbnailsDictionaryEntriesToKeep: c.Storage.ThumbnailsDictionaryEntriesToKeep,
		BackupsToKeep:                     c.Storage.BackupsToKeep,
		Clock:                             clk,
	}
}

// CatalogOptions converts the catalog section
func (c *Config) CatalogOptions() catalog.Options {
	return catalog.Options{
		Roots:              append([]string(nil), c.Catalog.Roots...),
		BatchSize:          c.Catalog.BatchSize,
		Cooldown:           time.Duration(c.Catalog.CooldownMinutes) * time.Minute,
		ExemptedFolderPath: c.Catalog.ExemptedFolderPath,
		DetectModified:     c.Catalog.DetectModified,
		SkipHidden:         c.Catalog.SkipHidden,
		Workers:            c.Catalog.Workers,
		ThumbnailMaxWidth:  c.Catalog.ThumbnailMaxWidth,
		ThumbnailMaxHeight: c.Catalog.ThumbnailMaxHeight,
		SaveAfterRun:       c.Catalog.SaveAfterRun,
	}
}

// Selection returns the enabled hash algorithms
func (c *Config) Selection() hashing.Selection {
	return hashing.NewSelection(c.Hashing.UsePHash, c.Hashing.UseDHash, c.Hashing.UseMD5)
}
