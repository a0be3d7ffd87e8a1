// Package config loads, validates and writes the swatchbook configuration.
//
// Configuration lives in config.toml inside the data directory. A missing
// file yields [DefaultConfig]; a present file is overlaid on the defaults so
// partial files only override what they name.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/swatchbook/internal/atomicfile"
	"tools.zach/dev/swatchbook/internal/migrate"
	"tools.zach/dev/swatchbook/internal/paths"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config is the top-level configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version  int            `toml:"version"`
	Document DocumentConfig `toml:"document"`
	Template TemplateConfig `toml:"template"`
	Layout   LayoutConfig   `toml:"layout"`
	Parse    ParseConfig    `toml:"parse"`
	Font     FontConfig     `toml:"font"`
	Fetch    FetchConfig    `toml:"fetch"`
	Watch    WatchConfig    `toml:"watch"`
	Export   ExportConfig   `toml:"export"`
	Log      LogConfig      `toml:"log"`
}

// DocumentConfig selects the document that palettes are written into.
type DocumentConfig struct {
	// Path is the document file, relative to the data directory unless absolute.
	Path string `toml:"path"`
}

// TemplateConfig names the reusable swatch component.
type TemplateConfig struct {
	// Name is the component looked up, or created, before instancing swatches.
	Name string `toml:"name"`
	// Width and Height size a newly created component.
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// LayoutConfig controls how swatch instances are arranged in a palette frame.
type LayoutConfig struct {
	// Columns is the number of swatches per row.
	Columns int `toml:"columns"`
	// Gap is the spacing between swatches on both axes.
	Gap float64 `toml:"gap"`
}

// ParseConfig controls color string parsing.
type ParseConfig struct {
	// Strict rejects unrecognized or malformed color strings instead of
	// falling back to transparent black.
	Strict bool `toml:"strict"`
}

// FontConfig names the font used for swatch labels and the fonts the
// document can load.
type FontConfig struct {
	Family string `toml:"family"`
	Style  string `toml:"style"`
	// Available lists "Family Style" pairs the document can load.
	Available []string `toml:"available"`
}

// FetchConfig controls downloading remote palette documents.
type FetchConfig struct {
	RetryMax       int `toml:"retry_max"`
	TimeoutSeconds int `toml:"timeout_seconds"`
	// Cache keeps the last good copy of each URL for offline fallback.
	Cache bool `toml:"cache"`
}

// WatchConfig controls which files the watch command re-applies.
type WatchConfig struct {
	// Include lists doublestar globs, relative to the watched directory.
	Include []string `toml:"include"`
	// Ignore lists doublestar globs excluded even when included.
	Ignore              []string `toml:"ignore"`
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
}

// ExportConfig controls PNG swatch sheets written by the export command.
type ExportConfig struct {
	// Font is a TTF, OTF or WOFF2 file, or a "google:Family:Weight" spec.
	// Empty uses the built-in Go Regular face.
	Font     string  `toml:"font"`
	FontSize float64 `toml:"font_size"`
	// CellSize is the edge of each color square in pixels.
	CellSize int `toml:"cell_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the log file size that triggers rotation.
	MaxSizeMB int `toml:"max_size_mb"`
	// Console mirrors log records to stderr.
	Console bool `toml:"console"`
}

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:  migrate.Config.CurrentVersion,
		Document: DocumentConfig{Path: paths.DocumentFile},
		Template: TemplateConfig{Name: "Swatch", Width: 120, Height: 160},
		Layout:   LayoutConfig{Columns: 6, Gap: 16},
		Parse:    ParseConfig{Strict: false},
		Font: FontConfig{
			Family:    "Inter",
			Style:     "Regular",
			Available: []string{"Inter Regular", "Inter Bold", "Roboto Regular"},
		},
		Fetch: FetchConfig{RetryMax: 2, TimeoutSeconds: 10, Cache: true},
		Watch: WatchConfig{
			Include:             []string{"**/*.json", "**/*.toml"},
			Ignore:              []string{"**/.*", "**/node_modules/**"},
			PollIntervalSeconds: 2,
		},
		Export: ExportConfig{FontSize: 13, CellSize: 96},
		Log:    LogConfig{Level: "info", MaxSizeMB: 10, Console: true},
	}
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads dataDir/config.toml over the defaults. A missing file returns
// [DefaultConfig].
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := peekVersion(data)
	migrated := migrate.Config.NeedsMigration(version)
	if migrated {
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		if data, _, err = migrate.Config.Run(data, version); err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}
	return cfg, nil
}

// peekVersion reads only the version field. Missing or unreadable versions
// count as 1.
func peekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil || v.Version == 0 {
		return 1
	}
	return v.Version
}

// Save writes c to path as TOML.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.Document.Path == "" {
		return fmt.Errorf("document.path must not be empty")
	}
	if strings.TrimSpace(c.Template.Name) == "" {
		return fmt.Errorf("template.name must not be empty")
	}
	if c.Template.Width <= 0 || c.Template.Height <= 0 {
		return fmt.Errorf("template size must be > 0, got %vx%v", c.Template.Width, c.Template.Height)
	}
	if c.Layout.Columns <= 0 {
		return fmt.Errorf("layout.columns must be > 0, got %d", c.Layout.Columns)
	}
	if c.Layout.Gap < 0 {
		return fmt.Errorf("layout.gap must be >= 0, got %v", c.Layout.Gap)
	}
	if c.Font.Family == "" || c.Font.Style == "" {
		return fmt.Errorf("font.family and font.style must not be empty")
	}
	if c.Fetch.RetryMax < 0 {
		return fmt.Errorf("fetch.retry_max must be >= 0, got %d", c.Fetch.RetryMax)
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0, got %d", c.Fetch.TimeoutSeconds)
	}
	if c.Watch.PollIntervalSeconds <= 0 {
		return fmt.Errorf("watch.poll_interval_seconds must be > 0, got %d", c.Watch.PollIntervalSeconds)
	}
	for _, p := range append(append([]string{}, c.Watch.Include...), c.Watch.Ignore...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid watch glob %q", p)
		}
	}
	if c.Export.FontSize <= 0 {
		return fmt.Errorf("export.font_size must be > 0, got %v", c.Export.FontSize)
	}
	if c.Export.CellSize < 8 {
		return fmt.Errorf("export.cell_size must be >= 8, got %d", c.Export.CellSize)
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	return nil
}
