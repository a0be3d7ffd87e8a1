// Package paths centralizes file and directory names used by swatchbook.
// Every name inside the data directory is defined here.
package paths

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	ConfigFile      = "config.toml"
	LogFile         = "swatchbook.log"
	DocumentFile    = "document.json"
	PaletteCacheDir = "palette-cache"
	FontCacheDir    = "font-cache"
	BinaryName      = "swatchbook"
	DataDirRel      = ".swatchbook" // relative to $HOME
)

// LockSuffix is appended to a document path to name its advisory lock file.
const LockSuffix = ".lock"

// CacheFileForURL returns the cache file name for a remote palette URL.
// The name is derived from a SHA-1 of the URL so any URL maps to a safe
// file name.
func CacheFileForURL(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:]) + ".json"
}

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Document returns the default path of the swatch document.
func (d DataDir) Document() string { return filepath.Join(d.Root, DocumentFile) }

// PaletteCache returns the directory holding cached remote palettes.
func (d DataDir) PaletteCache() string { return filepath.Join(d.Root, PaletteCacheDir) }

// FontCache returns the directory holding downloaded export fonts.
func (d DataDir) FontCache() string { return filepath.Join(d.Root, FontCacheDir) }

// Resolve returns p unchanged if it is absolute, otherwise joined to Root.
func (d DataDir) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.Root, p)
}
