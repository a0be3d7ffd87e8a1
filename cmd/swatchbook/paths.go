package main

import (
	"os"
	"path/filepath"

	"tools.zach/dev/swatchbook/internal/paths"
)

// ///////////////////////////////////////////////
// Path Aliases
// ///////////////////////////////////////////////

// DataPaths aliases [paths.DataDir] into the main package.
type DataPaths = paths.DataDir

// defaultDataDir returns ~/.swatchbook, or ./.swatchbook when the home
// directory is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}
