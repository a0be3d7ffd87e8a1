// Package swatchbook provides embedded assets for the swatchbook CLI.
//
// The root package exists solely to embed the example palette written by
// "swatchbook init" next to the config file.
package swatchbook

import _ "embed"

// ExamplePaletteFile is the file name the example palette is written to.
const ExamplePaletteFile = "example.json"

// ExamplePalette holds palettes/example.json, embedded at build time.
//
//go:embed palettes/example.json
var ExamplePalette []byte
