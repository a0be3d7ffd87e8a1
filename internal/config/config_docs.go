package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/swatchbook/internal/atomicfile"
)

// ConfigDocs maps dot-separated TOML keys to the comment written above them
// by [WriteDefault].
var ConfigDocs = map[string]string{
	"version":                     "Config schema version. Do not edit.",
	"document.path":               "Swatch document written by apply, component and watch.\nRelative paths resolve against the data directory.",
	"template.name":               "Component instanced for every color. It must contain exactly one\nrectangle named \"Color\" and one text node named \"Name\".\nCreated with the size below when missing.",
	"template.width":              "",
	"template.height":             "",
	"layout.columns":              "Swatches per row inside the palette frame.",
	"layout.gap":                  "Spacing between swatches, in document units.",
	"parse.strict":                "Reject unrecognized color strings instead of writing transparent black.",
	"font.family":                 "Label font. Must appear in the available list.",
	"font.style":                  "",
	"font.available":              "Fonts the document can load, as \"Family Style\".",
	"fetch.retry_max":             "Retries for palette URLs before falling back to the cache.",
	"fetch.timeout_seconds":       "",
	"fetch.cache":                 "Keep the last good copy of every palette URL.",
	"watch.include":               "Globs (doublestar syntax) of palette files re-applied by watch.",
	"watch.ignore":                "",
	"watch.poll_interval_seconds": "Polling interval used when file notifications are unavailable.",
	"export.font":                 "Label font for export: a .ttf, .otf or .woff2 file, or google:Family:Weight.\nEmpty uses the built-in Go Regular face.",
	"export.font_size":            "",
	"export.cell_size":            "Edge of each exported color square, in pixels.",
	"log.level":                   "trace, debug, info, warn or error",
	"log.max_size_mb":             "",
	"log.console":                 "Mirror log records to stderr.",
}

// WriteDefault writes [DefaultConfig] to path as TOML annotated with
// [ConfigDocs].
func WriteDefault(path string) error {
	out, err := DefaultTOML()
	if err != nil {
		return err
	}
	return atomicfile.Write(path, out, 0o644)
}

// DefaultTOML renders the documented default configuration.
func DefaultTOML() ([]byte, error) {
	var raw bytes.Buffer
	enc := toml.NewEncoder(&raw)
	enc.Indent = ""
	if err := enc.Encode(DefaultConfig()); err != nil {
		return nil, fmt.Errorf("encoding default config: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("# swatchbook configuration\n")
	section := ""
	for _, line := range strings.Split(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "["):
			section = strings.Trim(trimmed, "[]")
			out.WriteString("\n" + trimmed + "\n")
			continue
		}

		key, _, ok := strings.Cut(trimmed, "=")
		if ok {
			full := strings.TrimSpace(key)
			if section != "" {
				full = section + "." + full
			}
			if doc := ConfigDocs[full]; doc != "" {
				for _, cl := range strings.Split(doc, "\n") {
					out.WriteString("# " + cl + "\n")
				}
			}
		}
		out.WriteString(trimmed + "\n")
	}
	return out.Bytes(), nil
}
