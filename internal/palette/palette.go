// Package palette decodes palette documents: a palette name plus an ordered
// mapping of color names to color strings.
//
// The order of the mapping in the source file is the order swatches are
// created in, so both decoders keep it instead of going through a Go map.
package palette

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Input is a decoded palette document.
type Input struct {
	// Name is the palette name and the prefix of every style name.
	Name string
	// Colors holds the entries in document order.
	Colors []Entry
}

// Entry is one named color string.
type Entry struct {
	Name  string
	Value string
}

// Separator joins a palette name and a color name into a style name.
const Separator = "/"

// ErrInvalid is wrapped by every [Input.Validate] failure.
var ErrInvalid = errors.New("invalid palette")

// QualifiedName returns the style name for a color of a palette.
func QualifiedName(palette, color string) string {
	return palette + Separator + color
}

// Qualified returns the style name for e within in.
func (in *Input) Qualified(e Entry) string {
	return QualifiedName(in.Name, e.Name)
}

// Validate checks the palette name and that color names are non-empty and
// unique.
func (in *Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: empty palette name", ErrInvalid)
	}
	if strings.Contains(in.Name, Separator) {
		return fmt.Errorf("%w: palette name %q contains %q", ErrInvalid, in.Name, Separator)
	}
	seen := make(map[string]bool, len(in.Colors))
	for i, e := range in.Colors {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("%w: color %d has an empty name", ErrInvalid, i)
		}
		if seen[e.Name] {
			return fmt.Errorf("%w: duplicate color name %q", ErrInvalid, e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// ///////////////////////////////////////////////
// Loading
// ///////////////////////////////////////////////

// Load decodes the palette file at path, choosing the decoder from the file
// extension (.json or .toml). A palette without a name takes the file's
// base name.
func Load(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}

	var in *Input
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		in, err = DecodeJSON(bytes.NewReader(data))
	case ".toml":
		in, err = DecodeTOML(data)
	default:
		return nil, fmt.Errorf("unsupported palette format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if in.Name == "" {
		in.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return in, nil
}

// ///////////////////////////////////////////////
// JSON
// ///////////////////////////////////////////////

// DecodeJSON reads {"name": "...", "colors": {"Primary": "#336699", ...}}.
// Unknown top-level keys are skipped.
func DecodeJSON(r io.Reader) (*Input, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	in := &Input{}
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		switch key {
		case "name":
			if err := dec.Decode(&in.Name); err != nil {
				return nil, fmt.Errorf("name: %w", err)
			}
		case "colors":
			if in.Colors, err = decodeEntries(dec); err != nil {
				return nil, fmt.Errorf("colors: %w", err)
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return in, nil
}

// decodeEntries reads a JSON object of string values, keeping key order.
func decodeEntries(dec *json.Decoder) ([]Entry, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var entries []Entry
	for dec.More() {
		name, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("color %q: %w", name, err)
		}
		entries = append(entries, Entry{Name: name, Value: value})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return entries, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return s, nil
}

// EncodeJSON writes in in the format read by [DecodeJSON], preserving order.
func EncodeJSON(w io.Writer, in *Input) error {
	var buf bytes.Buffer
	name, err := json.Marshal(in.Name)
	if err != nil {
		return err
	}
	buf.WriteString(`{"name": `)
	buf.Write(name)
	buf.WriteString(`, "colors": {`)
	for i, e := range in.Colors {
		if i > 0 {
			buf.WriteString(", ")
		}
		k, _ := json.Marshal(e.Name)
		v, _ := json.Marshal(e.Value)
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(v)
	}
	buf.WriteString("}}\n")
	_, err = w.Write(buf.Bytes())
	return err
}

// ///////////////////////////////////////////////
// TOML
// ///////////////////////////////////////////////

// DecodeTOML reads
//
//	name = "Brand"
//	[colors]
//	Primary = "#336699"
//
// Entry order follows the order keys appear in the file.
func DecodeTOML(data []byte) (*Input, error) {
	var doc struct {
		Name   string            `toml:"name"`
		Colors map[string]string `toml:"colors"`
	}
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, err
	}

	in := &Input{Name: doc.Name}
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != "colors" {
			continue
		}
		in.Colors = append(in.Colors, Entry{Name: key[1], Value: doc.Colors[key[1]]})
	}
	return in, nil
}
