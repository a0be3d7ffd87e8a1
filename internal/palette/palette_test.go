// Tests for palette decoding: key order preservation in [DecodeJSON] and
// [DecodeTOML], [Load] extension dispatch and name defaulting,
// [Input.Validate], and the [EncodeJSON] round trip.
package palette

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var brandEntries = []Entry{
	{Name: "Zinc", Value: "#71717a"},
	{Name: "Amber", Value: "rgb(245, 158, 11)"},
	{Name: "Glass", Value: "rgba(255,255,255,0.5)"},
}

// ///////////////////////////////////////////////
// JSON
// ///////////////////////////////////////////////

func TestDecodeJSONKeepsOrder(t *testing.T) {
	src := `{
		"name": "Brand",
		"version": 3,
		"colors": {"Zinc": "#71717a", "Amber": "rgb(245, 158, 11)", "Glass": "rgba(255,255,255,0.5)"},
		"meta": {"author": "x", "tags": [1, 2]}
	}`
	in, err := DecodeJSON(strings.NewReader(src))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if in.Name != "Brand" {
		t.Errorf("Name = %q, want Brand", in.Name)
	}
	if !reflect.DeepEqual(in.Colors, brandEntries) {
		t.Errorf("Colors = %+v, want %+v", in.Colors, brandEntries)
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not an object", `[1, 2]`},
		{"non-string color", `{"name": "x", "colors": {"a": 1}}`},
		{"colors not an object", `{"colors": ["#fff"]}`},
		{"truncated", `{"name": "x", "colors": {"a": "#fff"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeJSON(strings.NewReader(tt.src)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncodeJSONRoundTrip(t *testing.T) {
	in := &Input{Name: `Brand "2"`, Colors: brandEntries}
	var buf bytes.Buffer
	if err := EncodeJSON(&buf, in); err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	got, err := DecodeJSON(&buf)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip = %+v, want %+v", got, in)
	}
}

// ///////////////////////////////////////////////
// TOML
// ///////////////////////////////////////////////

func TestDecodeTOMLKeepsOrder(t *testing.T) {
	src := `
name = "Brand"

[colors]
Zinc = "#71717a"
Amber = "rgb(245, 158, 11)"
Glass = "rgba(255,255,255,0.5)"
`
	in, err := DecodeTOML([]byte(src))
	if err != nil {
		t.Fatalf("DecodeTOML: %v", err)
	}
	if in.Name != "Brand" {
		t.Errorf("Name = %q", in.Name)
	}
	if !reflect.DeepEqual(in.Colors, brandEntries) {
		t.Errorf("Colors = %+v, want %+v", in.Colors, brandEntries)
	}
}

func TestDecodeTOMLInvalid(t *testing.T) {
	if _, err := DecodeTOML([]byte("name = ")); err == nil {
		t.Error("expected error for malformed TOML")
	}
}

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "ocean.json")
	os.WriteFile(jsonPath, []byte(`{"colors": {"Deep": "#003"}}`), 0o644)
	tomlPath := filepath.Join(dir, "forest.TOML")
	os.WriteFile(tomlPath, []byte("name = \"Woods\"\n[colors]\nMoss = \"#8a9a5b\"\n"), 0o644)

	in, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	if in.Name != "ocean" {
		t.Errorf("Name = %q, want file base name", in.Name)
	}

	in, err = Load(tomlPath)
	if err != nil {
		t.Fatalf("Load toml: %v", err)
	}
	if in.Name != "Woods" || len(in.Colors) != 1 || in.Colors[0].Name != "Moss" {
		t.Errorf("unexpected palette %+v", in)
	}

	if _, err := Load(filepath.Join(dir, "palette.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	yaml := filepath.Join(dir, "p.yaml")
	os.WriteFile(yaml, []byte("name: x"), 0o644)
	if _, err := Load(yaml); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

// ///////////////////////////////////////////////
// Validate
// ///////////////////////////////////////////////

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr bool
	}{
		{"ok", Input{Name: "Brand", Colors: brandEntries}, false},
		{"empty palette is fine", Input{Name: "Brand"}, false},
		{"empty name", Input{Name: " "}, true},
		{"separator in name", Input{Name: "a/b"}, true},
		{"empty color name", Input{Name: "x", Colors: []Entry{{Name: "", Value: "#fff"}}}, true},
		{"duplicate color", Input{Name: "x", Colors: []Entry{{Name: "a"}, {Name: "a"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestQualifiedName(t *testing.T) {
	in := &Input{Name: "Brand"}
	if got := in.Qualified(Entry{Name: "Primary"}); got != "Brand/Primary" {
		t.Errorf("Qualified = %q", got)
	}
}
