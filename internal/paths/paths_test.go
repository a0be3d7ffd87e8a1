// Tests for [DataDir] path construction and [CacheFileForURL] naming.
package paths

import (
	"path/filepath"
	"strings"
	"testing"
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

func TestDataDirPaths(t *testing.T) {
	root := filepath.Join("home", "user", DataDirRel)
	d := DataDir{Root: root}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Config", d.Config(), filepath.Join(root, ConfigFile)},
		{"Log", d.Log(), filepath.Join(root, LogFile)},
		{"Document", d.Document(), filepath.Join(root, DocumentFile)},
		{"PaletteCache", d.PaletteCache(), filepath.Join(root, PaletteCacheDir)},
		{"FontCache", d.FontCache(), filepath.Join(root, FontCacheDir)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	d := DataDir{Root: root}

	if got := d.Resolve("doc.json"); got != filepath.Join(root, "doc.json") {
		t.Errorf("Resolve(relative) = %q", got)
	}
	abs := filepath.Join(root, "elsewhere", "doc.json")
	if got := d.Resolve(abs); got != abs {
		t.Errorf("Resolve(absolute) = %q, want %q", got, abs)
	}
	if got := d.Resolve(""); got != "" {
		t.Errorf("Resolve(\"\") = %q, want empty", got)
	}
}

// ///////////////////////////////////////////////
// CacheFileForURL
// ///////////////////////////////////////////////

func TestCacheFileForURL(t *testing.T) {
	a := CacheFileForURL("https://example.com/a.json")
	b := CacheFileForURL("https://example.com/b.json")
	if a == b {
		t.Fatal("distinct URLs produced the same cache name")
	}
	if a != CacheFileForURL("https://example.com/a.json") {
		t.Fatal("cache name is not stable")
	}
	if !strings.HasSuffix(a, ".json") || len(a) != 40+len(".json") {
		t.Errorf("unexpected cache name %q", a)
	}
}
