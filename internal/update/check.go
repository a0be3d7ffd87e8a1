// Package update compares the running swatchbook build against a release
// manifest.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ManifestURL is the default release manifest location. Set at build time via:
//
//	-X tools.zach/dev/swatchbook/internal/update.ManifestURL=...
var ManifestURL string

// ErrNoManifest is returned by [Check] when no manifest URL is configured.
var ErrNoManifest = errors.New("no release manifest configured")

// Getter fetches a JSON document. [*fetch.Client] satisfies it.
type Getter interface {
	JSON(ctx context.Context, url string) ([]byte, error)
}

// Result describes the outcome of a version check.
type Result struct {
	Current string
	Latest  string
	// Newer is set when Latest sorts after Current.
	Newer bool
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Check fetches the manifest at url and compares its root version ("." key)
// against current.
func Check(ctx context.Context, g Getter, url, current string) (Result, error) {
	res := Result{Current: current}
	if url == "" {
		return res, ErrNoManifest
	}
	body, err := g.JSON(ctx, url)
	if err != nil {
		return res, fmt.Errorf("fetch release manifest: %w", err)
	}
	var manifest map[string]string
	if err := json.Unmarshal(body, &manifest); err != nil {
		return res, fmt.Errorf("parse release manifest: %w", err)
	}
	res.Latest = manifest["."]
	if res.Latest == "" {
		return res, fmt.Errorf("release manifest at %s has no root version", url)
	}
	res.Newer = semverLess(current, res.Latest)
	return res, nil
}

// ///////////////////////////////////////////////
// Version Ordering
// ///////////////////////////////////////////////

// semverLess reports whether a sorts before b. Only the numeric core is
// compared, except that a pre-release sorts before the matching release.
// Strings that are not semver never compare less.
func semverLess(a, b string) bool {
	pa, pb := parseSemver(a), parseSemver(b)
	if pa == nil || pb == nil {
		return false
	}
	for i := range 3 {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return hasPreRelease(a) && !hasPreRelease(b)
}

func hasPreRelease(s string) bool {
	core, _, _ := strings.Cut(strings.TrimPrefix(s, "v"), "+")
	return strings.Contains(core, "-")
}

// parseSemver returns [major, minor, patch] for "v1.2.3", "1.2.3-rc.1" and
// similar, or nil when s is not semver.
func parseSemver(s string) []int {
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return nil
	}
	out := make([]int, 3)
	for i, p := range parts {
		if p == "" {
			return nil
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return nil
			}
			out[i] = out[i]*10 + int(c-'0')
		}
	}
	return out
}
