package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/swatchbook/internal/atomicfile"
)

// MaxFontBytes caps the size of a downloaded font file.
const MaxFontBytes = 10 << 20

const googleFontsCSS = "https://fonts.googleapis.com/css2"

// fontURLRe extracts the first font file URL from a Google Fonts stylesheet.
var fontURLRe = regexp.MustCompile(`url\((https?://[^)]+)\)`)

// ParseGoogleFontSpec splits "google:Family:Weight".
func ParseGoogleFontSpec(spec string) (family, weight string, ok bool) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] != "google" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// GoogleFont downloads the font named by a "google:Family:Weight" spec and
// returns the raw font file, which is usually WOFF2. Files are cached in
// cacheDir when it is non-empty.
func (c *Client) GoogleFont(ctx context.Context, spec, cacheDir string) ([]byte, error) {
	family, weight, ok := ParseGoogleFontSpec(spec)
	if !ok {
		return nil, fmt.Errorf("invalid google font spec %q: expected google:FAMILY:WEIGHT", spec)
	}

	var cacheFile string
	if cacheDir != "" {
		cacheFile = filepath.Join(cacheDir, fmt.Sprintf("%s-%s.font", strings.ReplaceAll(family, " ", "_"), weight))
		if data, err := os.ReadFile(cacheFile); err == nil {
			return data, nil
		}
	}

	cssURL := fmt.Sprintf("%s?family=%s:wght@%s", c.fontsAPI, url.QueryEscape(family), url.QueryEscape(weight))
	// A modern user agent makes the API answer with WOFF2 sources.
	css, err := c.download(ctx, cssURL, "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36", MaxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("google fonts css for %s: %w", spec, err)
	}
	m := fontURLRe.FindSubmatch(css)
	if m == nil {
		return nil, fmt.Errorf("no font URL in google fonts response for %s", spec)
	}

	data, err := c.download(ctx, string(m[1]), "", MaxFontBytes)
	if err != nil {
		return nil, fmt.Errorf("font file for %s: %w", spec, err)
	}
	if cacheFile != "" {
		if err := atomicfile.Write(cacheFile, data, 0o644); err != nil {
			return data, fmt.Errorf("caching font: %w", err)
		}
	}
	return data, nil
}

// download GETs u and returns at most limit bytes of a 200 response.
func (c *Client) download(ctx context.Context, u, userAgent string, limit int64) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", u, ErrTooLarge, limit)
	}
	return body, nil
}
