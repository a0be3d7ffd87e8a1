// Package fetch downloads palette documents over HTTP.
//
// Downloads go through a retrying client. When caching is enabled the last
// good body of each URL is kept on disk and served when the URL cannot be
// reached; in that case the palette is returned together with a non-nil
// error that describes the fallback.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/swatchbook/internal/atomicfile"
	"tools.zach/dev/swatchbook/internal/palette"
	"tools.zach/dev/swatchbook/internal/paths"
)

// MaxResponseBytes caps the size of a palette document.
const MaxResponseBytes = 1 << 20

// ErrTooLarge is returned when a response exceeds [MaxResponseBytes].
var ErrTooLarge = errors.New("palette response too large")

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Options configures a [Client].
type Options struct {
	RetryMax int
	Timeout  time.Duration
	// CacheDir holds cached bodies; empty disables the cache.
	CacheDir string
}

// Client fetches palette documents.
type Client struct {
	http     *retryablehttp.Client
	cacheDir string
	// fontsAPI is the Google Fonts CSS endpoint.
	fontsAPI string
}

// NewClient returns a Client configured by opts.
func NewClient(opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = nil
	return &Client{http: rc, cacheDir: opts.CacheDir, fontsAPI: googleFontsCSS}
}

// IsURL reports whether s names an http or https resource.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Palette downloads and decodes the JSON palette at url. A palette without
// a name is named after the last path segment of url.
func (c *Client) Palette(ctx context.Context, url string) (*palette.Input, error) {
	body, err := c.get(ctx, url)
	if err == nil {
		in, decodeErr := decode(url, body)
		if decodeErr == nil {
			c.store(url, body)
			return in, nil
		}
		err = decodeErr
	}

	if c.cacheDir == "" {
		return nil, err
	}
	slog.Warn("palette fetch failed, trying cache", "url", url, "error", err)

	cached, cacheErr := os.ReadFile(c.cachePath(url))
	if cacheErr != nil {
		return nil, fmt.Errorf("fetch %s: %w; cache: %w", url, err, cacheErr)
	}
	in, decodeErr := decode(url, cached)
	if decodeErr != nil {
		return nil, fmt.Errorf("fetch %s: %w; cache: %w", url, err, decodeErr)
	}
	return in, fmt.Errorf("using cached palette: %w", err)
}

// get performs the request and returns the size-checked body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if len(body) > MaxResponseBytes {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", url, ErrTooLarge, MaxResponseBytes)
	}
	return body, nil
}

// JSON fetches url as JSON without touching the palette cache.
func (c *Client) JSON(ctx context.Context, url string) ([]byte, error) {
	return c.get(ctx, url)
}

func decode(url string, body []byte) (*palette.Input, error) {
	in, err := palette.DecodeJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	if in.Name == "" {
		base := url[strings.LastIndexByte(url, '/')+1:]
		if i := strings.IndexAny(base, "?#"); i >= 0 {
			base = base[:i]
		}
		in.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return in, nil
}

// ///////////////////////////////////////////////
// Cache
// ///////////////////////////////////////////////

func (c *Client) cachePath(url string) string {
	return filepath.Join(c.cacheDir, paths.CacheFileForURL(url))
}

// store writes body to the cache. Failures only log.
func (c *Client) store(url string, body []byte) {
	if c.cacheDir == "" {
		return
	}
	if err := atomicfile.Write(c.cachePath(url), body, 0o644); err != nil {
		slog.Warn("failed to write palette cache", "url", url, "error", err)
	}
}
