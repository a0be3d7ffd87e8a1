// Package color parses and serializes the color strings accepted in palette
// documents.
//
// Four notations are recognized: "#RGB", "#RRGGBB", "#RRGGBBAA", and the
// functional rgb()/rgba() forms. Every notation decodes into a [Color] whose
// channels are normalized to [0, 1]. [Serialize] writes the canonical
// functional form back out; hex is accepted as input only.
//
// [Parse] never fails. Input it cannot classify decodes to [Transparent], and
// malformed digits inside an otherwise recognized shape decode to NaN for the
// affected channel. Callers that need to tell those cases apart use
// [ParseStrict].
package color

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Color is a normalized color value. R, G and B are channel intensities in
// [0, 1]. A is only meaningful when HasAlpha is set; a Color without alpha is
// fully opaque, and downstream consumers treat "has alpha" and "alpha = 1" as
// different values.
type Color struct {
	R, G, B float64
	// A is the alpha fraction in [0, 1].
	A float64
	// HasAlpha reports whether the source notation carried an alpha channel.
	HasAlpha bool
}

// Transparent is the value [Parse] returns for input it cannot classify.
var Transparent = Color{A: 0, HasAlpha: true}

// ErrUnrecognized is returned by [ParseStrict] when the input matches none of
// the supported notations.
var ErrUnrecognized = errors.New("unrecognized color notation")

// ErrMalformed is returned by [ParseStrict] when the input has a recognized
// shape but carries invalid or out-of-range channel values.
var ErrMalformed = errors.New("malformed color value")

// RGB returns an opaque color with the given channels.
func RGB(r, g, b float64) Color {
	return Color{R: r, G: g, B: b}
}

// RGBA returns a color with the given channels and an explicit alpha.
func RGBA(r, g, b, a float64) Color {
	return Color{R: r, G: g, B: b, A: a, HasAlpha: true}
}

// Opaque reports whether c renders without translucency.
func (c Color) Opaque() bool {
	return !c.HasAlpha || c.A >= 1
}

// Valid reports whether every channel is a finite number in [0, 1].
func (c Color) Valid() bool {
	chans := []float64{c.R, c.G, c.B}
	if c.HasAlpha {
		chans = append(chans, c.A)
	}
	for _, v := range chans {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Hex returns c as a "#rrggbb" string, ignoring alpha and clamping channels
// into range. Returns an empty string when a channel is NaN.
func (c Color) Hex() string {
	if math.IsNaN(c.R) || math.IsNaN(c.G) || math.IsNaN(c.B) {
		return ""
	}
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex()
}

// String returns the canonical functional notation of c.
func (c Color) String() string {
	return Serialize(c)
}

// ///////////////////////////////////////////////
// Parsing
// ///////////////////////////////////////////////

var (
	rgbRe  = regexp.MustCompile(`(?i)^\s*rgb\s*\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*\)\s*$`)
	rgbaRe = regexp.MustCompile(`(?i)^\s*rgba\s*\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+(?:\.\d+)?)\s*\)\s*$`)
)

// Parse decodes s into a Color. Hex forms are classified by length and a
// leading '#'; anything else is matched against the rgb() and rgba()
// patterns. Unmatched input yields [Transparent].
func Parse(s string) Color {
	switch {
	case len(s) == 4 && s[0] == '#':
		return Color{
			R: nibble(s[1]) / 15,
			G: nibble(s[2]) / 15,
			B: nibble(s[3]) / 15,
		}
	case len(s) == 7 && s[0] == '#':
		return Color{
			R: hexByte(s[1:3]) / 255,
			G: hexByte(s[3:5]) / 255,
			B: hexByte(s[5:7]) / 255,
		}
	case len(s) == 9 && s[0] == '#':
		return Color{
			R:        hexByte(s[1:3]) / 255,
			G:        hexByte(s[3:5]) / 255,
			B:        hexByte(s[5:7]) / 255,
			A:        hexByte(s[7:9]) / 255,
			HasAlpha: true,
		}
	}

	if m := rgbRe.FindStringSubmatch(s); m != nil {
		return Color{
			R: decimal(m[1]) / 255,
			G: decimal(m[2]) / 255,
			B: decimal(m[3]) / 255,
		}
	}

	if m := rgbaRe.FindStringSubmatch(s); m != nil {
		return Color{
			R:        decimal(m[1]) / 255,
			G:        decimal(m[2]) / 255,
			B:        decimal(m[3]) / 255,
			A:        decimal(m[4]),
			HasAlpha: true,
		}
	}

	return Transparent
}

// ParseStrict decodes s like [Parse] but reports unrecognized input with
// [ErrUnrecognized] and invalid or out-of-range channels with [ErrMalformed].
func ParseStrict(s string) (Color, error) {
	c := Parse(s)
	if c == Transparent && !recognized(s) {
		return Color{}, fmt.Errorf("%w: %q", ErrUnrecognized, s)
	}
	if !c.Valid() {
		return Color{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return c, nil
}

// recognized reports whether s has one of the supported shapes.
func recognized(s string) bool {
	if (len(s) == 4 || len(s) == 7 || len(s) == 9) && s[0] == '#' {
		return true
	}
	return rgbRe.MatchString(s) || rgbaRe.MatchString(s)
}

// nibble decodes a single hex digit, or NaN when b is not one.
func nibble(b byte) float64 {
	switch {
	case '0' <= b && b <= '9':
		return float64(b - '0')
	case 'a' <= b && b <= 'f':
		return float64(b - 'a' + 10)
	case 'A' <= b && b <= 'F':
		return float64(b - 'A' + 10)
	}
	return math.NaN()
}

// hexByte decodes a two-digit hex byte, or NaN when s is not valid hex.
func hexByte(s string) float64 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return math.NaN()
	}
	return float64(v)
}

// decimal decodes a regexp capture that is already known to be digits.
func decimal(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ///////////////////////////////////////////////
// Serialization
// ///////////////////////////////////////////////

// Serialize writes c as "rgb(R, G, B)", or "rgba(R, G, B, A)" when c carries
// alpha. Channels are rounded to integers in 0-255; alpha keeps three
// fractional digits. NaN channels, which only the lax hex path produces, are
// written as "NaN".
func Serialize(c Color) string {
	r, g, b := channel(c.R), channel(c.G), channel(c.B)
	if c.HasAlpha {
		return fmt.Sprintf("rgba(%s, %s, %s, %.3f)", r, g, b, c.A)
	}
	return fmt.Sprintf("rgb(%s, %s, %s)", r, g, b)
}

// channel scales a normalized channel to 0-255.
func channel(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.Itoa(int(math.Round(v * 255)))
}
