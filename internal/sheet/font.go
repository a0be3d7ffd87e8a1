package sheet

import (
	"errors"
	"fmt"

	tdfont "github.com/tdewolff/font"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// ErrEmptyFont is returned by [ParseFace] for empty input.
var ErrEmptyFont = errors.New("empty font data")

// DefaultFace returns Go Regular at size points.
func DefaultFace(size float64) (font.Face, error) {
	return ParseFace(goregular.TTF, size)
}

// ParseFace parses TTF, OTF or WOFF2 data into a face of size points at
// 72 DPI.
func ParseFace(data []byte, size float64) (font.Face, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFont
	}
	if IsWOFF2(data) {
		sfnt, err := tdfont.ToSFNT(data)
		if err != nil {
			return nil, fmt.Errorf("convert woff2 to sfnt: %w", err)
		}
		data = sfnt
	}
	otf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

// IsWOFF2 reports whether data starts with the WOFF2 signature "wOF2".
func IsWOFF2(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "wOF2"
}
