// Package sheet renders a palette as a PNG swatch sheet: the palette name
// followed by a grid of color squares, each labelled with its color name and
// canonical value.
package sheet

import (
	"fmt"
	"image"
	stdcolor "image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"tools.zach/dev/swatchbook/internal/color"
	"tools.zach/dev/swatchbook/internal/palette"
)

var (
	background = stdcolor.NRGBA{R: 0xFA, G: 0xFA, B: 0xF7, A: 0xFF}
	ink        = stdcolor.NRGBA{R: 0x1B, G: 0x1F, B: 0x24, A: 0xFF}
	muted      = stdcolor.NRGBA{R: 0x6B, G: 0x70, B: 0x78, A: 0xFF}
	checkLight = stdcolor.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	checkDark  = stdcolor.NRGBA{R: 0xD0, G: 0xD0, B: 0xD0, A: 0xFF}
	invalid    = stdcolor.NRGBA{R: 0xC6, G: 0x28, B: 0x28, A: 0xFF}
)

// Options configures [Render].
type Options struct {
	// Columns is the number of squares per row.
	Columns int
	// CellSize is the edge of each color square in pixels.
	CellSize int
	// Face draws labels. Nil uses Go Regular at 13pt.
	Face font.Face
}

// grid holds the pixel geometry of a sheet.
type grid struct {
	cols, rows    int
	cell, margin  int
	title, labels int
	lineHeight    int
}

func (g grid) size() image.Point {
	return image.Pt(
		g.margin+g.cols*(g.cell+g.margin),
		g.margin+g.title+g.rows*(g.cell+g.labels+g.margin),
	)
}

// origin returns the top-left corner of the i-th square.
func (g grid) origin(i int) image.Point {
	col, row := i%g.cols, i/g.cols
	return image.Pt(
		g.margin+col*(g.cell+g.margin),
		g.margin+g.title+row*(g.cell+g.labels+g.margin),
	)
}

// Render draws in onto a new image. Colors that do not decode to a finite
// value are drawn as a crossed-out square.
func Render(in *palette.Input, opts Options) (*image.NRGBA, error) {
	if opts.CellSize < 8 {
		return nil, fmt.Errorf("cell size %d too small", opts.CellSize)
	}
	face := opts.Face
	if face == nil {
		f, err := DefaultFace(13)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		face = f
	}

	line := face.Metrics().Height.Ceil()
	cols := max(1, min(opts.Columns, len(in.Colors)))
	g := grid{
		cols:       cols,
		rows:       max(1, (len(in.Colors)+cols-1)/cols),
		cell:       opts.CellSize,
		margin:     max(8, opts.CellSize/6),
		title:      line * 2,
		labels:     line*2 + 4,
		lineHeight: line,
	}

	img := image.NewNRGBA(image.Rectangle{Max: g.size()})
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	text(d, ink, in.Name, g.margin, g.margin+ascent, img.Bounds().Dx()-2*g.margin)

	for i, e := range in.Colors {
		o := g.origin(i)
		square := image.Rectangle{Min: o, Max: o.Add(image.Pt(g.cell, g.cell))}
		c := color.Parse(e.Value)
		value := color.Serialize(c)
		if fill, ok := toNRGBA(c); ok {
			checker(img, square, max(4, g.cell/8))
			draw.Draw(img, square, image.NewUniform(fill), image.Point{}, draw.Over)
		} else {
			crossOut(img, square)
			value = "invalid: " + e.Value
		}

		y := square.Max.Y + 2 + ascent
		text(d, ink, e.Name, o.X, y, g.cell)
		text(d, muted, value, o.X, y+g.lineHeight, g.cell)
	}
	return img, nil
}

// EncodePNG renders in and writes it to w as PNG.
func EncodePNG(w io.Writer, in *palette.Input, opts Options) error {
	img, err := Render(in, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// toNRGBA converts c to 8-bit channels, clamping out-of-range values. It
// reports false when a channel is NaN.
func toNRGBA(c color.Color) (stdcolor.NRGBA, bool) {
	a := 1.0
	if c.HasAlpha {
		a = c.A
	}
	for _, v := range []float64{c.R, c.G, c.B, a} {
		if math.IsNaN(v) {
			return stdcolor.NRGBA{}, false
		}
	}
	return stdcolor.NRGBA{R: byte8(c.R), G: byte8(c.G), B: byte8(c.B), A: byte8(a)}, true
}

func byte8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// checker fills r with a checkerboard so translucent colors read as such.
func checker(img *image.NRGBA, r image.Rectangle, step int) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := checkLight
			if ((x-r.Min.X)/step+(y-r.Min.Y)/step)%2 == 1 {
				c = checkDark
			}
			img.SetNRGBA(x, y, c)
		}
	}
}

// crossOut draws an outlined square with both diagonals.
func crossOut(img *image.NRGBA, r image.Rectangle) {
	draw.Draw(img, r, image.NewUniform(checkLight), image.Point{}, draw.Src)
	n := r.Dx()
	for i := 0; i < n; i++ {
		img.SetNRGBA(r.Min.X+i, r.Min.Y+i, invalid)
		img.SetNRGBA(r.Max.X-1-i, r.Min.Y+i, invalid)
		img.SetNRGBA(r.Min.X+i, r.Min.Y, invalid)
		img.SetNRGBA(r.Min.X+i, r.Max.Y-1, invalid)
		img.SetNRGBA(r.Min.X, r.Min.Y+i, invalid)
		img.SetNRGBA(r.Max.X-1, r.Min.Y+i, invalid)
	}
}

// text draws s with its baseline at (x, y), shortened with an ellipsis to
// fit within width pixels.
func text(d *font.Drawer, c stdcolor.Color, s string, x, y, width int) {
	d.Src = image.NewUniform(c)
	d.Dot = fixed.P(x, y)
	d.DrawString(fit(d.Face, s, width))
}

// fit shortens s until it measures at most width pixels.
func fit(face font.Face, s string, width int) string {
	limit := fixed.I(width)
	if font.MeasureString(face, s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if cand := string(runes) + "…"; font.MeasureString(face, cand) <= limit {
			return cand
		}
	}
	return ""
}
