package bmp

import (
	"image"
	"image/color"
)

// Pixel is one 24-bit RGB color.
type Pixel struct {
	R, G, B uint8
}

// Grid is an image as rows of pixels. Row 0 is the top scan line.
type Grid [][]Pixel

// NewGrid returns a width x height grid of black pixels.
func NewGrid(width, height int) Grid {
	g := make(Grid, height)
	for y := range g {
		g[y] = make([]Pixel, width)
	}
	return g
}

// Width is the length of the first row, or 0 for an empty grid.
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height is the number of rows.
func (g Grid) Height() int { return len(g) }

// Validate reports whether g can be encoded: at least one row, at least one
// column, and every row the same length.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return formatErrorf(EmptyImage, nil, "no rows")
	}
	w := len(g[0])
	if w == 0 {
		return formatErrorf(EmptyImage, nil, "no columns")
	}
	for y, row := range g {
		if len(row) != w {
			return formatErrorf(RaggedRows, nil, "row %d has %d pixels, row 0 has %d", y, len(row), w)
		}
	}
	return nil
}

// Clone returns a deep copy of g.
func (g Grid) Clone() Grid {
	c := make(Grid, len(g))
	for y, row := range g {
		c[y] = append([]Pixel(nil), row...)
	}
	return c
}

// Image returns g as an *image.NRGBA with opaque alpha. The image is as wide
// as row 0; in a ragged grid longer rows are cut and shorter rows stay
// transparent black past their end.
func (g Grid) Image() *image.NRGBA {
	w := g.Width()
	img := image.NewNRGBA(image.Rect(0, 0, w, g.Height()))
	for y, row := range g {
		off := y * img.Stride
		for x, p := range row[:min(len(row), w)] {
			img.Pix[off+x*4+0] = p.R
			img.Pix[off+x*4+1] = p.G
			img.Pix[off+x*4+2] = p.B
			img.Pix[off+x*4+3] = 0xff
		}
	}
	return img
}

// FromImage converts any image to a Grid. Alpha is discarded.
func FromImage(img image.Image) Grid {
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g[y-b.Min.Y]
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			row[x-b.Min.X] = Pixel{R: c.R, G: c.G, B: c.B}
		}
	}
	return g
}
