// Package bmp reads and writes classic uncompressed 24-bit BMP files.
//
// Only the BITMAPINFOHEADER flavor with 24 bits per pixel, no compression and
// bottom-up row order is supported. Pixel data is exchanged as a Grid whose
// row 0 is the top of the image.
package bmp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
)

// maxRowBuffer bounds the row buffer allocated up front from header values.
// Wider rows are read incrementally so a lying header cannot force a huge
// allocation before the data is seen.
const maxRowBuffer = 1 << 24

// Encoder holds the header fields that are not derived from the image.
type Encoder struct {
	XPixelsPerMeter int32
	YPixelsPerMeter int32
	// ColorsUsed is meaningless for 24-bit images. DefaultEncoder writes 255
	// for compatibility with files produced by earlier versions of this tool.
	ColorsUsed uint32
}

// DefaultEncoder is used by Encode and Marshal.
var DefaultEncoder = Encoder{
	XPixelsPerMeter: 100,
	YPixelsPerMeter: 100,
	ColorsUsed:      255,
}

// RowPadding is the number of zero bytes appended to a scan line of width
// pixels so that its length is a multiple of 4.
func RowPadding(width int) int {
	return (4 - (width*bytesPerPixel)%4) % 4
}

// Decode reads a BMP image from r.
//
// Bytes between the header and the pixel data offset are skipped, so r does
// not need to be seekable. Decode stops reading after the last scan line.
func Decode(r io.Reader) (Grid, error) {
	h, err := DecodeHeader(r)
	if err != nil {
		return nil, err
	}
	if gap := int64(h.DataOffset) - HeaderLen; gap > 0 {
		if n, err := io.CopyN(io.Discard, r, gap); err != nil {
			return nil, readError(err, "skipped %d of %d bytes before pixel data", n, gap)
		}
	}

	width, height := int(h.Width), int(h.Height)
	rowSize := h.RowSize()
	var buf []byte
	if rowSize <= maxRowBuffer {
		buf = make([]byte, rowSize)
	}
	g := make(Grid, 0, min(height, 1024))
	for y := 0; y < height; y++ {
		line, err := readRow(r, buf, rowSize)
		if err != nil {
			return nil, readError(err, "scan line %d of %d", y, height)
		}
		row := make([]Pixel, width)
		for x := range row {
			row[x] = Pixel{R: line[x*3+2], G: line[x*3+1], B: line[x*3]}
		}
		g = append(g, row)
	}
	// Scan lines are stored bottom-up.
	slices.Reverse(g)
	return g, nil
}

// Unmarshal decodes a BMP image held in memory.
func Unmarshal(data []byte) (Grid, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes g to w using DefaultEncoder.
func Encode(w io.Writer, g Grid) error {
	return DefaultEncoder.Encode(w, g)
}

// Marshal returns the BMP encoding of g using DefaultEncoder.
func Marshal(g Grid) ([]byte, error) {
	return DefaultEncoder.Marshal(g)
}

// Encode writes g to w. The file is built in memory first so nothing is
// written when g is rejected.
func (e *Encoder) Encode(w io.Writer, g Grid) error {
	data, err := e.Marshal(g)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Marshal returns the BMP encoding of g. g is not modified.
func (e *Encoder) Marshal(g Grid) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	h, err := e.NewHeader(g.Width(), g.Height())
	if err != nil {
		return nil, err
	}
	out := bytes.NewBuffer(make([]byte, 0, h.FileSize))
	if err := h.Write(out); err != nil {
		return nil, err
	}
	// Padding bytes at the end of line are never touched and stay zero.
	line := make([]byte, h.RowSize())
	for y := len(g) - 1; y >= 0; y-- {
		for x, p := range g[y] {
			line[x*3] = p.B
			line[x*3+1] = p.G
			line[x*3+2] = p.R
		}
		out.Write(line)
	}
	return out.Bytes(), nil
}

func readRow(r io.Reader, buf []byte, rowSize int) ([]byte, error) {
	if buf != nil {
		_, err := io.ReadFull(r, buf)
		return buf, err
	}
	line, err := io.ReadAll(io.LimitReader(r, int64(rowSize)))
	if err == nil && len(line) < rowSize {
		err = io.ErrUnexpectedEOF
	}
	return line, err
}

func readError(err error, format string, args ...any) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return formatErrorf(Truncated, err, format, args...)
	}
	return fmt.Errorf("bmp: %s: %w", fmt.Sprintf(format, args...), err)
}
