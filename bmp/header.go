package bmp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	FileHeaderLen = 14
	InfoHeaderLen = 40
	// HeaderLen is the combined size of FileHeader and InfoHeader.
	HeaderLen = FileHeaderLen + InfoHeaderLen

	BitsPerPixel   = 24
	bytesPerPixel  = BitsPerPixel / 8
	compressionRGB = 0
)

// Signature is the magic value every BMP file starts with.
var Signature = [2]byte{'B', 'M'}

// FileHeader is the 14-byte BITMAPFILEHEADER.
type FileHeader struct {
	Signature  [2]byte // BMP Signature (BM)
	FileSize   uint32  // Total file size
	Reserved   uint32  // Reserved (0)
	DataOffset uint32  // Offset to pixel data
}

// InfoHeader is the 40-byte BITMAPINFOHEADER.
type InfoHeader struct {
	HeaderSize      uint32 // Size of the information header (40)
	Width           int32  // Image width
	Height          int32  // Image height, positive means bottom-up
	Planes          uint16 // Number of color planes (1)
	BitsPerPixel    uint16 // Bits per pixel (24)
	Compression     uint32 // Compression method (0 for uncompressed)
	ImageSize       uint32 // Size of the raw pixel data, may be 0 for uncompressed
	XPixelsPerMeter int32  // Horizontal resolution
	YPixelsPerMeter int32  // Vertical resolution
	ColorsUsed      uint32 // Number of colors in the palette
	ImportantColors uint32 // Number of important colors (0 for all)
}

// Header is the combined 54-byte header of a classic BMP file.
type Header struct {
	FileHeader `mapstructure:",squash"`
	InfoHeader `mapstructure:",squash"`
}

// NewHeader returns the header Encoder e writes for a width x height image.
func (e *Encoder) NewHeader(width, height int) (Header, error) {
	if width <= 0 || height <= 0 {
		return Header{}, formatErrorf(EmptyImage, nil, "%dx%d", width, height)
	}
	rowSize := width*bytesPerPixel + RowPadding(width)
	fileSize := int64(HeaderLen) + int64(rowSize)*int64(height)
	if fileSize > 0xffffffff || width > 0x7fffffff || height > 0x7fffffff {
		return Header{}, formatErrorf(UnsupportedVariant, nil, "%dx%d image does not fit a 32-bit file size", width, height)
	}
	h := Header{
		FileHeader: FileHeader{
			Signature:  Signature,
			FileSize:   uint32(fileSize),
			DataOffset: HeaderLen,
		},
		InfoHeader: InfoHeader{
			HeaderSize:      InfoHeaderLen,
			Width:           int32(width),
			Height:          int32(height),
			Planes:          1,
			BitsPerPixel:    BitsPerPixel,
			Compression:     compressionRGB,
			XPixelsPerMeter: e.XPixelsPerMeter,
			YPixelsPerMeter: e.YPixelsPerMeter,
			ColorsUsed:      e.ColorsUsed,
		},
	}
	return h, h.Validate()
}

// Validate checks that h describes a classic uncompressed 24-bit bottom-up bitmap.
func (h *Header) Validate() error {
	if h.Signature != Signature {
		return formatErrorf(BadSignature, nil, "got %#02x %#02x", h.Signature[0], h.Signature[1])
	}
	if h.HeaderSize != InfoHeaderLen {
		return formatErrorf(UnsupportedVariant, nil, "info header size %d", h.HeaderSize)
	}
	if h.InfoHeader.BitsPerPixel != BitsPerPixel {
		return formatErrorf(UnsupportedVariant, nil, "%d bits per pixel", h.InfoHeader.BitsPerPixel)
	}
	if h.Compression != compressionRGB {
		return formatErrorf(UnsupportedVariant, nil, "compression %d", h.Compression)
	}
	if h.Width <= 0 || h.Height <= 0 {
		return formatErrorf(UnsupportedVariant, nil, "dimensions %dx%d", h.Width, h.Height)
	}
	if h.DataOffset < HeaderLen {
		return formatErrorf(UnsupportedVariant, nil, "pixel data offset %d inside header", h.DataOffset)
	}
	return nil
}

// RowSize is the on-disk length of one padded scan line.
func (h *Header) RowSize() int {
	return int(h.Width)*bytesPerPixel + RowPadding(int(h.Width))
}

// Read reads the 54-byte header from r. It does not validate it.
func (h *Header) Read(r io.Reader) error {
	var buf [HeaderLen]byte
	if n, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return formatErrorf(Truncated, err, "header is %d bytes, want %d", n, HeaderLen)
		}
		return fmt.Errorf("bmp: reading header: %w", err)
	}
	br := bytes.NewReader(buf[:])
	if err := binary.Read(br, binary.LittleEndian, &h.FileHeader); err != nil {
		return err
	}
	return binary.Read(br, binary.LittleEndian, &h.InfoHeader)
}

// Write writes the 54-byte header to w.
func (h *Header) Write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, &h.FileHeader); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, &h.InfoHeader)
}

// DecodeHeader reads and validates the header at the start of r.
func DecodeHeader(r io.Reader) (Header, error) {
	var h Header
	if err := h.Read(r); err != nil {
		return Header{}, err
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}
