package main

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"

	"BitmapCodec/bmp"

	gobmp "github.com/sergeymakinen/go-bmp"
)

// runConvert rewrites any BMP flavor go-bmp understands (palettes, 16 and
// 32 bits, RLE, top-down) as a classic 24-bit file. Alpha is dropped.
func runConvert(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("convert")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := argCount(fs, 2); err != nil {
		return err
	}
	in, out := fs.Arg(0), fs.Arg(1)
	img, err := readImage(in)
	if err != nil {
		return err
	}
	g := bmp.FromImage(img)
	if err := writeGrid(out, e.cfg.Encoder(), g); err != nil {
		return err
	}
	slog.InfoContext(ctx, "converted", "in", in, "out", out, "width", g.Width(), "height", g.Height())
	return nil
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := gobmp.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}
