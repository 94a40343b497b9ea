package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"BitmapCodec/bmp"
	"BitmapCodec/utils"
)

const (
	width  = 256
	height = 256
)

// checkerSize is the side of one checkerboard square in pixels.
const checkerSize = 8

func runGen(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("gen")
	out := fs.String("o", "test.bmp", "Output file")
	w := fs.Int("w", width, "Width in pixels")
	h := fs.Int("h", height, "Height in pixels")
	pattern := fs.String("pattern", "solid", "Fill pattern: solid, gradient or checker")
	colorHex := fs.String("color", "ffffff", "Fill color as RRGGBB")
	clean := fs.String("clean", "", "Remove existing .bmp files from this directory first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := argCount(fs, 0); err != nil {
		return err
	}
	c, err := parseColor(*colorHex)
	if err != nil {
		return err
	}
	g, err := makeGrid(*pattern, *w, *h, c)
	if err != nil {
		return err
	}
	if *clean != "" {
		if _, err := utils.Reset(*clean, ".bmp"); err != nil {
			return err
		}
		if filepath.Dir(*out) == "." {
			*out = filepath.Join(*clean, *out)
		}
	}
	if err := writeGrid(*out, e.cfg.Encoder(), g); err != nil {
		return err
	}
	slog.InfoContext(ctx, "wrote bitmap", "path", *out, "width", *w, "height", *h, "pattern", *pattern)
	return nil
}

// parseColor parses RRGGBB, with or without a leading '#'.
func parseColor(s string) (bmp.Pixel, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return bmp.Pixel{}, fmt.Errorf("color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return bmp.Pixel{}, fmt.Errorf("color %q: %w", s, err)
	}
	return bmp.Pixel{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func makeGrid(pattern string, w, h int, c bmp.Pixel) (bmp.Grid, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d: %w", w, h, bmp.ErrEmptyImage)
	}
	g := bmp.NewGrid(w, h)
	for y, row := range g {
		for x := range row {
			switch pattern {
			case "solid":
				row[x] = c
			case "gradient":
				row[x] = bmp.Pixel{R: ramp(x, w), G: ramp(y, h), B: c.B}
			case "checker":
				if (x/checkerSize+y/checkerSize)%2 == 0 {
					row[x] = c
				}
			default:
				return nil, fmt.Errorf("unknown pattern %q", pattern)
			}
		}
	}
	return g, nil
}

// ramp maps i in [0, n) onto [0, 255].
func ramp(i, n int) uint8 {
	if n < 2 {
		return 0
	}
	return uint8(i * 255 / (n - 1))
}

// writeGrid encodes g to path. The file is removed again if encoding fails.
func writeGrid(path string, enc *bmp.Encoder, g bmp.Grid) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
		if err != nil {
			err = errors.Join(err, os.Remove(path))
		}
	}()
	if err := enc.Encode(f, g); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
