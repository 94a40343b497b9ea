package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"BitmapCodec/bmp"
	"BitmapCodec/dialogue"

	"golang.org/x/sync/errgroup"
)

type result struct {
	Path          string
	Width, Height int
	Err           error
}

func (r *result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("FAIL %s: %v", r.Path, r.Err)
	}
	return fmt.Sprintf("ok   %s %dx%d", r.Path, r.Width, r.Height)
}

func runCheck(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("check")
	workers := fs.Int("workers", e.cfg.Workers, "Files decoded at once")
	sel := fs.Bool("select", false, "Choose files interactively when stdin is a terminal")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("check: no paths given")
	}
	if *workers < 1 {
		return fmt.Errorf("check: -workers must be at least 1, got %d", *workers)
	}
	files, err := expand(fs.Args())
	if err != nil {
		return err
	}
	if *sel {
		if e.interactive {
			if files, err = dialogue.SelectFiles(e.stdin, e.stdout, files); err != nil {
				return err
			}
		} else {
			slog.WarnContext(ctx, "stdin is not a terminal, checking every file")
		}
	}
	results, err := checkAll(ctx, files, *workers)
	if err != nil {
		return err
	}
	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
		fmt.Fprintln(e.stdout, results[i].String())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

// expand replaces each directory in paths with the .bmp files it directly
// contains, sorted by name.
func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, entry := range entries {
			if !entry.IsDir() && isBMP(entry.Name()) {
				found = append(found, filepath.Join(p, entry.Name()))
			}
		}
		sort.Strings(found)
		if len(found) == 0 {
			slog.Warn("no .bmp files in directory", "dir", p)
		}
		files = append(files, found...)
	}
	return files, nil
}

func isBMP(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".bmp")
}

// checkAll decodes files with at most workers running at once. Results keep
// the order of files. The error is only set when ctx is canceled.
func checkAll(ctx context.Context, files []string, workers int) ([]result, error) {
	results := make([]result, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, path := range files {
		i, path := i, path
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = checkFile(path)
			slog.DebugContext(ctx, "checked", "path", path, "err", results[i].Err)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// checkFile fully decodes path.
func checkFile(path string) result {
	r := result{Path: path}
	f, err := os.Open(path)
	if err != nil {
		r.Err = err
		return r
	}
	defer f.Close()
	br := bufio.NewReader(f)
	g, err := bmp.Decode(br)
	if err != nil {
		r.Err = err
		return r
	}
	r.Width, r.Height = g.Width(), g.Height()
	if n, _ := io.Copy(io.Discard, br); n > 0 {
		slog.Debug("trailing bytes after pixel data", "path", path, "bytes", n)
	}
	return r
}
