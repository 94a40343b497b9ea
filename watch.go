package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// runWatch checks every .bmp file created or written in a directory until ctx
// is canceled. A file is checked once it has been quiet for -settle.
func runWatch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("watch")
	settle := fs.Duration("settle", 200*time.Millisecond, "Wait this long after the last write before checking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := argCount(fs, 1); err != nil {
		return err
	}
	dir := fs.Arg(0)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	slog.InfoContext(ctx, "watching", "dir", dir)

	d := newDebouncer(*settle)
	defer d.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isBMP(event.Name) || !(event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				continue
			}
			d.touch(ctx, event.Name)
		case f := <-d.fired:
			if !d.take(f) {
				continue
			}
			r := checkFile(f.name)
			if r.Err != nil {
				slog.WarnContext(ctx, "invalid bitmap", "path", f.name, "err", r.Err)
			}
			fmt.Fprintln(e.stdout, r.String())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "error watching directory", "dir", dir, "err", err)
		}
	}
}

type firing struct {
	name string
	gen  int
}

type pendingCheck struct {
	timer *time.Timer
	gen   int
}

// debouncer sends a firing on fired once a name has not been touched for
// settle. Only the latest firing per name is accepted by take.
type debouncer struct {
	settle  time.Duration
	fired   chan firing
	pending map[string]*pendingCheck
}

func newDebouncer(settle time.Duration) *debouncer {
	return &debouncer{settle: settle, fired: make(chan firing), pending: map[string]*pendingCheck{}}
}

func (d *debouncer) touch(ctx context.Context, name string) {
	p, ok := d.pending[name]
	if !ok {
		p = &pendingCheck{}
		d.pending[name] = p
	} else {
		p.timer.Stop()
	}
	p.gen++
	f := firing{name: name, gen: p.gen}
	p.timer = time.AfterFunc(d.settle, func() {
		select {
		case d.fired <- f:
		case <-ctx.Done():
		}
	})
}

// take reports whether f is the current firing for its name and forgets the
// name if so. Firings superseded by a later touch return false.
func (d *debouncer) take(f firing) bool {
	p, ok := d.pending[f.name]
	if !ok || p.gen != f.gen {
		return false
	}
	delete(d.pending, f.name)
	return true
}

func (d *debouncer) stop() {
	for _, p := range d.pending {
		p.timer.Stop()
	}
}
