// Command bmptool writes, inspects and checks classic 24-bit BMP files.
//
// Settings come from bmptool.json (see package config) and can be overridden
// by flags. Every subcommand goes through package bmp for pixel data; inspect
// additionally walks the header with the YAML layout in package layout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"BitmapCodec/config"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// env is what every subcommand runs against.
type env struct {
	cfg         config.Config
	stdin       io.Reader
	stdout      io.Writer
	interactive bool
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands map[string]command

// Set in init since the subcommands read it back for their usage text.
func init() {
	commands = map[string]command{
		"gen":     {"gen [-o file] [-w W] [-h H] [-pattern solid|gradient|checker] [-color RRGGBB] [-clean dir]", runGen},
		"inspect": {"inspect [-json] [-layout file.yml] file.bmp", runInspect},
		"check":   {"check [-workers N] [-select] path...", runCheck},
		"convert": {"convert in.bmp out.bmp", runConvert},
		"watch":   {"watch [-settle d] dir", runWatch},
		"config":  {"config [-o file]", runConfig},
	}
}

var logLevel = &slog.LevelVar{}

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "bmptool: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	return run(ctx, os.Args[1:], os.Stdin, os.Stdout, interactive)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, interactive bool) error {
	fs := flag.NewFlagSet("bmptool", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath, "Configuration file")
	level := fs.String("log-level", "", "Log level (debug, info, warn, error), overrides log_level")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if set["log-level"] {
		cfg.LogLevel = *level
	}
	l, err := cfg.Level()
	if err != nil {
		return err
	}
	logLevel.Set(l)

	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", name)
	}
	slog.Debug("running", "command", name, "config", *configPath)
	e := &env{cfg: cfg, stdin: stdin, stdout: stdout, interactive: interactive}
	return cmd.run(ctx, e, fs.Args()[1:])
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "usage: bmptool [flags] <command> [args]\n\nflags:\n")
	fs.PrintDefaults()
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

// newFlagSet returns a flag set for subcommand name whose usage line comes
// from commands.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: bmptool %s\n", commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

func argCount(fs *flag.FlagSet, n int) error {
	if fs.NArg() != n {
		fs.Usage()
		return fmt.Errorf("%s: expected %d argument(s), got %d: %s", fs.Name(), n, fs.NArg(), strings.Join(fs.Args(), " "))
	}
	return nil
}
