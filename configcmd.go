package main

import (
	"context"
	"fmt"
	"log/slog"

	"BitmapCodec/config"

	"github.com/goccy/go-json"
)

// runConfig prints the effective configuration, or saves it with -o.
func runConfig(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("config")
	out := fs.String("o", "", "Write the configuration to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := argCount(fs, 0); err != nil {
		return err
	}
	if *out != "" {
		if err := config.Save(*out, e.cfg); err != nil {
			return err
		}
		slog.InfoContext(ctx, "saved configuration", "path", *out)
		return nil
	}
	data, err := json.MarshalIndent(e.cfg, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.stdout, "%s\n", data)
	return err
}
