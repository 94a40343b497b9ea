// Package config holds bmptool's persistent settings.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"BitmapCodec/bmp"

	"github.com/goccy/go-json"
)

// DefaultPath is the file bmptool reads when -config is not given.
const DefaultPath = "bmptool.json"

type Config struct {
	XPixelsPerMeter int32  `json:"x_pixels_per_meter"`
	YPixelsPerMeter int32  `json:"y_pixels_per_meter"`
	ColorsUsed      uint32 `json:"colors_used"`
	// Workers bounds the number of files check decodes at once.
	Workers  int    `json:"workers"`
	LogLevel string `json:"log_level"`
}

// Default returns the settings used when no configuration file exists.
func Default() Config {
	return Config{
		XPixelsPerMeter: bmp.DefaultEncoder.XPixelsPerMeter,
		YPixelsPerMeter: bmp.DefaultEncoder.YPixelsPerMeter,
		ColorsUsed:      bmp.DefaultEncoder.ColorsUsed,
		Workers:         runtime.NumCPU(),
		LogLevel:        "info",
	}
}

// Load reads the configuration at path. Fields missing from the file keep
// their default value. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("configuration file not found, using defaults", "path", path)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read configuration file '%s': %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration file '%s': %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("loaded configuration", "path", path)
	return cfg, nil
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file '%s': %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.XPixelsPerMeter < 0 || c.YPixelsPerMeter < 0 {
		problems = append(problems, fmt.Sprintf("negative resolution %dx%d", c.XPixelsPerMeter, c.YPixelsPerMeter))
	}
	if c.Workers < 1 {
		problems = append(problems, fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	if _, err := c.Level(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Level parses LogLevel. An empty value means info.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Encoder returns the bmp encoder described by c.
func (c *Config) Encoder() *bmp.Encoder {
	return &bmp.Encoder{
		XPixelsPerMeter: c.XPixelsPerMeter,
		YPixelsPerMeter: c.YPixelsPerMeter,
		ColorsUsed:      c.ColorsUsed,
	}
}
