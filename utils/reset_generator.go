// reset_generator.go
package utils

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Reset removes files ending in ext from targetDir, creating the directory if
// needed. Subdirectories are left alone. It returns the number of files removed.
func Reset(targetDir, ext string) (int, error) {
	slog.Debug("reset", "dir", targetDir, "ext", ext)

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory '%s': %w", targetDir, err)
	}

	dirEntries, err := os.ReadDir(targetDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory '%s': %w", targetDir, err)
	}

	filesRemoved := 0
	for _, entry := range dirEntries {
		entryName := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entryName), ext) {
			continue
		}
		filePath := filepath.Join(targetDir, entryName)
		if err := os.Remove(filePath); err != nil {
			slog.Warn("failed to remove file", "path", filePath, "err", err)
			continue
		}
		filesRemoved++
	}
	slog.Info("reset complete", "dir", targetDir, "removed", filesRemoved)
	return filesRemoved, nil
}
