package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docflow/constants"
)

// DirStats summarizes one directory scan.
type DirStats struct {
	Scanned  uint32 `json:"scanned"`
	Matched  uint32 `json:"matched"`
	Enqueued uint32 `json:"enqueued"`
	Skipped  uint32 `json:"skipped"` // already queued
	Failed   uint32 `json:"failed"`
}

// ScanDirectory walks root and enqueues every supported file. Unreadable
// entries are counted and skipped; the walk itself only fails when the
// root is unusable. A hidden root is scanned even with skipHidden set,
// since it was configured explicitly.
func ScanDirectory(ctx context.Context, root string, skipHidden bool, sink Sink, logger *slog.Logger) (DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return DirStats{}, errors.New("root path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var stats DirStats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn("ingest.scan.entry_failed", "path", path, "error", walkErr)
			stats.Failed++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if skipHidden && IsHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		kind, ok := constants.KindForExt(filepath.Ext(path))
		if !ok {
			return nil
		}
		stats.Matched++
		if sink.Enqueue(path, kind) {
			stats.Enqueued++
		} else {
			stats.Skipped++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", root, err)
	}

	logger.Info("ingest.scan.ok",
		"root", root,
		"matched", stats.Matched,
		"enqueued", stats.Enqueued,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}
