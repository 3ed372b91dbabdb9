// Package ingest discovers processable files: an initial walk over the
// configured roots plus a recursive fsnotify watch that feeds later
// arrivals into the work queue.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docflow/constants"
)

// Sink receives discovered files. Enqueue reports false when the path is
// already queued.
type Sink interface {
	Enqueue(path string, kind constants.ItemKind) bool
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
