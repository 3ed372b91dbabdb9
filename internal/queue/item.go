package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docflow/constants"
	"github.com/joseph-ayodele/docflow/internal/extract"
)

// SkipDuplicateContent is the skip reason recorded when an item's content
// hash matches an already-completed item.
const SkipDuplicateContent = "DUPLICATE_CONTENT"

// Item is one file tracked through the pipeline. The queue owns the
// canonical copy; callers outside the worker loop should read snapshots.
type Item struct {
	ID         uuid.UUID            `json:"id"`
	Path       string               `json:"path"`
	Kind       constants.ItemKind   `json:"kind"`
	Hash       string               `json:"hash,omitempty"` // empty until computed before dispatch
	Status     constants.ItemStatus `json:"status"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
	Pages      []extract.PageResult `json:"pages,omitempty"`
	FailReason string               `json:"fail_reason,omitempty"`
	SkipReason string               `json:"skip_reason,omitempty"`
}

// Snapshot returns a copy safe to hand to other goroutines.
func (it *Item) Snapshot() Item {
	cp := *it
	if it.Pages != nil {
		cp.Pages = make([]extract.PageResult, len(it.Pages))
		copy(cp.Pages, it.Pages)
	}
	return cp
}
