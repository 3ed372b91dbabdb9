// Package queue holds the ordered work list the orchestrator's worker
// drains. Items keep FIFO order for their whole life; terminal marks never
// remove them, so position survives pause/resume.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docflow/constants"
	"github.com/joseph-ayodele/docflow/internal/common"
	"github.com/joseph-ayodele/docflow/internal/extract"
)

// Stats is a point-in-time census of the queue by status.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Queue is safe for concurrent use: enqueues arrive from the watcher and
// the API while the worker loop mutates item state.
type Queue struct {
	mu sync.Mutex

	items  []*Item
	byPath map[string]*Item
	byHash map[string]*Item

	// at most one item is checked out at a time
	inProgress *Item

	// hashes of items that reached Completed, consulted for dedup
	completedHashes map[string]struct{}
}

func NewQueue() *Queue {
	return &Queue{
		byPath:          make(map[string]*Item),
		byHash:          make(map[string]*Item),
		completedHashes: make(map[string]struct{}),
	}
}

// Enqueue adds a new item unless it duplicates an existing one. Duplicate
// detection uses the content hash when the caller already knows it, and
// falls back to path equality otherwise. Returns the canonical item and
// whether it was newly added.
func (q *Queue) Enqueue(path string, kind constants.ItemKind, hash string) (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if hash != "" {
		if existing, ok := q.byHash[hash]; ok {
			return existing, false
		}
	}
	if existing, ok := q.byPath[path]; ok {
		return existing, false
	}

	it := &Item{
		ID:         uuid.New(),
		Path:       path,
		Kind:       kind,
		Hash:       hash,
		Status:     constants.ItemPending,
		EnqueuedAt: time.Now(),
	}
	q.items = append(q.items, it)
	q.byPath[path] = it
	if hash != "" {
		q.byHash[hash] = it
	}
	return it, true
}

// NextPending returns the earliest-enqueued Pending item, or nil when the
// queue is drained. It never returns an InProgress or terminal item.
func (q *Queue) NextPending() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, it := range q.items {
		if it.Status == constants.ItemPending {
			return it
		}
	}
	return nil
}

// SetHash records the lazily computed content hash on an item and indexes
// it for duplicate detection on later enqueues.
func (q *Queue) SetHash(it *Item, hash string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it.Hash = hash
	if _, ok := q.byHash[hash]; !ok {
		q.byHash[hash] = it
	}
}

// HasCompletedHash reports whether any item with this content hash has
// already completed in the current queue.
func (q *Queue) HasCompletedHash(hash string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.completedHashes[hash]
	return ok
}

// MarkInProgress checks an item out for processing. Only a Pending item may
// be checked out, and only one at a time.
func (q *Queue) MarkInProgress(it *Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it.Status != constants.ItemPending {
		return fmt.Errorf("mark in progress: item %s is %s: %w", it.ID, it.Status, common.ErrInvalidItemState)
	}
	if q.inProgress != nil {
		return fmt.Errorf("mark in progress: item %s already checked out: %w", q.inProgress.ID, common.ErrInvalidItemState)
	}
	it.Status = constants.ItemInProgress
	q.inProgress = it
	return nil
}

// MarkCompleted finalizes the checked-out item with its extracted pages.
func (q *Queue) MarkCompleted(it *Item, pages []extract.PageResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it.Status != constants.ItemInProgress {
		return fmt.Errorf("mark completed: item %s is %s: %w", it.ID, it.Status, common.ErrInvalidItemState)
	}
	it.Status = constants.ItemCompleted
	it.Pages = pages
	if it.Hash != "" {
		q.completedHashes[it.Hash] = struct{}{}
	}
	q.clearCheckout(it)
	return nil
}

// MarkFailed finalizes the checked-out item with the error that stopped it.
func (q *Queue) MarkFailed(it *Item, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it.Status != constants.ItemInProgress {
		return fmt.Errorf("mark failed: item %s is %s: %w", it.ID, it.Status, common.ErrInvalidItemState)
	}
	it.Status = constants.ItemFailed
	if cause != nil {
		it.FailReason = cause.Error()
	}
	q.clearCheckout(it)
	return nil
}

// MarkSkipped finalizes an item without processing it, e.g. on duplicate
// content. Skips happen either before checkout (dedup runs ahead of
// dispatch) or after, so Pending and InProgress are both accepted.
func (q *Queue) MarkSkipped(it *Item, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it.Status != constants.ItemPending && it.Status != constants.ItemInProgress {
		return fmt.Errorf("mark skipped: item %s is %s: %w", it.ID, it.Status, common.ErrInvalidItemState)
	}
	it.Status = constants.ItemSkipped
	it.SkipReason = reason
	q.clearCheckout(it)
	return nil
}

// RevertInProgressToPending puts the checked-out item back at its original
// queue position with Pending status. At most one item is ever checked out,
// so this is O(1). Returns the reverted item, or nil if none was in flight.
func (q *Queue) RevertInProgressToPending() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	it := q.inProgress
	if it == nil {
		return nil
	}
	it.Status = constants.ItemPending
	it.Pages = nil
	q.inProgress = nil
	return it
}

// Stats counts items by status.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{Total: len(q.items)}
	for _, it := range q.items {
		switch it.Status {
		case constants.ItemPending:
			s.Pending++
		case constants.ItemInProgress:
			s.InProgress++
		case constants.ItemCompleted:
			s.Completed++
		case constants.ItemFailed:
			s.Failed++
		case constants.ItemSkipped:
			s.Skipped++
		}
	}
	return s
}

// Items returns snapshots of every item in enqueue order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, it.Snapshot())
	}
	return out
}

func (q *Queue) clearCheckout(it *Item) {
	if q.inProgress == it {
		q.inProgress = nil
	}
}
