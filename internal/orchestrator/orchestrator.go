// Package orchestrator coordinates the processing pipeline: one background
// worker drains the work queue under a run state machine, dispatches each
// item to its extraction route, classifies and persists the results, and
// publishes progress through a serialized notification stream.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docflow/constants"
	"github.com/joseph-ayodele/docflow/internal/classify"
	"github.com/joseph-ayodele/docflow/internal/common"
	"github.com/joseph-ayodele/docflow/internal/extract"
	"github.com/joseph-ayodele/docflow/internal/hash"
	"github.com/joseph-ayodele/docflow/internal/queue"
	"github.com/joseph-ayodele/docflow/internal/repository"
	"github.com/joseph-ayodele/docflow/internal/runstate"
	"github.com/joseph-ayodele/docflow/internal/timing"
)

// Dispatcher routes one item to its extraction strategy.
type Dispatcher interface {
	Dispatch(ctx context.Context, path string, kind constants.ItemKind) ([]extract.PageResult, error)
}

type Option func(*Orchestrator)

// WithClock overrides the time source used for elapsed/ETA accounting.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithNotifyBuffer sets the notification channel capacity.
func WithNotifyBuffer(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.notifyBuf = n
		}
	}
}

// Orchestrator owns the work queue and the single worker goroutine that
// drains it. Start/Pause/Stop/Enqueue may be called from any goroutine;
// they are signals the worker observes at its checkpoints, never direct
// mutations of worker state.
type Orchestrator struct {
	logger     *slog.Logger
	queue      *queue.Queue
	machine    *runstate.Machine
	tracker    *timing.Tracker
	dispatcher Dispatcher
	classifier classify.Classifier
	records    repository.RecordRepository
	runs       repository.RunRepository
	notifier   *notifier
	counters   counters

	now       func() time.Time
	notifyBuf int

	baseCtx context.Context
	cancel  context.CancelFunc

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	drainNotified atomic.Bool

	runMu sync.Mutex
	runID uuid.UUID

	quitOnce sync.Once
}

// New wires the pipeline and starts the worker goroutine. classifier,
// records and runs may be nil; the matching stages are then skipped.
func New(
	dispatcher Dispatcher,
	classifier classify.Classifier,
	records repository.RecordRepository,
	runs repository.RunRepository,
	listener Listener,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		logger:     logger,
		dispatcher: dispatcher,
		classifier: classifier,
		records:    records,
		runs:       runs,
		now:        time.Now,
		notifyBuf:  256,
		wake:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.baseCtx, o.cancel = context.WithCancel(context.Background())
	o.queue = queue.NewQueue()
	o.tracker = timing.NewTracker(o.now)
	o.notifier = newNotifier(listener, o.notifyBuf, logger)
	o.machine = runstate.NewMachine(o.notifier.stateChanged, o.startGuard)

	go o.runLoop()
	return o
}

func (o *Orchestrator) startGuard(from constants.RunState) error {
	if from == constants.RunPaused {
		return nil
	}
	if o.queue.NextPending() == nil {
		return fmt.Errorf("start: no pending items: %w", common.ErrEmptyQueue)
	}
	return nil
}

// Enqueue registers a discovered file. Returns whether the item was newly
// added; duplicates by path or known content hash are ignored.
func (o *Orchestrator) Enqueue(path string, kind constants.ItemKind) bool {
	it, added := o.queue.Enqueue(path, kind, "")
	if !added {
		o.logger.Debug("orchestrator.enqueue.duplicate", "path", path)
		return false
	}
	o.logger.Info("orchestrator.enqueue.ok", "path", path, "kind", string(kind), "item_id", it.ID)
	o.drainNotified.Store(false)
	o.poke()
	return true
}

// Start begins a fresh run, or resumes a paused one. A fresh start resets
// counters and timing; a resume keeps both and only folds in the completed
// pause interval.
func (o *Orchestrator) Start() error {
	from, err := o.machine.Start()
	if err != nil {
		o.logger.Warn("orchestrator.start.rejected", "error", err)
		return err
	}
	if from == constants.RunPaused {
		o.tracker.OnResume()
		o.logger.Info("orchestrator.run.resume")
	} else {
		o.counters.reset()
		o.tracker.Start()
		o.drainNotified.Store(false)
		o.beginRun()
		o.logger.Info("orchestrator.run.start")
	}
	o.poke()
	return nil
}

// Pause asks the worker to stop after the current item. The item in flight
// reverts to pending and is re-attempted from scratch on resume.
func (o *Orchestrator) Pause() error {
	if err := o.machine.Pause(); err != nil {
		o.logger.Warn("orchestrator.pause.rejected", "error", err)
		return err
	}
	o.logger.Info("orchestrator.pause.requested")
	o.poke()
	return nil
}

// Stop ends the run. Best-effort: an in-flight backend call runs to
// completion but its result is discarded; counters and timing reset once
// the worker confirms.
func (o *Orchestrator) Stop() error {
	if err := o.machine.Stop(); err != nil {
		o.logger.Warn("orchestrator.stop.rejected", "error", err)
		return err
	}
	o.logger.Info("orchestrator.stop.requested")
	o.poke()
	return nil
}

// State returns the current run state.
func (o *Orchestrator) State() constants.RunState {
	return o.machine.State()
}

// Progress snapshots counters, queue census and timing.
func (o *Orchestrator) Progress() Progress {
	s := o.queue.Stats()
	processed, failed, skipped := o.counters.snapshot()
	eta, known := o.tracker.ETA(processed, s.Total)
	return Progress{
		State:     o.machine.State(),
		Processed: processed,
		Failed:    failed,
		Skipped:   skipped,
		Pending:   s.Pending,
		Total:     s.Total,
		Elapsed:   o.tracker.Elapsed(),
		ETA:       eta,
		ETAKnown:  known,
	}
}

// Items returns snapshots of all queue items in enqueue order.
func (o *Orchestrator) Items() []queue.Item {
	return o.queue.Items()
}

// Shutdown stops the worker and flushes pending notifications. The item in
// flight is allowed to finish unless ctx expires first, in which case the
// backend call is cancelled.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.quitOnce.Do(func() { close(o.quit) })
	select {
	case <-o.done:
	case <-ctx.Done():
		o.logger.Warn("orchestrator.shutdown.interrupted")
		o.cancel()
		<-o.done
	}
	o.cancel()
	o.notifier.close()
	o.logger.Info("orchestrator.shutdown.complete")
}

// poke wakes a parked worker. The buffer of one coalesces bursts.
func (o *Orchestrator) poke() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) runLoop() {
	defer close(o.done)
	for {
		select {
		case <-o.quit:
			return
		default:
		}

		switch o.machine.State() {
		case constants.RunRunning:
			o.processNext()
		case constants.RunPausing:
			o.completePause()
		case constants.RunStopping:
			o.completeStop()
		default:
			// IDLE, PAUSED or transient STOPPED: park until signalled
			select {
			case <-o.wake:
			case <-o.quit:
				return
			}
		}
	}
}

// processNext handles exactly one pending item, or parks on a drained
// queue. Commands that arrive during the backend call are honored before
// the next item starts.
func (o *Orchestrator) processNext() {
	it := o.queue.NextPending()
	if it == nil {
		o.handleDrained()
		return
	}

	if it.Hash == "" {
		h, err := hash.File(it.Path)
		if err != nil {
			o.failBeforeDispatch(it, fmt.Errorf("hash content: %w", err))
			return
		}
		o.queue.SetHash(it, h)
	}

	if o.isDuplicate(it) {
		if err := o.queue.MarkSkipped(it, queue.SkipDuplicateContent); err != nil {
			o.invariantViolated(err)
			return
		}
		o.counters.skipped.Add(1)
		o.logger.Info("orchestrator.item.skipped", "path", it.Path, "reason", queue.SkipDuplicateContent)
		o.emitProgress()
		return
	}

	if err := o.queue.MarkInProgress(it); err != nil {
		o.invariantViolated(err)
		return
	}

	pages, err := o.dispatcher.Dispatch(o.baseCtx, it.Path, it.Kind)
	if o.interrupted() {
		// a pause or stop arrived mid-call; the result is discarded and
		// the item reverts when the command is honored
		o.logger.Info("orchestrator.item.discarded", "path", it.Path)
		return
	}
	if err != nil {
		o.fail(it, err)
		return
	}

	tags, err := o.classifyPages(it, pages)
	if err != nil {
		o.fail(it, fmt.Errorf("classify: %w", err))
		return
	}

	recordID, err := o.persist(it, tags, pages)
	if err != nil {
		o.fail(it, fmt.Errorf("persist: %w", err))
		return
	}

	if err := o.queue.MarkCompleted(it, pages); err != nil {
		o.invariantViolated(err)
		return
	}
	o.counters.processed.Add(1)
	o.logger.Info("orchestrator.item.ok",
		"path", it.Path,
		"pages", len(pages),
		"category", tags.Category,
		"record_id", recordID,
	)
	o.notifier.itemCompleted(it.Snapshot())
	o.emitProgress()
}

func (o *Orchestrator) handleDrained() {
	if o.drainNotified.CompareAndSwap(false, true) {
		o.logger.Info("orchestrator.queue.drained")
		o.notifier.drained()
		o.emitProgress()
	}
	// remain RUNNING and park; the watcher keeps feeding the queue
	select {
	case <-o.wake:
	case <-o.quit:
	}
}

func (o *Orchestrator) completePause() {
	if it := o.queue.RevertInProgressToPending(); it != nil {
		o.logger.Info("orchestrator.item.reverted", "path", it.Path)
	}
	o.tracker.OnPause()
	if err := o.machine.ConfirmPaused(); err != nil {
		// a stop overtook the pause; the next iteration handles it
		o.logger.Debug("orchestrator.pause.overtaken", "error", err)
		return
	}
	o.logger.Info("orchestrator.run.paused")
}

func (o *Orchestrator) completeStop() {
	if it := o.queue.RevertInProgressToPending(); it != nil {
		o.logger.Info("orchestrator.item.reverted", "path", it.Path)
	}
	processed, failed, skipped := o.counters.snapshot()
	elapsed := o.tracker.Elapsed()
	o.finishRun(processed, failed, skipped, elapsed)
	o.counters.reset()
	o.tracker.Reset()
	if err := o.machine.ConfirmStopped(); err != nil {
		o.logger.Error("orchestrator.stop.confirm", "error", err)
		return
	}
	o.logger.Info("orchestrator.run.stopped",
		"processed", processed,
		"failed", failed,
		"skipped", skipped,
		"elapsed", elapsed,
	)
	o.emitProgress()
}

func (o *Orchestrator) interrupted() bool {
	s := o.machine.State()
	return s == constants.RunPausing || s == constants.RunStopping
}

// invariantViolated aborts the run. A queue-state violation means the
// single-writer discipline broke, and continuing could corrupt accounting.
func (o *Orchestrator) invariantViolated(err error) {
	o.logger.Error("orchestrator.invariant.violated", "error", err)
	if serr := o.machine.Stop(); serr != nil {
		o.logger.Debug("orchestrator.invariant.stop", "error", serr)
	}
	o.completeStop()
}

func (o *Orchestrator) isDuplicate(it *queue.Item) bool {
	if o.queue.HasCompletedHash(it.Hash) {
		return true
	}
	if o.records == nil {
		return false
	}
	rec, err := o.records.FindByHash(o.baseCtx, it.Hash)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			o.logger.Warn("orchestrator.dedup.lookup", "path", it.Path, "error", err)
		}
		return false
	}
	return rec != nil
}

// failBeforeDispatch marks an item failed that never reached checkout,
// e.g. when hashing its content failed.
func (o *Orchestrator) failBeforeDispatch(it *queue.Item, cause error) {
	if err := o.queue.MarkInProgress(it); err != nil {
		o.invariantViolated(err)
		return
	}
	o.fail(it, cause)
}

func (o *Orchestrator) fail(it *queue.Item, cause error) {
	if err := o.queue.MarkFailed(it, cause); err != nil {
		o.invariantViolated(err)
		return
	}
	o.counters.failed.Add(1)
	if reason, ok := extract.ReasonOf(cause); ok {
		o.logger.Warn("orchestrator.item.failed", "path", it.Path, "reason", string(reason), "error", cause)
	} else {
		o.logger.Warn("orchestrator.item.failed", "path", it.Path, "error", cause)
	}
	o.notifier.itemFailed(it.Snapshot(), cause)
	o.emitProgress()
}

func (o *Orchestrator) classifyPages(it *queue.Item, pages []extract.PageResult) (classify.DocumentTags, error) {
	if o.classifier == nil {
		return classify.DocumentTags{Category: string(constants.Other)}, nil
	}
	req := classify.ClassifyRequest{
		Pages:             pages,
		FilenameHint:      filepath.Base(it.Path),
		FolderHint:        filepath.Dir(it.Path),
		AllowedCategories: constants.AsStringSlice(),
	}
	tags, _, err := o.classifier.Classify(o.baseCtx, req)
	if err != nil {
		return classify.DocumentTags{}, err
	}
	canon, ok := constants.Canonicalize(tags.Category)
	if !ok {
		o.logger.Warn("category unknown", "label", tags.Category, "path", it.Path)
	}
	tags.Category = string(canon)
	return tags, nil
}

func (o *Orchestrator) persist(it *queue.Item, tags classify.DocumentTags, pages []extract.PageResult) (uuid.UUID, error) {
	if o.records == nil {
		return uuid.Nil, nil
	}
	var content strings.Builder
	for i, p := range pages {
		if i > 0 {
			content.WriteString("\f")
		}
		content.WriteString(p.Text)
	}
	runID := o.currentRunID()
	rec := &repository.Record{
		Path:        it.Path,
		Kind:        string(it.Kind),
		ContentHash: it.Hash,
		Category:    tags.Category,
		Tags:        tags.Tags,
		Summary:     tags.Summary,
		Language:    tags.Language,
		Confidence:  tags.ModelConfidence,
		PageCount:   len(pages),
		Content:     content.String(),
		RunID:       uuid.NullUUID{UUID: runID, Valid: runID != uuid.Nil},
	}
	return o.records.Insert(o.baseCtx, rec)
}

func (o *Orchestrator) emitProgress() {
	o.notifier.progress(o.Progress())
}

func (o *Orchestrator) beginRun() {
	if o.runs == nil {
		return
	}
	id, err := o.runs.Start(o.baseCtx, o.now())
	if err != nil {
		o.logger.Warn("orchestrator.run.history", "error", err)
		return
	}
	o.setRunID(id)
}

func (o *Orchestrator) finishRun(processed, failed, skipped int, elapsed time.Duration) {
	if o.runs == nil {
		return
	}
	id := o.currentRunID()
	if id == uuid.Nil {
		return
	}
	if err := o.runs.Finish(o.baseCtx, id, processed, failed, skipped, elapsed, o.now()); err != nil {
		o.logger.Warn("orchestrator.run.history", "error", err)
	}
	o.setRunID(uuid.Nil)
}

func (o *Orchestrator) setRunID(id uuid.UUID) {
	o.runMu.Lock()
	o.runID = id
	o.runMu.Unlock()
}

func (o *Orchestrator) currentRunID() uuid.UUID {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	return o.runID
}
