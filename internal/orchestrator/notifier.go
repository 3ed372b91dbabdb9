package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/docflow/constants"
	"github.com/joseph-ayodele/docflow/internal/queue"
)

// Progress is one progress report: run counters plus timing, snapshotted
// together.
type Progress struct {
	State     constants.RunState `json:"state"`
	Processed int                `json:"processed"`
	Failed    int                `json:"failed"`
	Skipped   int                `json:"skipped"`
	Pending   int                `json:"pending"`
	Total     int                `json:"total"`
	Elapsed   time.Duration      `json:"elapsed"`
	ETA       time.Duration      `json:"eta"`
	ETAKnown  bool               `json:"eta_known"`
}

// Listener receives pipeline notifications. Calls arrive on a single
// dispatch goroutine, one at a time, in emission order; implementations
// own their thread-affinity from there. A slow listener backpressures the
// worker once the buffer fills.
type Listener interface {
	OnStateChanged(state constants.RunState)
	OnProgress(p Progress)
	OnItemCompleted(item queue.Item)
	OnItemFailed(item queue.Item, err error)
	OnDrained()
}

type eventKind int

const (
	evState eventKind = iota
	evProgress
	evCompleted
	evFailed
	evDrained
)

type event struct {
	kind     eventKind
	state    constants.RunState
	progress Progress
	item     queue.Item
	err      error
}

// notifier funnels events from any goroutine into one ordered stream. The
// send mutex makes emission order total even across senders.
type notifier struct {
	listener Listener
	logger   *slog.Logger

	ch   chan event
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newNotifier(listener Listener, buffer int, logger *slog.Logger) *notifier {
	if buffer <= 0 {
		buffer = 256
	}
	n := &notifier{
		listener: listener,
		logger:   logger,
		ch:       make(chan event, buffer),
		done:     make(chan struct{}),
	}
	go n.dispatch()
	return n
}

func (n *notifier) dispatch() {
	defer close(n.done)
	for ev := range n.ch {
		switch ev.kind {
		case evState:
			n.listener.OnStateChanged(ev.state)
		case evProgress:
			n.listener.OnProgress(ev.progress)
		case evCompleted:
			n.listener.OnItemCompleted(ev.item)
		case evFailed:
			n.listener.OnItemFailed(ev.item, ev.err)
		case evDrained:
			n.listener.OnDrained()
		}
	}
}

func (n *notifier) send(ev event) {
	if n.listener == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		n.logger.Debug("notifier.dropped_after_close", "kind", int(ev.kind))
		return
	}
	n.ch <- ev
}

// close stops intake, then waits for queued events to be delivered.
func (n *notifier) close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.ch)
	n.mu.Unlock()
	<-n.done
}

func (n *notifier) stateChanged(s constants.RunState) {
	n.send(event{kind: evState, state: s})
}

func (n *notifier) progress(p Progress) {
	n.send(event{kind: evProgress, progress: p})
}

func (n *notifier) itemCompleted(it queue.Item) {
	n.send(event{kind: evCompleted, item: it})
}

func (n *notifier) itemFailed(it queue.Item, err error) {
	n.send(event{kind: evFailed, item: it, err: err})
}

func (n *notifier) drained() {
	n.send(event{kind: evDrained})
}
