package constants

// ItemStatus is the canonical per-item lifecycle state in the work queue.
type ItemStatus string

// Stable values (store these exact strings in DB).
const (
	ItemPending    ItemStatus = "PENDING"
	ItemInProgress ItemStatus = "IN_PROGRESS"
	ItemCompleted  ItemStatus = "COMPLETED"
	ItemFailed     ItemStatus = "FAILED"
	ItemSkipped    ItemStatus = "SKIPPED"
)

// Terminal reports whether the status is final for the current attempt.
func (s ItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemFailed || s == ItemSkipped
}

// RunState is the process-wide lifecycle state of the orchestrator.
type RunState string

const (
	RunIdle     RunState = "IDLE"
	RunRunning  RunState = "RUNNING"
	RunPausing  RunState = "PAUSING"
	RunPaused   RunState = "PAUSED"
	RunStopping RunState = "STOPPING"
	RunStopped  RunState = "STOPPED" // transient: cleanup, then back to IDLE
)
