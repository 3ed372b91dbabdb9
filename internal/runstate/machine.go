// Package runstate implements the run lifecycle governing the worker loop.
// Commands validate against the current state before applying; a rejected
// command never mutates state and never notifies.
package runstate

import (
	"fmt"
	"sync"

	"github.com/joseph-ayodele/docflow/constants"
	"github.com/joseph-ayodele/docflow/internal/common"
)

// NotifyFunc receives every state change, invoked synchronously with the
// mutation and in transition order. Implementations must not call back into
// the Machine.
type NotifyFunc func(constants.RunState)

// GuardFunc can veto a start command. It runs under the machine's lock with
// the state the start would transition from; returning an error leaves the
// state unchanged.
type GuardFunc func(from constants.RunState) error

// Machine serializes all lifecycle transitions. Operator commands
// (Start/Pause/Stop) may arrive from any goroutine; the worker loop calls
// ConfirmPaused/ConfirmStopped to complete the two-phase transitions.
type Machine struct {
	mu       sync.Mutex
	state    constants.RunState
	notify   NotifyFunc
	canStart GuardFunc
}

func NewMachine(notify NotifyFunc, canStart GuardFunc) *Machine {
	return &Machine{
		state:    constants.RunIdle,
		notify:   notify,
		canStart: canStart,
	}
}

// State returns the current run state.
func (m *Machine) State() constants.RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins a fresh run from IDLE or STOPPED, or resumes from PAUSED.
// Returns the state the machine transitioned from so the caller can tell a
// fresh start from a resume.
func (m *Machine) Start() (constants.RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	switch from {
	case constants.RunIdle, constants.RunStopped, constants.RunPaused:
	default:
		return from, fmt.Errorf("start while %s: %w", from, common.ErrInvalidTransition)
	}
	if m.canStart != nil {
		if err := m.canStart(from); err != nil {
			return from, err
		}
	}
	m.set(constants.RunRunning)
	return from, nil
}

// Pause requests a pause of a running worker. The state moves to PAUSING
// immediately; the worker confirms PAUSED once the in-flight item is
// reverted.
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != constants.RunRunning {
		return fmt.Errorf("pause while %s: %w", m.state, common.ErrInvalidTransition)
	}
	m.set(constants.RunPausing)
	return nil
}

// Stop requests the end of the current run. Valid while RUNNING, PAUSING or
// PAUSED; the worker confirms STOPPED once cleanup is done.
func (m *Machine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case constants.RunRunning, constants.RunPausing, constants.RunPaused:
	default:
		return fmt.Errorf("stop while %s: %w", m.state, common.ErrInvalidTransition)
	}
	m.set(constants.RunStopping)
	return nil
}

// ConfirmPaused completes PAUSING -> PAUSED. Called by the worker after
// reverting the in-flight item. Fails when a stop overtook the pause.
func (m *Machine) ConfirmPaused() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != constants.RunPausing {
		return fmt.Errorf("confirm paused while %s: %w", m.state, common.ErrInvalidTransition)
	}
	m.set(constants.RunPaused)
	return nil
}

// ConfirmStopped completes STOPPING -> STOPPED -> IDLE. STOPPED is
// transient; both changes are notified, in order.
func (m *Machine) ConfirmStopped() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != constants.RunStopping {
		return fmt.Errorf("confirm stopped while %s: %w", m.state, common.ErrInvalidTransition)
	}
	m.set(constants.RunStopped)
	m.set(constants.RunIdle)
	return nil
}

func (m *Machine) set(s constants.RunState) {
	m.state = s
	if m.notify != nil {
		m.notify(s)
	}
}
