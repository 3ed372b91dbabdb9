package runstate

import (
	"errors"
	"testing"

	"github.com/joseph-ayodele/docflow/constants"
	"github.com/joseph-ayodele/docflow/internal/common"
)

type recorder struct {
	states []constants.RunState
}

func (r *recorder) notify(s constants.RunState) {
	r.states = append(r.states, s)
}

func (r *recorder) assertSequence(t *testing.T, want ...constants.RunState) {
	t.Helper()
	if len(r.states) != len(want) {
		t.Fatalf("notified %v, want %v", r.states, want)
	}
	for i := range want {
		if r.states[i] != want[i] {
			t.Fatalf("notified %v, want %v", r.states, want)
		}
	}
}

func TestFullLifecycle(t *testing.T) {
	rec := &recorder{}
	m := NewMachine(rec.notify, nil)

	if m.State() != constants.RunIdle {
		t.Fatalf("initial state %s, want IDLE", m.State())
	}

	from, err := m.Start()
	if err != nil {
		t.Fatal(err)
	}
	if from != constants.RunIdle {
		t.Errorf("started from %s, want IDLE", from)
	}
	if err := m.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := m.ConfirmPaused(); err != nil {
		t.Fatal(err)
	}
	from, err = m.Start()
	if err != nil {
		t.Fatal(err)
	}
	if from != constants.RunPaused {
		t.Errorf("resumed from %s, want PAUSED", from)
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := m.ConfirmStopped(); err != nil {
		t.Fatal(err)
	}
	if m.State() != constants.RunIdle {
		t.Fatalf("final state %s, want IDLE", m.State())
	}

	rec.assertSequence(t,
		constants.RunRunning,
		constants.RunPausing,
		constants.RunPaused,
		constants.RunRunning,
		constants.RunStopping,
		constants.RunStopped,
		constants.RunIdle,
	)
}

func TestInvalidCommandsLeaveStateUntouched(t *testing.T) {
	cases := []struct {
		name string
		prep func(m *Machine)
		cmd  func(m *Machine) error
		want constants.RunState
	}{
		{
			name: "pause while idle",
			prep: func(*Machine) {},
			cmd:  func(m *Machine) error { return m.Pause() },
			want: constants.RunIdle,
		},
		{
			name: "stop while idle",
			prep: func(*Machine) {},
			cmd:  func(m *Machine) error { return m.Stop() },
			want: constants.RunIdle,
		},
		{
			name: "start while running",
			prep: func(m *Machine) { m.Start() },
			cmd: func(m *Machine) error {
				_, err := m.Start()
				return err
			},
			want: constants.RunRunning,
		},
		{
			name: "pause while paused",
			prep: func(m *Machine) {
				m.Start()
				m.Pause()
				m.ConfirmPaused()
			},
			cmd:  func(m *Machine) error { return m.Pause() },
			want: constants.RunPaused,
		},
		{
			name: "confirm paused while running",
			prep: func(m *Machine) { m.Start() },
			cmd:  func(m *Machine) error { return m.ConfirmPaused() },
			want: constants.RunRunning,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			m := NewMachine(rec.notify, nil)
			tc.prep(m)
			before := len(rec.states)

			err := tc.cmd(m)
			if !errors.Is(err, common.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if m.State() != tc.want {
				t.Errorf("state mutated to %s, want %s", m.State(), tc.want)
			}
			if len(rec.states) != before {
				t.Errorf("rejected command must not notify, got %v", rec.states[before:])
			}
		})
	}
}

func TestStopOvertakesPause(t *testing.T) {
	rec := &recorder{}
	m := NewMachine(rec.notify, nil)

	m.Start()
	if err := m.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop while PAUSING should be valid: %v", err)
	}
	if err := m.ConfirmPaused(); !errors.Is(err, common.ErrInvalidTransition) {
		t.Fatalf("pause confirmation after stop should be rejected, got %v", err)
	}
	if err := m.ConfirmStopped(); err != nil {
		t.Fatal(err)
	}

	rec.assertSequence(t,
		constants.RunRunning,
		constants.RunPausing,
		constants.RunStopping,
		constants.RunStopped,
		constants.RunIdle,
	)
}

func TestStartGuard(t *testing.T) {
	var sawFrom constants.RunState
	guard := func(from constants.RunState) error {
		sawFrom = from
		if from != constants.RunPaused {
			return common.ErrEmptyQueue
		}
		return nil
	}
	rec := &recorder{}
	m := NewMachine(rec.notify, guard)

	if _, err := m.Start(); !errors.Is(err, common.ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue from guard, got %v", err)
	}
	if sawFrom != constants.RunIdle {
		t.Errorf("guard saw from=%s, want IDLE", sawFrom)
	}
	if m.State() != constants.RunIdle {
		t.Errorf("vetoed start must not mutate state, got %s", m.State())
	}
	if len(rec.states) != 0 {
		t.Errorf("vetoed start must not notify, got %v", rec.states)
	}
}

func TestNilNotify(t *testing.T) {
	m := NewMachine(nil, nil)
	if _, err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if m.State() != constants.RunRunning {
		t.Fatalf("state %s, want RUNNING", m.State())
	}
}
