package live

import (
	"errors"

	"github.com/mzhirov/quizhall/internal/models"
)

// Phase is the run state of the active question.
type Phase string

const (
	PhaseIdle    Phase = "stopped"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
)

// Transition errors. A command incompatible with the current state is
// rejected with one of these and reported to the issuing channel only;
// it never mutates shared state and never broadcasts.
var (
	ErrNoActiveQuestion   = errors.New("no active question selected")
	ErrAlreadyRunning     = errors.New("question clock already running")
	ErrNotRunning         = errors.New("question clock is not running")
	ErrOnBreak            = errors.New("session is on break")
	ErrNotOnBreak         = errors.New("session is not on break")
	ErrBreakWhileRunning  = errors.New("cannot start break while a question clock is running")
	ErrUnknownGamePart    = errors.New("unknown game part")
	ErrQuestionOutOfRange = errors.New("question is outside the configured game shape")
)

// Machine is the per-session state machine: the active question pointer,
// the run phase of its clock, and the orthogonal break state. Break is a
// session-wide state with its own countdown, distinct from a paused clock;
// entering it freezes the question clock so it can resume unchanged.
//
// Machine is not goroutine safe; the owning session serializes access.
type Machine struct {
	phase    Phase
	onBreak  bool
	preBreak Phase // phase to return to when the break ends
	active   models.QuestionRef
}

// NewMachine creates a machine with no active question.
func NewMachine() *Machine {
	return &Machine{phase: PhaseIdle}
}

// Phase returns the current run phase.
func (m *Machine) Phase() Phase { return m.phase }

// OnBreak reports whether the session is on break.
func (m *Machine) OnBreak() bool { return m.onBreak }

// Active returns the active question pointer. The pointer survives Stop;
// only SetActiveQuestion moves it.
func (m *Machine) Active() models.QuestionRef { return m.active }

// SetActiveQuestion moves the pointer to a new question and lands in Idle.
// The clock is reset by the caller; Start must be issued explicitly.
func (m *Machine) SetActiveQuestion(ref models.QuestionRef) error {
	if m.onBreak {
		return ErrOnBreak
	}
	m.active = ref
	m.phase = PhaseIdle
	return nil
}

// Start transitions Idle→Running or Paused→Running.
func (m *Machine) Start() error {
	if m.onBreak {
		return ErrOnBreak
	}
	if m.active.IsZero() {
		return ErrNoActiveQuestion
	}
	if m.phase == PhaseRunning {
		return ErrAlreadyRunning
	}
	m.phase = PhaseRunning
	return nil
}

// Pause transitions Running→Paused.
func (m *Machine) Pause() error {
	if m.onBreak {
		return ErrOnBreak
	}
	if m.phase != PhaseRunning {
		return ErrNotRunning
	}
	m.phase = PhasePaused
	return nil
}

// Stop lands in Idle from any phase. The active pointer is kept so the
// highlighted question survives a stop.
func (m *Machine) Stop() error {
	if m.onBreak {
		return ErrOnBreak
	}
	m.phase = PhaseIdle
	return nil
}

// CanAddTime reports whether extending the clock is valid right now.
func (m *Machine) CanAddTime() error {
	if m.onBreak {
		return ErrOnBreak
	}
	if m.phase != PhaseRunning {
		return ErrNotRunning
	}
	return nil
}

// StartBreak enters the break state. Rejected while a question clock is
// running: the operator must stop or pause it first.
func (m *Machine) StartBreak() error {
	if m.onBreak {
		return ErrOnBreak
	}
	if m.phase == PhaseRunning {
		return ErrBreakWhileRunning
	}
	m.preBreak = m.phase
	m.onBreak = true
	return nil
}

// StopBreak leaves the break state and restores the pre-break phase.
func (m *Machine) StopBreak() error {
	if !m.onBreak {
		return ErrNotOnBreak
	}
	m.onBreak = false
	m.phase = m.preBreak
	return nil
}

// Expire records a question clock reaching zero: Running→Idle. The pointer
// stays put; the operator picks the next question explicitly.
func (m *Machine) Expire() bool {
	if m.phase != PhaseRunning || m.onBreak {
		return false
	}
	m.phase = PhaseIdle
	return true
}
