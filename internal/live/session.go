package live

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mzhirov/quizhall/internal/models"
)

// session is the authoritative per-game state: the state machine, the
// question clock and the break clock, all owned by exactly one Coordinator.
// Every mutation and every snapshot read goes through mu, so commands for
// one game apply strictly one at a time while different games never block
// each other.
type session struct {
	mu  sync.Mutex
	cfg models.GameConfig

	machine    *Machine
	clock      *Countdown
	breakClock *Countdown

	// gen invalidates timer callbacks armed for an earlier question or
	// break; a stale fire compares its snapshot against it and is
	// silently discarded.
	gen uint64

	expiryTimer clockwork.Timer
	breakTimer  clockwork.Timer

	lastActivity time.Time
}

func newSession(cfg models.GameConfig, clk clockwork.Clock, defaultTotal time.Duration, now time.Time) *session {
	return &session{
		cfg:          cfg,
		machine:      NewMachine(),
		clock:        NewCountdown(clk, defaultTotal),
		breakClock:   NewCountdown(clk, 0),
		lastActivity: now,
	}
}

// snapshot is a consistent read of the public session state, taken at a
// single instant under the session lock. It is what resync queries and
// post-command broadcasts are built from.
type snapshot struct {
	Active         models.QuestionRef
	Phase          Phase
	OnBreak        bool
	Remaining      time.Duration
	RemainingCeil  int
	RemainingRound int
	TotalSeconds   int
	BreakCeil      int
}

// locked callers only.
func (s *session) snapshotLocked() snapshot {
	snap := snapshot{
		Active:         s.machine.Active(),
		Phase:          s.machine.Phase(),
		OnBreak:        s.machine.OnBreak(),
		Remaining:      s.clock.Remaining(),
		RemainingCeil:  s.clock.RemainingSeconds(),
		RemainingRound: s.clock.RemainingValue(),
		TotalSeconds:   int(s.clock.Total() / time.Second),
	}
	if snap.OnBreak {
		snap.BreakCeil = s.breakClock.RemainingSeconds()
	}
	return snap
}

// cancelExpiryLocked stops any pending expiry callback for the current
// question so a stale fire cannot outlive a question switch or stop.
func (s *session) cancelExpiryLocked() {
	s.gen++
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}
}

func (s *session) cancelBreakTimerLocked() {
	s.gen++
	if s.breakTimer != nil {
		s.breakTimer.Stop()
		s.breakTimer = nil
	}
}
