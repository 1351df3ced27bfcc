package live

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestCountdown_RemainingDecreasesWhileRunning(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cd := NewCountdown(clk, 70*time.Second)

	assert.Equal(t, 70*time.Second, cd.Remaining())
	cd.Start()

	prev := cd.Remaining()
	for i := 0; i < 7; i++ {
		clk.Advance(10 * time.Second)
		rem := cd.Remaining()
		assert.LessOrEqual(t, rem, prev)
		prev = rem
	}
	assert.Equal(t, time.Duration(0), cd.Remaining())
}

func TestCountdown_FloorsAtZero(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cd := NewCountdown(clk, 20*time.Second)

	cd.Start()
	clk.Advance(45 * time.Second)
	assert.Equal(t, time.Duration(0), cd.Remaining())
	assert.Equal(t, 0, cd.RemainingSeconds())
	assert.Equal(t, 0, cd.RemainingValue())
}

func TestCountdown_PauseFreezesRemaining(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cd := NewCountdown(clk, 70*time.Second)

	cd.Start()
	clk.Advance(30 * time.Second)
	cd.Pause()

	frozen := cd.Remaining()
	assert.Equal(t, 40*time.Second, frozen)

	clk.Advance(15 * time.Second)
	assert.Equal(t, frozen, cd.Remaining())

	// Resuming picks up where the pause left off.
	cd.Start()
	clk.Advance(10 * time.Second)
	assert.Equal(t, 30*time.Second, cd.Remaining())
}

func TestCountdown_StopResetsToDefault(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cd := NewCountdown(clk, 70*time.Second)

	cd.Start()
	clk.Advance(42 * time.Second)
	cd.Stop()

	assert.False(t, cd.Running())
	assert.Equal(t, 70*time.Second, cd.Remaining())

	// Stop then start resumes the full default duration.
	cd.Start()
	assert.Equal(t, 70*time.Second, cd.Remaining())
}

func TestCountdown_AddIsAdditiveToRemaining(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cd := NewCountdown(clk, 70*time.Second)

	cd.Start()
	clk.Advance(60 * time.Second)
	cd.Add(10 * time.Second)

	assert.Equal(t, 20*time.Second, cd.Remaining())
	assert.Equal(t, 80*time.Second, cd.Total())
}

func TestCountdown_AddWhilePaused(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cd := NewCountdown(clk, 20*time.Second)

	cd.Start()
	clk.Advance(5 * time.Second)
	cd.Pause()
	cd.Add(10 * time.Second)

	assert.Equal(t, 25*time.Second, cd.Remaining())
}

func TestCountdown_ResetInstallsNewDefault(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cd := NewCountdown(clk, 70*time.Second)

	cd.Start()
	clk.Advance(10 * time.Second)
	cd.Reset(20 * time.Second)

	assert.False(t, cd.Running())
	assert.Equal(t, 20*time.Second, cd.Remaining())

	cd.Start()
	clk.Advance(30 * time.Second)
	cd.Stop()
	assert.Equal(t, 20*time.Second, cd.Remaining())
}

func TestCountdown_Rounding(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cd := NewCountdown(clk, 10*time.Second)

	cd.Start()
	clk.Advance(8600 * time.Millisecond)

	// 1.4s left: the display text rounds up, the raw value to nearest.
	assert.Equal(t, 2, cd.RemainingSeconds())
	assert.Equal(t, 1, cd.RemainingValue())

	clk.Advance(800 * time.Millisecond)
	// 600ms left.
	assert.Equal(t, 1, cd.RemainingSeconds())
	assert.Equal(t, 1, cd.RemainingValue())
}
