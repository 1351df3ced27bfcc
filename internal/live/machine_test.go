package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhirov/quizhall/internal/models"
)

func chgkQuestion(round, question int) models.QuestionRef {
	return models.QuestionRef{Part: models.GamePartChgk, Round: round, Question: question}
}

func TestMachine_StartRequiresActiveQuestion(t *testing.T) {
	m := NewMachine()

	err := m.Start()
	assert.ErrorIs(t, err, ErrNoActiveQuestion)
	assert.Equal(t, PhaseIdle, m.Phase())
}

func TestMachine_StartPauseResume(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.SetActiveQuestion(chgkQuestion(1, 1)))

	require.NoError(t, m.Start())
	assert.Equal(t, PhaseRunning, m.Phase())

	assert.ErrorIs(t, m.Start(), ErrAlreadyRunning)

	require.NoError(t, m.Pause())
	assert.Equal(t, PhasePaused, m.Phase())

	assert.ErrorIs(t, m.Pause(), ErrNotRunning)

	require.NoError(t, m.Start())
	assert.Equal(t, PhaseRunning, m.Phase())
}

func TestMachine_StopKeepsActivePointer(t *testing.T) {
	m := NewMachine()
	ref := chgkQuestion(2, 3)
	require.NoError(t, m.SetActiveQuestion(ref))
	require.NoError(t, m.Start())

	require.NoError(t, m.Stop())
	assert.Equal(t, PhaseIdle, m.Phase())
	assert.Equal(t, ref, m.Active())
}

func TestMachine_SetActiveQuestionLandsIdle(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.SetActiveQuestion(chgkQuestion(1, 1)))
	require.NoError(t, m.Start())

	next := chgkQuestion(1, 2)
	require.NoError(t, m.SetActiveQuestion(next))
	assert.Equal(t, PhaseIdle, m.Phase())
	assert.Equal(t, next, m.Active())
}

func TestMachine_BreakRejectedWhileRunning(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.SetActiveQuestion(chgkQuestion(1, 1)))
	require.NoError(t, m.Start())

	assert.ErrorIs(t, m.StartBreak(), ErrBreakWhileRunning)
	assert.False(t, m.OnBreak())
}

func TestMachine_BreakFromIdleAndPaused(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.StartBreak())
	assert.True(t, m.OnBreak())
	require.NoError(t, m.StopBreak())
	assert.Equal(t, PhaseIdle, m.Phase())

	require.NoError(t, m.SetActiveQuestion(chgkQuestion(1, 1)))
	require.NoError(t, m.Start())
	require.NoError(t, m.Pause())

	require.NoError(t, m.StartBreak())
	assert.True(t, m.OnBreak())

	// Leaving the break restores the paused phase.
	require.NoError(t, m.StopBreak())
	assert.Equal(t, PhasePaused, m.Phase())
}

func TestMachine_CommandsRejectedOnBreak(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.SetActiveQuestion(chgkQuestion(1, 1)))
	require.NoError(t, m.StartBreak())

	assert.ErrorIs(t, m.Start(), ErrOnBreak)
	assert.ErrorIs(t, m.Pause(), ErrOnBreak)
	assert.ErrorIs(t, m.Stop(), ErrOnBreak)
	assert.ErrorIs(t, m.CanAddTime(), ErrOnBreak)
	assert.ErrorIs(t, m.SetActiveQuestion(chgkQuestion(1, 2)), ErrOnBreak)
	assert.ErrorIs(t, m.StartBreak(), ErrOnBreak)
}

func TestMachine_StopBreakRequiresBreak(t *testing.T) {
	m := NewMachine()
	assert.ErrorIs(t, m.StopBreak(), ErrNotOnBreak)
}

func TestMachine_ExpireOnlyFromRunning(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.SetActiveQuestion(chgkQuestion(1, 5)))

	assert.False(t, m.Expire())

	require.NoError(t, m.Start())
	assert.True(t, m.Expire())
	assert.Equal(t, PhaseIdle, m.Phase())
	assert.Equal(t, chgkQuestion(1, 5), m.Active())

	// A second fire finds nothing to expire.
	assert.False(t, m.Expire())
}

func TestMachine_AddTimeOnlyWhileRunning(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.SetActiveQuestion(chgkQuestion(1, 1)))

	assert.ErrorIs(t, m.CanAddTime(), ErrNotRunning)
	require.NoError(t, m.Start())
	assert.NoError(t, m.CanAddTime())
	require.NoError(t, m.Pause())
	assert.ErrorIs(t, m.CanAddTime(), ErrNotRunning)
}
