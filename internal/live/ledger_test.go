package live

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhirov/quizhall/internal/models"
)

func answerKey(gameID, teamID uuid.UUID, round, question int) models.AnswerKey {
	return models.AnswerKey{
		GameID:   gameID,
		TeamID:   teamID,
		Part:     models.GamePartChgk,
		Round:    round,
		Question: question,
	}
}

func TestLedger_SubmitCreatesUnchecked(t *testing.T) {
	l := NewLedger()
	key := answerKey(uuid.New(), uuid.New(), 1, 5)

	rec := l.Submit(key, "42", time.Now())
	assert.Equal(t, "42", rec.Text)
	assert.Equal(t, models.AnswerStatusUnchecked, rec.Status)

	got, ok := l.Get(key)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestLedger_ResubmitOverwritesAndResetsStatus(t *testing.T) {
	l := NewLedger()
	key := answerKey(uuid.New(), uuid.New(), 1, 1)

	l.Submit(key, "first", time.Now())
	_, ok := l.SetStatus(key, models.AnswerStatusAccepted)
	require.True(t, ok)

	rec := l.Submit(key, "second", time.Now())
	assert.Equal(t, "second", rec.Text)
	assert.Equal(t, models.AnswerStatusUnchecked, rec.Status)

	// Still a single record for the key.
	answers := l.AnswersForTeam(key.GameID, key.TeamID)
	require.Len(t, answers, 1)
	assert.Equal(t, "second", answers[0].Text)
}

func TestLedger_SetStatusUnknownKey(t *testing.T) {
	l := NewLedger()
	_, ok := l.SetStatus(answerKey(uuid.New(), uuid.New(), 1, 1), models.AnswerStatusAccepted)
	assert.False(t, ok)
}

func TestLedger_AppealFlagIndependentOfStatus(t *testing.T) {
	l := NewLedger()
	key := answerKey(uuid.New(), uuid.New(), 2, 4)

	l.Submit(key, "spam", time.Now())
	_, ok := l.SetStatus(key, models.AnswerStatusRejected)
	require.True(t, ok)

	rec, ok := l.FlagAppeal(key)
	require.True(t, ok)
	assert.True(t, rec.Appealed)
	assert.Equal(t, models.AnswerStatusRejected, rec.Status)
}

func TestLedger_AppealedRecordsScopedToGame(t *testing.T) {
	l := NewLedger()
	gameA, gameB := uuid.New(), uuid.New()
	team := uuid.New()

	keyA := answerKey(gameA, team, 1, 2)
	keyB := answerKey(gameB, team, 1, 2)
	l.Submit(keyA, "a", time.Now())
	l.Submit(keyB, "b", time.Now())
	l.FlagAppeal(keyA)
	l.FlagAppeal(keyB)

	appeals := l.AppealedRecords(gameA)
	require.Len(t, appeals, 1)
	assert.Equal(t, keyA, appeals[0].Key)
}

func TestLedger_AnswersForTeamSorted(t *testing.T) {
	l := NewLedger()
	gameID, team := uuid.New(), uuid.New()

	l.Submit(answerKey(gameID, team, 2, 1), "late", time.Now())
	l.Submit(answerKey(gameID, team, 1, 3), "mid", time.Now())
	l.Submit(answerKey(gameID, team, 1, 1), "early", time.Now())
	// Another team's answer stays invisible.
	l.Submit(answerKey(gameID, uuid.New(), 1, 1), "other", time.Now())

	answers := l.AnswersForTeam(gameID, team)
	require.Len(t, answers, 3)
	assert.Equal(t, "early", answers[0].Text)
	assert.Equal(t, "mid", answers[1].Text)
	assert.Equal(t, "late", answers[2].Text)
}

func TestLedger_DropGame(t *testing.T) {
	l := NewLedger()
	gameA, gameB := uuid.New(), uuid.New()
	team := uuid.New()

	l.Submit(answerKey(gameA, team, 1, 1), "a", time.Now())
	l.Submit(answerKey(gameB, team, 1, 1), "b", time.Now())

	l.DropGame(gameA)

	assert.Empty(t, l.AnswersForTeam(gameA, team))
	assert.Len(t, l.AnswersForTeam(gameB, team), 1)
}
