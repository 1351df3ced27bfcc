package models

import (
	"time"

	"github.com/google/uuid"
)

// GamePart defines one of the quiz formats a game can run.
type GamePart string

const (
	GamePartNone   GamePart = ""
	GamePartChgk   GamePart = "chgk"
	GamePartMatrix GamePart = "matrix"
	GamePartQuiz   GamePart = "quiz"
)

// Valid reports whether p names a playable game part.
func (p GamePart) Valid() bool {
	switch p {
	case GamePartChgk, GamePartMatrix, GamePartQuiz:
		return true
	}
	return false
}

// GameStatus defines the lifecycle status of a game.
type GameStatus string

const (
	GameStatusScheduled  GameStatus = "SCHEDULED"
	GameStatusInProgress GameStatus = "IN_PROGRESS"
	GameStatusFinished   GameStatus = "FINISHED"
)

// QuestionRef points at a single question within a game part.
// A zero Part means no question is active.
type QuestionRef struct {
	Part     GamePart `json:"activeGamePart"`
	Round    int      `json:"roundNumber"`
	Question int      `json:"questionNumber"`
}

// IsZero reports whether the ref points at nothing.
func (q QuestionRef) IsZero() bool {
	return q.Part == GamePartNone
}

// PartConfig holds the round/question shape of one game part.
type PartConfig struct {
	Rounds            int `json:"rounds"`
	QuestionsPerRound int `json:"questions_per_round"`
	QuestionSeconds   int `json:"question_seconds"`
}

// GameConfig is the persisted configuration of a game, loaded once
// when a live session is created.
type GameConfig struct {
	ID        uuid.UUID               `json:"id"`
	Title     string                  `json:"title"`
	Status    GameStatus              `json:"status"`
	Parts     map[GamePart]PartConfig `json:"parts"`
	CreatedAt time.Time               `json:"created_at"`
}

// Contains reports whether ref points inside the configured shape of the game.
func (c GameConfig) Contains(ref QuestionRef) bool {
	pc, ok := c.Parts[ref.Part]
	if !ok {
		return false
	}
	return ref.Round >= 1 && ref.Round <= pc.Rounds &&
		ref.Question >= 1 && ref.Question <= pc.QuestionsPerRound
}
