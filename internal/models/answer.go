package models

import (
	"time"

	"github.com/google/uuid"
)

// AnswerStatus defines the acceptance state of a submitted answer.
type AnswerStatus string

const (
	AnswerStatusUnchecked AnswerStatus = "unchecked"
	AnswerStatusAccepted  AnswerStatus = "accepted"
	AnswerStatusRejected  AnswerStatus = "rejected"
)

// AnswerKey identifies one team's answer to one question of a game.
type AnswerKey struct {
	GameID   uuid.UUID `json:"game_id"`
	TeamID   uuid.UUID `json:"team_id"`
	Part     GamePart  `json:"activeGamePart"`
	Round    int       `json:"roundNumber"`
	Question int       `json:"questionNumber"`
}

// AnswerRecord is a single submitted answer. Resubmission overwrites the
// text and resets the status; it never creates a duplicate record.
type AnswerRecord struct {
	Key         AnswerKey    `json:"key"`
	Text        string       `json:"answer"`
	Status      AnswerStatus `json:"status"`
	Appealed    bool         `json:"appealed"`
	SubmittedAt time.Time    `json:"submitted_at"`
}
