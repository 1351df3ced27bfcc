package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one session event mirrored out of the live path so downstream
// consumers (results archive, spectator feeds) can follow a game without
// holding a live channel into it.
type Event struct {
	ID        uuid.UUID       `json:"eventId"`
	GameID    uuid.UUID       `json:"gameId"`
	Type      string          `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Session event types.
const (
	TypeQuestionStarted     = "QuestionStarted"
	TypeQuestionPaused      = "QuestionPaused"
	TypeQuestionStopped     = "QuestionStopped"
	TypeQuestionChanged     = "QuestionChanged"
	TypeTimeAdded           = "TimeAdded"
	TypeTimeExpired         = "TimeExpired"
	TypeBreakStarted        = "BreakStarted"
	TypeBreakStopped        = "BreakStopped"
	TypeAnswerSubmitted     = "AnswerSubmitted"
	TypeAnswerStatusChanged = "AnswerStatusChanged"
	TypeAppealFlagged       = "AppealFlagged"
	TypeSessionClosed       = "SessionClosed"
)

// New builds an event with a fresh id, marshaling payload as the body.
func New(gameID uuid.UUID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event payload: %w", err)
	}
	return Event{
		ID:        uuid.New(),
		GameID:    gameID,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   body,
	}, nil
}

// Publisher mirrors session events to an external stream. Publish failures
// must never affect the live session; callers log and move on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards events. Used in tests and when no stream is
// configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }
