package live

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mzhirov/quizhall/internal/models"
)

// Ledger holds every submitted answer, keyed by (game, team, part, round,
// question). Submission is idempotent per key: the latest text wins and any
// prior acceptance decision is cleared back to unchecked. The ledger does
// not validate against the active question pointer; late and early
// submissions are recorded as-is.
type Ledger struct {
	mu      sync.RWMutex
	records map[models.AnswerKey]*models.AnswerRecord
}

// NewLedger creates an empty answer ledger.
func NewLedger() *Ledger {
	return &Ledger{
		records: make(map[models.AnswerKey]*models.AnswerRecord),
	}
}

// Submit creates or overwrites the record for key and returns a copy.
func (l *Ledger) Submit(key models.AnswerKey, text string, at time.Time) models.AnswerRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok {
		rec = &models.AnswerRecord{Key: key}
		l.records[key] = rec
	}
	rec.Text = text
	rec.Status = models.AnswerStatusUnchecked
	rec.SubmittedAt = at
	return *rec
}

// SetStatus marks the record for key accepted or rejected. It returns the
// updated record and false if no answer was ever submitted for key.
func (l *Ledger) SetStatus(key models.AnswerKey, status models.AnswerStatus) (models.AnswerRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok {
		return models.AnswerRecord{}, false
	}
	rec.Status = status
	return *rec, true
}

// FlagAppeal raises the appeal flag on the record for key. The flag is
// independent of the acceptance status. It returns false if no answer was
// ever submitted for key.
func (l *Ledger) FlagAppeal(key models.AnswerKey) (models.AnswerRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok {
		return models.AnswerRecord{}, false
	}
	rec.Appealed = true
	return *rec, true
}

// Get returns a copy of the record for key.
func (l *Ledger) Get(key models.AnswerKey) (models.AnswerRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[key]
	if !ok {
		return models.AnswerRecord{}, false
	}
	return *rec, true
}

// AppealedRecords returns every appealed answer of a game, ordered by part,
// round and question so operator views are stable.
func (l *Ledger) AppealedRecords(gameID uuid.UUID) []models.AnswerRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.AnswerRecord
	for _, rec := range l.records {
		if rec.Key.GameID == gameID && rec.Appealed {
			out = append(out, *rec)
		}
	}
	sortRecords(out)
	return out
}

// AnswersForTeam returns every answer one team submitted in a game, ordered
// by part, round and question.
func (l *Ledger) AnswersForTeam(gameID, teamID uuid.UUID) []models.AnswerRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.AnswerRecord
	for _, rec := range l.records {
		if rec.Key.GameID == gameID && rec.Key.TeamID == teamID {
			out = append(out, *rec)
		}
	}
	sortRecords(out)
	return out
}

// DropGame discards every record of a game. Called only when the game
// itself is deleted; finished games keep their answers as history.
func (l *Ledger) DropGame(gameID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.records {
		if key.GameID == gameID {
			delete(l.records, key)
		}
	}
}

func sortRecords(recs []models.AnswerRecord) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].Key, recs[j].Key
		if a.Part != b.Part {
			return a.Part < b.Part
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		if a.Question != b.Question {
			return a.Question < b.Question
		}
		return a.TeamID.String() < b.TeamID.String()
	})
}
