package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mzhirov/quizhall/internal/models"
)

// ErrGameNotFound is returned when no game row exists for an id.
var ErrGameNotFound = errors.New("game not found")

// Repository is the persistence collaborator for live sessions: game
// configuration reads plus write-through of answers, acceptance decisions
// and appeals. The in-memory ledger stays authoritative during a session;
// these writes make the records survive it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a game repository on a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GameConfig loads the shape of a game: its parts with round and question
// counts and per-part question durations.
func (r *Repository) GameConfig(ctx context.Context, gameID uuid.UUID) (models.GameConfig, error) {
	var cfg models.GameConfig
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, status, created_at FROM games WHERE id = $1`,
		gameID,
	).Scan(&cfg.ID, &cfg.Title, &cfg.Status, &cfg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.GameConfig{}, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return models.GameConfig{}, fmt.Errorf("load game: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT part, rounds, questions_per_round, question_seconds
		   FROM game_parts
		  WHERE game_id = $1`,
		gameID,
	)
	if err != nil {
		return models.GameConfig{}, fmt.Errorf("load game parts: %w", err)
	}
	defer rows.Close()

	cfg.Parts = make(map[models.GamePart]models.PartConfig)
	for rows.Next() {
		var part models.GamePart
		var pc models.PartConfig
		if err := rows.Scan(&part, &pc.Rounds, &pc.QuestionsPerRound, &pc.QuestionSeconds); err != nil {
			return models.GameConfig{}, fmt.Errorf("scan game part: %w", err)
		}
		cfg.Parts[part] = pc
	}
	if err := rows.Err(); err != nil {
		return models.GameConfig{}, fmt.Errorf("iterate game parts: %w", err)
	}

	return cfg, nil
}

// QuestionText returns the stored text of one question, or empty when the
// game runs without pre-loaded question texts.
func (r *Repository) QuestionText(ctx context.Context, gameID uuid.UUID, ref models.QuestionRef) (string, error) {
	var text string
	err := r.pool.QueryRow(ctx,
		`SELECT text
		   FROM questions
		  WHERE game_id = $1 AND part = $2 AND round = $3 AND number = $4`,
		gameID, ref.Part, ref.Round, ref.Question,
	).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load question text: %w", err)
	}
	return text, nil
}

// SaveAnswer upserts one answer record; resubmission overwrites the text
// and resets the status, matching the ledger semantics.
func (r *Repository) SaveAnswer(ctx context.Context, rec models.AnswerRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answers (game_id, team_id, part, round, question, text, status, appealed, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (game_id, team_id, part, round, question)
		 DO UPDATE SET text = EXCLUDED.text, status = EXCLUDED.status, submitted_at = EXCLUDED.submitted_at`,
		rec.Key.GameID, rec.Key.TeamID, rec.Key.Part, rec.Key.Round, rec.Key.Question,
		rec.Text, rec.Status, rec.Appealed, rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// SaveAnswerStatus persists the operator's accept/reject decision.
func (r *Repository) SaveAnswerStatus(ctx context.Context, key models.AnswerKey, status models.AnswerStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE answers SET status = $6
		  WHERE game_id = $1 AND team_id = $2 AND part = $3 AND round = $4 AND question = $5`,
		key.GameID, key.TeamID, key.Part, key.Round, key.Question, status,
	)
	if err != nil {
		return fmt.Errorf("save answer status: %w", err)
	}
	return nil
}

// SaveAppeal persists a raised appeal flag.
func (r *Repository) SaveAppeal(ctx context.Context, key models.AnswerKey) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE answers SET appealed = TRUE
		  WHERE game_id = $1 AND team_id = $2 AND part = $3 AND round = $4 AND question = $5`,
		key.GameID, key.TeamID, key.Part, key.Round, key.Question,
	)
	if err != nil {
		return fmt.Errorf("save appeal: %w", err)
	}
	return nil
}

// Answers loads every persisted answer of a game, used to rebuild history
// views after a session was reaped.
func (r *Repository) Answers(ctx context.Context, gameID uuid.UUID) ([]models.AnswerRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT game_id, team_id, part, round, question, text, status, appealed, submitted_at
		   FROM answers
		  WHERE game_id = $1
		  ORDER BY part, round, question, team_id`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	defer rows.Close()

	var out []models.AnswerRecord
	for rows.Next() {
		var rec models.AnswerRecord
		if err := rows.Scan(
			&rec.Key.GameID, &rec.Key.TeamID, &rec.Key.Part, &rec.Key.Round, &rec.Key.Question,
			&rec.Text, &rec.Status, &rec.Appealed, &rec.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return out, nil
}
