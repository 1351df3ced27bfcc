package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mzhirov/quizhall/internal/models"
)

// Repository resolves cookie tokens against the persisted session table
// and the team/operator registrations of a game.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a database-backed authenticator.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Resolve maps a cookie token to the caller's role in a game. Operators
// are the game's owners; teams must be registered for the game.
func (r *Repository) Resolve(ctx context.Context, cookie string, gameID uuid.UUID) (Identity, error) {
	var userID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM user_sessions WHERE token = $1 AND expires_at > now()`,
		cookie,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrUnauthorized
	}
	if err != nil {
		return Identity{}, fmt.Errorf("resolve session token: %w", err)
	}

	// Game owners hold the operator channel.
	var isOwner bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM games WHERE id = $1 AND owner_id = $2)`,
		gameID, userID,
	).Scan(&isOwner)
	if err != nil {
		return Identity{}, fmt.Errorf("check game owner: %w", err)
	}
	if isOwner {
		return Identity{UserID: userID, Role: models.RoleOperator}, nil
	}

	var teamID uuid.UUID
	err = r.pool.QueryRow(ctx,
		`SELECT t.id
		   FROM teams t
		   JOIN game_teams gt ON gt.team_id = t.id
		  WHERE gt.game_id = $1 AND t.captain_id = $2`,
		gameID, userID,
	).Scan(&teamID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrUnauthorized
	}
	if err != nil {
		return Identity{}, fmt.Errorf("resolve team registration: %w", err)
	}

	return Identity{UserID: userID, Role: models.RoleTeam, TeamID: teamID}, nil
}
