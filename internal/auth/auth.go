package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mzhirov/quizhall/internal/models"
)

// Identity is the validated caller behind a live channel. It is resolved
// from the session cookie before any command reaches the coordinator; the
// coordinator never sees a command for a game or role the caller is not
// entitled to.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
	// TeamID is set only when Role is team.
	TeamID uuid.UUID
}

// ErrUnauthorized rejects a cookie that does not resolve to a participant
// of the requested game.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator resolves a cookie token into a game-scoped identity.
type Authenticator interface {
	Resolve(ctx context.Context, cookie string, gameID uuid.UUID) (Identity, error)
}

// StaticAuthenticator resolves tokens from a fixed map. Used in tests and
// local development.
type StaticAuthenticator struct {
	Tokens map[string]Identity
}

func (a *StaticAuthenticator) Resolve(ctx context.Context, cookie string, gameID uuid.UUID) (Identity, error) {
	ident, ok := a.Tokens[cookie]
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	return ident, nil
}
