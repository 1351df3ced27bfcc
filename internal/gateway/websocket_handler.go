package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mzhirov/quizhall/internal/auth"
	"github.com/mzhirov/quizhall/internal/live"
)

// WebSocketHandler upgrades live game connections and bridges their
// inbound frames into the coordinator.
type WebSocketHandler struct {
	registry      *live.Registry
	coordinator   *live.Coordinator
	authenticator auth.Authenticator
}

// NewWebSocketHandler creates a live channel handler.
func NewWebSocketHandler(registry *live.Registry, coordinator *live.Coordinator, authenticator auth.Authenticator) *WebSocketHandler {
	return &WebSocketHandler{
		registry:      registry,
		coordinator:   coordinator,
		authenticator: authenticator,
	}
}

// HandleGameConnection handles WebSocket upgrades for a game. The cookie
// is resolved to an identity before the upgrade; an unresolvable cookie
// never reaches the coordinator.
func (h *WebSocketHandler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	gameIDStr := r.URL.Query().Get("game_id")
	if gameIDStr == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return
	}
	gameID, err := uuid.Parse(gameIDStr)
	if err != nil {
		http.Error(w, "invalid game_id format", http.StatusBadRequest)
		return
	}

	ident, err := h.authenticator.Resolve(r.Context(), cookieToken(r), gameID)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("resolve identity")
		http.Error(w, "authentication unavailable", http.StatusInternalServerError)
		return
	}

	caller := live.Caller{Role: ident.Role, TeamID: ident.TeamID}
	_, err = h.registry.Upgrade(w, r, gameID, ident.Role, ident.TeamID, func(conn *live.Conn, raw []byte) {
		h.dispatch(conn, caller, raw)
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("game_id", gameID.String()).
			Msg("upgrade live channel")
		return
	}
}

// dispatch parses one inbound frame and applies it. Malformed or unknown
// messages are dropped without closing the channel; command rejections are
// reported to the issuing channel only.
func (h *WebSocketHandler) dispatch(conn *live.Conn, caller live.Caller, raw []byte) {
	in, err := live.ParseCommand(raw)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("dropping malformed message")
		return
	}

	// The channel was authenticated for one game; the identity on the
	// connection is authoritative over anything inside the message.
	gameID := conn.GameID
	reply, err := h.coordinator.Handle(context.Background(), caller, gameID, in.Cmd)
	if err != nil {
		log.Info().
			Err(err).
			Str("connection_id", conn.ID).
			Str("action", in.Cmd.Action()).
			Msg("command rejected")
		h.registry.Send(conn, rejectionMessage{
			Action: "error",
			Cause:  in.Cmd.Action(),
			Error:  err.Error(),
		})
		return
	}
	if reply != nil {
		h.registry.Send(conn, reply)
	}
}

// rejectionMessage reports an invalid command back to its issuer.
type rejectionMessage struct {
	Action string `json:"action"`
	Cause  string `json:"cause"`
	Error  string `json:"error"`
}

func cookieToken(r *http.Request) string {
	if c, err := r.Cookie("authorization"); err == nil {
		return c.Value
	}
	// Fallback for clients that pass the token as a query parameter.
	return r.URL.Query().Get("token")
}
