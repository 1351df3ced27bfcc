package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mzhirov/quizhall/internal/auth"
	"github.com/mzhirov/quizhall/internal/live"
)

// Service bundles the live channel handler and the operator HTTP surface.
type Service struct {
	wsHandler     *WebSocketHandler
	answerHandler *AnswerHandler
	registry      *live.Registry
}

// NewService creates the gateway service.
func NewService(registry *live.Registry, coordinator *live.Coordinator, authenticator auth.Authenticator, history AnswerHistory) *Service {
	return &Service{
		wsHandler:     NewWebSocketHandler(registry, coordinator, authenticator),
		answerHandler: NewAnswerHandler(coordinator, history),
		registry:      registry,
	}
}

// RegisterRoutes registers every gateway route on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/game", s.wsHandler.HandleGameConnection)
	mux.HandleFunc("POST /api/games/{gameID}/answers/status", s.answerHandler.HandleAnswerStatus)
	mux.HandleFunc("POST /api/games/{gameID}/appeals", s.answerHandler.HandleAppeal)
	mux.HandleFunc("GET /api/games/{gameID}/answers", s.answerHandler.HandleAnswerHistory)
	mux.HandleFunc("/ws/stats", s.handleStats)
	log.Info().Msg("gateway routes registered")
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	total, perGame := s.registry.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total_connections": total,
		"active_games":      len(perGame),
		"game_connections":  perGame,
	})
}
