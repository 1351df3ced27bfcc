package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mzhirov/quizhall/internal/live"
	"github.com/mzhirov/quizhall/internal/models"
)

// AnswerHistory reads persisted answers of a game, including games whose
// live session is long gone.
type AnswerHistory interface {
	Answers(ctx context.Context, gameID uuid.UUID) ([]models.AnswerRecord, error)
}

// AnswerHandler is the small operator HTTP surface: accept/reject
// decisions and appeal flags arrive over plain requests rather than the
// live channel, but flow through the same coordinator so the affected
// team is notified on its channel.
type AnswerHandler struct {
	coordinator *live.Coordinator
	history     AnswerHistory
}

// NewAnswerHandler creates the operator answer-review handler.
func NewAnswerHandler(coordinator *live.Coordinator, history AnswerHistory) *AnswerHandler {
	return &AnswerHandler{coordinator: coordinator, history: history}
}

// answerRequest identifies one answer record plus the decision.
type answerRequest struct {
	TeamID         uuid.UUID       `json:"teamId"`
	ActiveGamePart models.GamePart `json:"activeGamePart"`
	RoundNumber    int             `json:"roundNumber"`
	QuestionNumber int             `json:"questionNumber"`
	Accepted       bool            `json:"accepted"`
}

// HandleAnswerStatus records an accept/reject decision.
func (h *AnswerHandler) HandleAnswerStatus(w http.ResponseWriter, r *http.Request) {
	key, req, ok := h.parseKey(w, r)
	if !ok {
		return
	}

	if err := h.coordinator.SetAnswerStatus(r.Context(), key, req.Accepted); err != nil {
		log.Info().Err(err).Str("game_id", key.GameID.String()).Msg("answer status rejected")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAppeal raises a team's appeal flag.
func (h *AnswerHandler) HandleAppeal(w http.ResponseWriter, r *http.Request) {
	key, _, ok := h.parseKey(w, r)
	if !ok {
		return
	}

	if err := h.coordinator.FlagAppeal(r.Context(), key); err != nil {
		log.Info().Err(err).Str("game_id", key.GameID.String()).Msg("appeal rejected")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAnswerHistory serves the persisted answers of a game for the
// operator's review screen.
func (h *AnswerHandler) HandleAnswerHistory(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(r.PathValue("gameID"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	recs, err := h.history.Answers(r.Context(), gameID)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("load answer history")
		http.Error(w, "answer history unavailable", http.StatusInternalServerError)
		return
	}

	entries := make([]answerHistoryEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, answerHistoryEntry{
			TeamID:         rec.Key.TeamID,
			ActiveGamePart: rec.Key.Part,
			RoundNumber:    rec.Key.Round,
			QuestionNumber: rec.Key.Question,
			Answer:         rec.Text,
			Status:         rec.Status,
			Appealed:       rec.Appealed,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"answers": entries})
}

// answerHistoryEntry is one persisted answer in the history view.
type answerHistoryEntry struct {
	TeamID         uuid.UUID           `json:"teamId"`
	ActiveGamePart models.GamePart     `json:"activeGamePart"`
	RoundNumber    int                 `json:"roundNumber"`
	QuestionNumber int                 `json:"questionNumber"`
	Answer         string              `json:"answer"`
	Status         models.AnswerStatus `json:"status"`
	Appealed       bool                `json:"appealed"`
}

func (h *AnswerHandler) parseKey(w http.ResponseWriter, r *http.Request) (models.AnswerKey, answerRequest, bool) {
	gameID, err := uuid.Parse(r.PathValue("gameID"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return models.AnswerKey{}, answerRequest{}, false
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return models.AnswerKey{}, answerRequest{}, false
	}

	return models.AnswerKey{
		GameID:   gameID,
		TeamID:   req.TeamID,
		Part:     req.ActiveGamePart,
		Round:    req.RoundNumber,
		Question: req.QuestionNumber,
	}, req, true
}
