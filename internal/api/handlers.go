package api

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{
		"transport": s.transport,
	}))
}

// statsHandler returns the conversation counters.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.stats.Snapshot()))
}

// statsResetHandler zeroes the counters.
func (s *Server) statsResetHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.stats.Reset(r.Context()); err != nil {
		slog.Error("Server.statsResetHandler: reset failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to persist reset counters"))
		return
	}
	slog.Info("Server.statsResetHandler: counters reset")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Counters reset", s.stats.Snapshot()))
}

// conversationsHandler lists active conversations, optionally filtered by ?stage=.
func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	states, err := s.states.List(r.Context())
	if err != nil {
		slog.Error("Server.conversationsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list conversations"))
		return
	}

	stage := models.Stage(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("stage"))))
	if stage != models.StageNone && !stage.IsValid() {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown stage: "+string(stage)))
		return
	}
	out := make([]models.ConversationState, 0, len(states))
	for _, c := range states {
		if stage == models.StageNone || c.Stage == stage {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	writeJSONResponse(w, http.StatusOK, models.Success(out))
}

// receiptsHandler returns stored delivery receipts.
func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.receipts == nil {
		writeJSONResponse(w, http.StatusOK, models.Success([]models.Receipt{}))
		return
	}
	receipts, err := s.receipts.GetReceipts()
	if err != nil {
		slog.Error("Server.receiptsHandler: failed to load receipts", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load receipts"))
		return
	}
	if receipts == nil {
		receipts = []models.Receipt{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}

// webhookHandler forwards Twilio callbacks to the Twilio transport.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if s.webhook == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Twilio transport not enabled"))
		return
	}
	s.webhook(w, r)
}
