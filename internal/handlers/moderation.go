package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/parley-chat/parley/backend/internal/models"
	"github.com/parley-chat/parley/backend/internal/moderation"
)

// ModerationHandler exposes report submission and the derived moderation
// status of users.
type ModerationHandler struct {
	aggregator *moderation.Aggregator
}

// NewModerationHandler creates a new ModerationHandler instance.
func NewModerationHandler(aggregator *moderation.Aggregator) *ModerationHandler {
	return &ModerationHandler{aggregator: aggregator}
}

// SubmitReport handles POST /api/reports
// Files a report against a user. Self-reports are rejected before any
// remote call.
func (h *ModerationHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ReportedUserID == "" {
		http.Error(w, "reported_user_id is required", http.StatusBadRequest)
		return
	}

	if err := h.aggregator.SubmitReport(req.ReportedUserID, req.Reason); err != nil {
		writeError(w, err)
		return
	}

	log.Printf("[Moderation] Report submitted against %s", req.ReportedUserID)
	w.WriteHeader(http.StatusAccepted)
}

// GetStatus handles GET /api/users/{id}/moderation
// Returns the live report count, block state and whether the actor has
// already reported this user.
func (h *ModerationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		http.Error(w, "user ID is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.aggregator.Status(userID))
}
