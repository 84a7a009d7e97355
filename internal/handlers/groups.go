package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/parley-chat/parley/backend/internal/groups"
	"github.com/parley-chat/parley/backend/internal/models"
)

// GroupHandler exposes group creation and membership.
type GroupHandler struct {
	service *groups.Service
}

// NewGroupHandler creates a new GroupHandler instance.
func NewGroupHandler(service *groups.Service) *GroupHandler {
	return &GroupHandler{service: service}
}

// ListGroups handles GET /api/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Groups())
}

// CreateGroup handles POST /api/groups
// Creates a group with the actor and the requested members; each added
// member gets an inbox notification.
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req models.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	group, err := h.service.CreateGroup(req.Name, req.MemberIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// ListMembers handles GET /api/groups/{id}/members
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	if groupID == "" {
		http.Error(w, "group ID is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Members(groupID))
}

// AddMember handles POST /api/groups/{id}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	if groupID == "" {
		http.Error(w, "group ID is required", http.StatusBadRequest)
		return
	}

	var req models.AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if err := h.service.AddMember(groupID, req.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
