package handlers

import (
	"net/http"

	"github.com/parley-chat/parley/backend/internal/users"
)

// UserHandler exposes the profile directory.
type UserHandler struct {
	directory *users.Directory
}

// NewUserHandler creates a new UserHandler instance.
func NewUserHandler(directory *users.Directory) *UserHandler {
	return &UserHandler{directory: directory}
}

// ListUsers handles GET /api/users
// Returns every other user's profile including live online status.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.directory.Profiles())
}
