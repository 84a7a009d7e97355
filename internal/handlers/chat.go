package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/parley-chat/parley/backend/internal/chat"
	"github.com/parley-chat/parley/backend/internal/models"
)

// Uploader resolves raw bytes into a stored attachment. Implemented by the
// supabase storage client.
type Uploader interface {
	Upload(userID, filename, contentType string, data []byte) (*models.Attachment, error)
}

// ChatHandler exposes the session's read projections and write intents to
// the UI layer as JSON endpoints.
type ChatHandler struct {
	session  *chat.Session
	uploader Uploader
}

// NewChatHandler creates a new ChatHandler instance.
func NewChatHandler(session *chat.Session, uploader Uploader) *ChatHandler {
	return &ChatHandler{session: session, uploader: uploader}
}

// ListConversations handles GET /api/conversations
// Returns the ordered conversation list with last-message previews.
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Conversations())
}

// conversationKey parses the {key} URL segment ("direct:<id>" or
// "group:<id>").
func conversationKey(r *http.Request) (models.ConversationKey, error) {
	return models.ParseConversationKey(chi.URLParam(r, "key"))
}

// GetTimeline handles GET /api/conversations/{key}/messages
// Opens the conversation when it is not the active one, then returns its
// ordered timeline. Opening a direct conversation fires the seen side
// effect for received messages.
func (h *ChatHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	key, err := conversationKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if active, ok := h.session.ActiveKey(); !ok || active != key {
		if err := h.session.Open(key); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, models.TimelineResponse{Messages: h.session.Timeline()})
}

// SendMessage handles POST /api/conversations/{key}/messages
// Sends a message in the conversation. The message shows up in the
// timeline once its insert event arrives on the feed.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	key, err := conversationKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if active, ok := h.session.ActiveKey(); !ok || active != key {
		if err := h.session.Open(key); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.session.Send(req.Body, req.Attachment); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// EditMessage handles PUT /api/messages/{id}
// Edits one of the actor's own messages in the open conversation.
func (h *ChatHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.session.Edit(id, req.Body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// DeleteMessage handles DELETE /api/messages/{id}
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.session.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GetTyping handles GET /api/conversations/{key}/typing
// Returns who is typing in the open conversation.
func (h *ChatHandler) GetTyping(w http.ResponseWriter, r *http.Request) {
	users := h.session.TypingUsers()
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"typing": len(users) > 0,
		"users":  users,
	})
}

// SetTyping handles POST /api/conversations/{key}/typing
// Publishes the actor's typing state on the conversation's presence
// channel.
func (h *ChatHandler) SetTyping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Typing bool `json:"typing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.session.SetTyping(req.Typing); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// UploadAttachment handles POST /api/uploads
// Stores the request body as an attachment and returns its public URL,
// kind and name for inclusion in a subsequent send. Query param: filename.
func (h *ChatHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		http.Error(w, "filename is required", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10*1024*1024+1))
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	attachment, err := h.uploader.Upload(
		h.session.ActorID(), filename, r.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}
