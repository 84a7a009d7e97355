package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/parley-chat/parley/backend/internal/models"
)

// previewLimit is the rune budget of a conversation list preview before
// it is cut with an ellipsis.
const previewLimit = 30

// LastMessageIndex tracks the most recent message per conversation across
// the whole feed, independent of which conversation is currently open.
// It only ever moves forward: an insert event older than what it already
// holds for a key is ignored, so out-of-order delivery can never regress
// a conversation's preview.
type LastMessageIndex struct {
	actorID string

	mu   sync.RWMutex
	last map[models.ConversationKey]models.Message
}

// NewLastMessageIndex creates an empty index for the given actor.
func NewLastMessageIndex(actorID string) *LastMessageIndex {
	return &LastMessageIndex{
		actorID: actorID,
		last:    make(map[models.ConversationKey]models.Message),
	}
}

// Seed feeds a snapshot of messages through the index, in any order.
func (x *LastMessageIndex) Seed(messages []models.Message) {
	for _, msg := range messages {
		x.Observe(msg)
	}
}

// Observe folds one insert event into the index. Direct messages not
// involving the actor are ignored; everything else updates its
// conversation's entry when strictly newer by (created_at, id).
func (x *LastMessageIndex) Observe(msg models.Message) {
	if msg.GroupID == "" && msg.SenderID != x.actorID && msg.ReceiverID != x.actorID {
		return
	}
	key := models.KeyForMessage(msg, x.actorID)

	x.mu.Lock()
	defer x.mu.Unlock()

	current, ok := x.last[key]
	if !ok || current.Before(msg) {
		x.last[key] = msg
	}
}

// Last returns the most recent message observed for a conversation.
func (x *LastMessageIndex) Last(key models.ConversationKey) (models.Message, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	msg, ok := x.last[key]
	return msg, ok
}

// PreviewText derives the conversation list preview for a message: the
// body when there is one, otherwise a label for the attachment kind, cut
// to the preview budget.
func PreviewText(msg models.Message) string {
	text := msg.Body
	if text == "" && msg.HasAttachment() {
		switch msg.FileType {
		case models.AttachmentGif:
			text = "GIF"
		case models.AttachmentImage:
			text = "Photo"
		default:
			text = "File"
		}
	}

	runes := []rune(text)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit]) + "..."
	}
	return text
}

// ConversationSummary is one row of the conversation list: the key, a
// display name, and the latest message with its preview when one exists.
type ConversationSummary struct {
	Key         models.ConversationKey `json:"key"`
	Name        string                 `json:"name"`
	LastMessage *models.Message        `json:"last_message,omitempty"`
	Preview     string                 `json:"preview,omitempty"`
	// CreatedAt is the conversation's own creation time, the ordering
	// fallback for conversations that have no messages yet
	CreatedAt time.Time `json:"created_at"`
}

// Summarize fills in the last message and preview of a summary row.
func (x *LastMessageIndex) Summarize(s ConversationSummary) ConversationSummary {
	if msg, ok := x.Last(s.Key); ok {
		s.LastMessage = &msg
		s.Preview = PreviewText(msg)
	}
	return s
}

// SortSummaries orders the conversation list: conversations with a last
// message first, newest first; the rest after them, newest conversation
// first.
func SortSummaries(summaries []ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		switch {
		case a.LastMessage != nil && b.LastMessage != nil:
			return b.LastMessage.Before(*a.LastMessage)
		case a.LastMessage != nil:
			return true
		case b.LastMessage != nil:
			return false
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
}
