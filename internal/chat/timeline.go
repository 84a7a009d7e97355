package chat

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/parley-chat/parley/backend/internal/models"
)

// MessageStore is the slice of the persistence collaborator the timeline
// needs: snapshot fetches, message writes and seen flips.
type MessageStore interface {
	ListDirectMessages(userID, otherUserID string) ([]models.Message, error)
	ListGroupMessages(groupID string) ([]models.Message, error)
	InsertMessage(msg models.Message) (*models.Message, error)
	UpdateMessageBody(messageID, senderID, body string) error
	DeleteMessage(messageID, senderID string) error
	MarkConversationSeen(senderID, receiverID string) error
	MarkMessageSeen(messageID string) error
}

// BlockChecker is the moderation view the send path consults before any
// remote call.
type BlockChecker interface {
	IsBlocked(userID string) bool
}

// Timeline is the canonical ordered message list of one open conversation.
// It merges the initial snapshot with feed events and rejects local
// mutations the actor is not allowed to make. A new Timeline is created
// every time the active conversation changes; events routed to an
// abandoned instance are simply lost with it.
//
// Writes are optimistic in the reflect-on-confirm sense: Send, Edit and
// Delete only call the collaborator, and the local list changes when the
// corresponding feed event arrives.
type Timeline struct {
	actorID string
	key     models.ConversationKey
	store   MessageStore
	blocks  BlockChecker

	mu       sync.RWMutex
	messages []models.Message
}

// NewTimeline creates a timeline for one conversation. It holds no
// messages until Load is called.
func NewTimeline(actorID string, key models.ConversationKey, store MessageStore, blocks BlockChecker) *Timeline {
	return &Timeline{
		actorID: actorID,
		key:     key,
		store:   store,
		blocks:  blocks,
	}
}

// Key returns the conversation this timeline tracks.
func (t *Timeline) Key() models.ConversationKey {
	return t.key
}

// Load fetches the conversation snapshot. A failed fetch degrades to an
// empty timeline rather than an error: the UI shows an empty conversation
// and the feed fills it in as events arrive. For direct conversations the
// load also fires the seen side effect for everything the actor has
// received but not read.
func (t *Timeline) Load() {
	var (
		messages []models.Message
		err      error
	)
	switch t.key.Kind {
	case models.ConversationGroup:
		messages, err = t.store.ListGroupMessages(t.key.ID)
	default:
		messages, err = t.store.ListDirectMessages(t.actorID, t.key.ID)
	}
	if err != nil {
		log.Printf("[Timeline] Failed to load %s, starting empty: %v", t.key, err)
		messages = nil
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].Before(messages[j]) })

	t.mu.Lock()
	t.messages = messages
	unseen := t.hasUnseenLocked()
	t.mu.Unlock()

	if t.key.Kind == models.ConversationDirect && unseen {
		t.markConversationSeen()
	}
}

// hasUnseenLocked reports whether the actor has received messages not yet
// marked seen. Caller holds the lock.
func (t *Timeline) hasUnseenLocked() bool {
	for _, msg := range t.messages {
		if msg.ReceiverID == t.actorID && !msg.Seen {
			return true
		}
	}
	return false
}

// markConversationSeen fires the seen side effect for the whole
// conversation. Fire-and-forget: rendering never waits on it, and a
// failure only means the sender sees the flip later.
func (t *Timeline) markConversationSeen() {
	go func() {
		if err := t.store.MarkConversationSeen(t.key.ID, t.actorID); err != nil {
			log.Printf("[Timeline] Failed to mark %s seen: %v", t.key, err)
		}
	}()
}

// Messages returns a copy of the ordered timeline.
func (t *Timeline) Messages() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// ApplyInsert merges an insert event into the timeline. Events for other
// conversations are ignored (the last-message index sees them instead),
// and duplicate delivery of the same id is a no-op. The message is placed
// at its (created_at, id) position regardless of arrival order. When the
// actor is the receiver of a direct message, the seen side effect fires
// for it.
func (t *Timeline) ApplyInsert(msg models.Message) {
	if !t.key.Contains(msg, t.actorID) {
		return
	}

	t.mu.Lock()
	inserted := false
	if !t.containsLocked(msg.ID) {
		at := sort.Search(len(t.messages), func(i int) bool { return msg.Before(t.messages[i]) })
		t.messages = append(t.messages, models.Message{})
		copy(t.messages[at+1:], t.messages[at:])
		t.messages[at] = msg
		inserted = true
	}
	t.mu.Unlock()

	if inserted && t.key.Kind == models.ConversationDirect &&
		msg.ReceiverID == t.actorID && !msg.Seen {
		go func() {
			if err := t.store.MarkMessageSeen(msg.ID); err != nil {
				log.Printf("[Timeline] Failed to mark message %s seen: %v", msg.ID, err)
			}
		}()
	}
}

// ApplyUpdate replaces the matching entry in place. An update for a
// message never materialized locally is a no-op; the index and any future
// reload still converge.
func (t *Timeline) ApplyUpdate(msg models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.messages {
		if t.messages[i].ID == msg.ID {
			t.messages[i] = msg
			return
		}
	}
}

// ApplyDelete removes the matching entry, if present.
func (t *Timeline) ApplyDelete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.messages {
		if t.messages[i].ID == id {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return
		}
	}
}

// containsLocked reports whether an id is already present. Caller holds
// the lock.
func (t *Timeline) containsLocked(id string) bool {
	for _, msg := range t.messages {
		if msg.ID == id {
			return true
		}
	}
	return false
}

// Send validates and persists a new message in this conversation. A
// direct message to a blocked user is refused before any network call;
// an empty message with no attachment is invalid. The message appears in
// the timeline when its insert event comes back on the feed.
func (t *Timeline) Send(body string, attachment *models.Attachment) error {
	if body == "" && attachment == nil {
		return fmt.Errorf("message body or attachment required")
	}
	if t.key.Kind == models.ConversationDirect && t.blocks != nil && t.blocks.IsBlocked(t.key.ID) {
		return models.ErrRecipientBlocked
	}

	msg := models.Message{
		SenderID: t.actorID,
		Body:     body,
	}
	switch t.key.Kind {
	case models.ConversationGroup:
		msg.GroupID = t.key.ID
	default:
		msg.ReceiverID = t.key.ID
	}
	if attachment != nil {
		msg.FileURL = attachment.URL
		msg.FileType = attachment.Kind
		msg.FileName = attachment.Name
	}

	if _, err := t.store.InsertMessage(msg); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
	return nil
}

// Edit changes the body of one of the actor's own messages. Editing
// someone else's message is forbidden locally, before the collaborator is
// ever asked.
func (t *Timeline) Edit(id, body string) error {
	if body == "" {
		return fmt.Errorf("message body required")
	}

	t.mu.RLock()
	var target *models.Message
	for i := range t.messages {
		if t.messages[i].ID == id {
			target = &t.messages[i]
			break
		}
	}
	if target == nil {
		t.mu.RUnlock()
		return models.ErrNotFound
	}
	if target.SenderID != t.actorID {
		t.mu.RUnlock()
		return models.ErrForbidden
	}
	t.mu.RUnlock()

	if err := t.store.UpdateMessageBody(id, t.actorID, body); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
	return nil
}

// Delete removes one of the actor's own messages.
func (t *Timeline) Delete(id string) error {
	t.mu.RLock()
	var target *models.Message
	for i := range t.messages {
		if t.messages[i].ID == id {
			target = &t.messages[i]
			break
		}
	}
	if target == nil {
		t.mu.RUnlock()
		return models.ErrNotFound
	}
	if target.SenderID != t.actorID {
		t.mu.RUnlock()
		return models.ErrForbidden
	}
	t.mu.RUnlock()

	if err := t.store.DeleteMessage(id, t.actorID); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
	return nil
}
