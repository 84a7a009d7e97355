package chat

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/parley-chat/parley/backend/internal/groups"
	"github.com/parley-chat/parley/backend/internal/models"
	"github.com/parley-chat/parley/backend/internal/moderation"
	"github.com/parley-chat/parley/backend/internal/notifications"
	"github.com/parley-chat/parley/backend/internal/realtime"
	"github.com/parley-chat/parley/backend/internal/users"
)

// Subscription is a live change-feed channel that can be torn down.
type Subscription interface {
	Unsubscribe()
}

// Presence is a live presence channel: it publishes the local state and
// can be torn down.
type Presence interface {
	Track(state interface{}) error
	Close()
}

// Feed is the event channel adapter as the session consumes it. The
// realtime connection satisfies it through ConnFeed; tests substitute
// their own.
type Feed interface {
	SubscribeChanges(name string, filters []realtime.ChangeFilter, handler func(realtime.Event)) (Subscription, error)
	SubscribePresence(name string, onSync func(metas []json.RawMessage)) (Presence, error)
}

// SnapshotStore is the full persistence surface the session needs: the
// timeline's slice plus the network-wide message snapshot that seeds the
// last-message index.
type SnapshotStore interface {
	MessageStore
	ListUserMessages(userID string) ([]models.Message, error)
}

// Session is one user's synchronized view of the chat world. It owns the
// last-message index and the currently open conversation (timeline plus
// typing tracker) and routes feed events to every store. Each store is
// exclusively mutated through the session's routing; reads hand out
// copies of already-published state.
type Session struct {
	actorID string
	store   SnapshotStore
	feed    Feed
	clock   clockwork.Clock

	moderation *moderation.Aggregator
	inbox      *notifications.Inbox
	groups     *groups.Service
	users      *users.Directory
	index      *LastMessageIndex

	mu       sync.RWMutex
	timeline *Timeline
	typing   *TypingTracker
	presence Presence
	subs     []Subscription
}

// NewSession assembles a session from its collaborators. Nothing is
// fetched or subscribed until Start.
func NewSession(
	actorID string,
	store SnapshotStore,
	feed Feed,
	clock clockwork.Clock,
	mod *moderation.Aggregator,
	inbox *notifications.Inbox,
	groupSvc *groups.Service,
	userDir *users.Directory,
) *Session {
	return &Session{
		actorID:    actorID,
		store:      store,
		feed:       feed,
		clock:      clock,
		moderation: mod,
		inbox:      inbox,
		groups:     groupSvc,
		users:      userDir,
		index:      NewLastMessageIndex(actorID),
	}
}

// ActorID returns the acting user identity.
func (s *Session) ActorID() string {
	return s.actorID
}

// Index returns the last-message index.
func (s *Session) Index() *LastMessageIndex {
	return s.index
}

// Start loads every snapshot and establishes the change-feed channels.
// Each channel mirrors one concern and delivers its events in publish
// order; no order holds across channels, and every store tolerates that.
// Subscription failures degrade to a stale local view - there is no retry
// or reconnect, a dropped feed stays dropped until restart.
func (s *Session) Start() error {
	if s.actorID == "" {
		log.Println("[Session] No acting identity, running with empty read-only state")
		return nil
	}

	s.moderation.Load()
	s.inbox.Load()
	s.groups.Load()
	s.users.Load()

	if messages, err := s.store.ListUserMessages(s.actorID); err != nil {
		log.Printf("[Session] Failed to seed last-message index: %v", err)
	} else {
		s.index.Seed(messages)
	}

	s.subscribe("messages-changes", []realtime.ChangeFilter{realtime.Changes("messages")}, func(event realtime.Event) {
		timeline := s.currentTimeline()
		if timeline == nil {
			return
		}
		switch e := event.(type) {
		case realtime.MessageInserted:
			timeline.ApplyInsert(e.Message)
		case realtime.MessageUpdated:
			timeline.ApplyUpdate(e.Message)
		case realtime.MessageDeleted:
			timeline.ApplyDelete(e.ID)
		}
	})

	// The index listens network-wide on its own channel, decoupled from
	// whichever conversation happens to be open.
	s.subscribe("last-messages", []realtime.ChangeFilter{realtime.Inserts("messages", "")}, func(event realtime.Event) {
		if e, ok := event.(realtime.MessageInserted); ok {
			s.index.Observe(e.Message)
		}
	})

	s.subscribe("user-reports-changes", []realtime.ChangeFilter{realtime.Inserts("user_reports", "")}, func(event realtime.Event) {
		if e, ok := event.(realtime.ReportInserted); ok {
			s.moderation.ApplyInsert(e.Report)
		}
	})

	s.subscribe("user-notifications", []realtime.ChangeFilter{realtime.Inserts("notifications", "user_id=eq."+s.actorID)}, func(event realtime.Event) {
		if e, ok := event.(realtime.NotificationInserted); ok {
			s.inbox.ApplyInsert(e.Notification)
		}
	})

	s.subscribe("groups-changes", []realtime.ChangeFilter{realtime.Changes("groups"), realtime.Changes("group_members")}, func(event realtime.Event) {
		if e, ok := event.(realtime.GroupChanged); ok {
			s.groups.Refresh(e.GroupID)
		}
	})

	s.subscribe("profiles-changes", []realtime.ChangeFilter{realtime.Changes("profiles")}, func(event realtime.Event) {
		switch e := event.(type) {
		case realtime.ProfileInserted:
			s.users.ApplyInsert(e.Profile)
		case realtime.ProfileUpdated:
			s.users.ApplyUpdate(e.Profile)
		}
	})

	return nil
}

// subscribe establishes one change-feed channel, degrading with a log
// line when the feed refuses it.
func (s *Session) subscribe(name string, filters []realtime.ChangeFilter, handler func(realtime.Event)) {
	sub, err := s.feed.SubscribeChanges(name, filters, handler)
	if err != nil {
		log.Printf("[Session] Subscription %s failed, view will be stale: %v", name, err)
		return
	}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

// Close tears down every channel and the open conversation.
func (s *Session) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.detach()
}

// Open switches the active conversation. The previous timeline's update
// path is detached - late events for it are dropped, and in-flight remote
// results are ignored with the instance - and the typing presence channel
// is torn down and re-established for the new key.
func (s *Session) Open(key models.ConversationKey) error {
	if s.actorID == "" {
		return models.ErrNotAuthenticated
	}

	s.detach()

	timeline := NewTimeline(s.actorID, key, s.store, s.moderation)
	timeline.Load()

	tracker := NewTypingTracker(s.actorID, s.clock)
	presence, err := s.feed.SubscribePresence(typingChannelName(s.actorID, key), func(metas []json.RawMessage) {
		tracker.ApplySync(decodeTypingStates(metas))
	})
	if err != nil {
		// Typing is best-effort; the conversation still opens
		log.Printf("[Session] Typing channel for %s unavailable: %v", key, err)
	} else {
		tracker.Attach(presence)
	}

	s.mu.Lock()
	s.timeline = timeline
	s.typing = tracker
	s.presence = presence
	s.mu.Unlock()

	log.Printf("[Session] Opened conversation %s", key)
	return nil
}

// detach drops the open conversation and its presence channel.
func (s *Session) detach() {
	s.mu.Lock()
	timeline := s.timeline
	tracker := s.typing
	presence := s.presence
	s.timeline = nil
	s.typing = nil
	s.presence = nil
	s.mu.Unlock()

	if tracker != nil {
		tracker.Close()
	}
	if presence != nil {
		presence.Close()
	}
	if timeline != nil {
		log.Printf("[Session] Detached conversation %s", timeline.Key())
	}
}

// currentTimeline returns the open timeline, or nil.
func (s *Session) currentTimeline() *Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline
}

// currentTyping returns the open conversation's typing tracker, or nil.
func (s *Session) currentTyping() *TypingTracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing
}

// ActiveKey returns the open conversation's key, if any.
func (s *Session) ActiveKey() (models.ConversationKey, bool) {
	timeline := s.currentTimeline()
	if timeline == nil {
		return models.ConversationKey{}, false
	}
	return timeline.Key(), true
}

// Timeline returns a copy of the open conversation's messages, or nil
// when no conversation is open.
func (s *Session) Timeline() []models.Message {
	timeline := s.currentTimeline()
	if timeline == nil {
		return nil
	}
	return timeline.Messages()
}

// Send posts a message to the open conversation.
func (s *Session) Send(body string, attachment *models.Attachment) error {
	if s.actorID == "" {
		return models.ErrNotAuthenticated
	}
	timeline := s.currentTimeline()
	if timeline == nil {
		return fmt.Errorf("no conversation open")
	}
	return timeline.Send(body, attachment)
}

// Edit changes one of the actor's messages in the open conversation.
func (s *Session) Edit(id, body string) error {
	if s.actorID == "" {
		return models.ErrNotAuthenticated
	}
	timeline := s.currentTimeline()
	if timeline == nil {
		return fmt.Errorf("no conversation open")
	}
	return timeline.Edit(id, body)
}

// Delete removes one of the actor's messages in the open conversation.
func (s *Session) Delete(id string) error {
	if s.actorID == "" {
		return models.ErrNotAuthenticated
	}
	timeline := s.currentTimeline()
	if timeline == nil {
		return fmt.Errorf("no conversation open")
	}
	return timeline.Delete(id)
}

// SetTyping publishes the actor's typing state on the open conversation.
func (s *Session) SetTyping(typing bool) error {
	if s.actorID == "" {
		return models.ErrNotAuthenticated
	}
	tracker := s.currentTyping()
	if tracker == nil {
		return fmt.Errorf("no conversation open")
	}
	return tracker.SetTyping(typing)
}

// TypingUsers returns who is typing in the open conversation.
func (s *Session) TypingUsers() []string {
	tracker := s.currentTyping()
	if tracker == nil {
		return nil
	}
	return tracker.TypingUsers()
}

// Conversations builds the ordered conversation list: every known user
// and group, decorated with its last message and preview, conversations
// with recent messages first.
func (s *Session) Conversations() []ConversationSummary {
	var summaries []ConversationSummary

	for _, profile := range s.users.Profiles() {
		summaries = append(summaries, s.index.Summarize(ConversationSummary{
			Key:       models.DirectKey(profile.UserID),
			Name:      profile.Name,
			CreatedAt: profile.CreatedAt,
		}))
	}
	for _, group := range s.groups.Groups() {
		summaries = append(summaries, s.index.Summarize(ConversationSummary{
			Key:       models.GroupKey(group.ID),
			Name:      group.Name,
			CreatedAt: group.CreatedAt,
		}))
	}

	SortSummaries(summaries)
	return summaries
}

// typingChannelName names the presence channel of a conversation. Both
// direct participants derive the same name regardless of which side they
// are, by sorting the pair.
func typingChannelName(actorID string, key models.ConversationKey) string {
	if key.Kind == models.ConversationGroup {
		return "typing:group-" + key.ID
	}
	pair := []string{actorID, key.ID}
	sort.Strings(pair)
	return "typing:" + pair[0] + "-" + pair[1]
}

// decodeTypingStates decodes raw presence metas into typing states,
// dropping what does not parse.
func decodeTypingStates(metas []json.RawMessage) []TypingState {
	states := make([]TypingState, 0, len(metas))
	for _, raw := range metas {
		var state TypingState
		if err := json.Unmarshal(raw, &state); err != nil {
			continue
		}
		states = append(states, state)
	}
	return states
}

// ConnFeed adapts the realtime connection to the Feed interface.
type ConnFeed struct {
	Conn *realtime.Conn
}

// SubscribeChanges joins a change-feed channel on the underlying
// connection.
func (f ConnFeed) SubscribeChanges(name string, filters []realtime.ChangeFilter, handler func(realtime.Event)) (Subscription, error) {
	sub, err := f.Conn.SubscribeChanges(name, filters, handler)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribePresence joins a presence channel on the underlying connection.
func (f ConnFeed) SubscribePresence(name string, onSync func(metas []json.RawMessage)) (Presence, error) {
	handle, err := f.Conn.SubscribePresence(name, onSync)
	if err != nil {
		return nil, err
	}
	return handle, nil
}
