package chat

import (
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/parley-chat/parley/backend/internal/models"
)

// typingTimeout is how long a typing=true publish stays valid without
// renewal before the tracker expires it on its own clock.
const typingTimeout = 3000 * time.Millisecond

// TypingState is the presence payload published on a typing channel.
type TypingState struct {
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

// PresencePublisher publishes the local user's presence state. Implemented
// by the realtime presence handle.
type PresencePublisher interface {
	Track(state interface{}) error
}

// TypingTracker is the ephemeral typing state of one open conversation.
// Each remote user is a tiny state machine: a typing=true publish arms a
// per-user expiry timer that forces the user back to idle when no renewal
// arrives within the timeout, so a peer that vanishes mid-keystroke never
// types forever. The tracker also owns the sender side: SetTyping(true)
// arms a local timer that auto-publishes typing=false.
//
// Everything here is process-local; nothing is persisted and the tracker
// dies with the conversation it belongs to.
type TypingTracker struct {
	actorID string
	clock   clockwork.Clock

	mu        sync.Mutex
	publisher PresencePublisher
	typing    map[string]bool
	timers    map[string]clockwork.Timer
	selfTimer clockwork.Timer
	closed    bool
}

// NewTypingTracker creates a tracker with no attached presence channel.
func NewTypingTracker(actorID string, clock clockwork.Clock) *TypingTracker {
	return &TypingTracker{
		actorID: actorID,
		clock:   clock,
		typing:  make(map[string]bool),
		timers:  make(map[string]clockwork.Timer),
	}
}

// Attach hands the tracker its presence channel and announces the initial
// idle state, so peers see the actor as present-but-not-typing.
func (t *TypingTracker) Attach(publisher PresencePublisher) {
	t.mu.Lock()
	t.publisher = publisher
	t.mu.Unlock()

	if err := publisher.Track(TypingState{UserID: t.actorID, Typing: false}); err != nil {
		log.Printf("[Typing] Failed to announce initial state: %v", err)
	}
}

// Close tears the tracker down: every timer is cancelled and all state
// dropped. Called when the conversation is switched away from.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.publisher = nil
	for user, timer := range t.timers {
		timer.Stop()
		delete(t.timers, user)
	}
	if t.selfTimer != nil {
		t.selfTimer.Stop()
		t.selfTimer = nil
	}
	t.typing = make(map[string]bool)
}

// ApplySync folds a presence sync into the tracker. Users tracking
// typing=true transition to typing and have their expiry re-armed; users
// tracking false or missing from the sync transition to idle. The actor's
// own state is never surfaced.
func (t *TypingTracker) ApplySync(states []TypingState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	seen := make(map[string]bool)
	for _, state := range states {
		if state.UserID == "" || state.UserID == t.actorID {
			continue
		}
		if state.Typing {
			seen[state.UserID] = true
		}
	}

	// Transitions to idle: tracked false, or gone from the channel
	for user := range t.typing {
		if !seen[user] {
			t.stopLocked(user)
		}
	}

	// Transitions to typing, and renewals re-arming the expiry
	for user := range seen {
		t.typing[user] = true
		if timer, ok := t.timers[user]; ok {
			timer.Reset(typingTimeout)
			continue
		}
		user := user
		t.timers[user] = t.clock.AfterFunc(typingTimeout, func() {
			t.expire(user)
		})
	}
}

// stopLocked cancels a user's expiry and marks them idle. Caller holds
// the lock.
func (t *TypingTracker) stopLocked(user string) {
	if timer, ok := t.timers[user]; ok {
		timer.Stop()
		delete(t.timers, user)
	}
	delete(t.typing, user)
}

// expire is the timer transition: the user is forced idle because no
// renewal arrived in time.
func (t *TypingTracker) expire(user string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	delete(t.timers, user)
	delete(t.typing, user)
}

// TypingUsers returns the users currently typing in this conversation.
func (t *TypingTracker) TypingUsers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]string, 0, len(t.typing))
	for user := range t.typing {
		users = append(users, user)
	}
	return users
}

// IsTyping reports whether anyone (other than the actor) is typing.
func (t *TypingTracker) IsTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.typing) > 0
}

// SetTyping publishes the actor's own typing state. A true publish arms
// (or re-arms) a local timer that publishes false after the timeout, so a
// peer that never sees an explicit stop still converges; a false publish
// cancels it. Publish failures are surfaced but never retried.
func (t *TypingTracker) SetTyping(typing bool) error {
	t.mu.Lock()
	publisher := t.publisher
	if publisher == nil {
		t.mu.Unlock()
		return models.ErrRemoteUnavailable
	}

	if typing {
		if t.selfTimer != nil {
			t.selfTimer.Reset(typingTimeout)
		} else {
			t.selfTimer = t.clock.AfterFunc(typingTimeout, t.selfExpire)
		}
	} else if t.selfTimer != nil {
		t.selfTimer.Stop()
		t.selfTimer = nil
	}
	t.mu.Unlock()

	return publisher.Track(TypingState{UserID: t.actorID, Typing: typing})
}

// selfExpire publishes the automatic typing=false when the actor stops
// renewing.
func (t *TypingTracker) selfExpire() {
	t.mu.Lock()
	publisher := t.publisher
	t.selfTimer = nil
	closed := t.closed
	t.mu.Unlock()

	if closed || publisher == nil {
		return
	}
	if err := publisher.Track(TypingState{UserID: t.actorID, Typing: false}); err != nil {
		log.Printf("[Typing] Failed to publish auto-stop: %v", err)
	}
}
