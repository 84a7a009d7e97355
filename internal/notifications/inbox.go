package notifications

import (
	"fmt"
	"log"
	"sync"

	"github.com/parley-chat/parley/backend/internal/models"
)

// NotificationStore is the slice of the persistence collaborator the inbox
// needs.
type NotificationStore interface {
	ListNotifications(userID string) ([]models.Notification, error)
	MarkNotificationRead(notificationID string) error
	MarkAllNotificationsRead(userID string) error
}

// Inbox is the actor's queue of server-pushed notices, newest first. The
// unread counter is maintained through every mutation rather than
// recomputed, and always equals the number of entries with is_read=false.
type Inbox struct {
	actorID string
	store   NotificationStore

	mu            sync.RWMutex
	notifications []models.Notification
	unread        int
}

// NewInbox creates an empty inbox for the given actor.
func NewInbox(actorID string, store NotificationStore) *Inbox {
	return &Inbox{actorID: actorID, store: store}
}

// Load fetches the notification snapshot, newest first. A failed fetch
// degrades to an empty inbox.
func (in *Inbox) Load() {
	notifications, err := in.store.ListNotifications(in.actorID)
	if err != nil {
		log.Printf("[Inbox] Failed to load notifications, starting empty: %v", err)
		return
	}

	unread := 0
	for _, n := range notifications {
		if !n.IsRead {
			unread++
		}
	}

	in.mu.Lock()
	in.notifications = notifications
	in.unread = unread
	in.mu.Unlock()
}

// ApplyInsert prepends a pushed notification and bumps the unread counter.
// Notices for other users and duplicate delivery of the same id are
// ignored.
func (in *Inbox) ApplyInsert(n models.Notification) {
	if n.UserID != in.actorID {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	for _, existing := range in.notifications {
		if existing.ID == n.ID {
			return
		}
	}

	in.notifications = append([]models.Notification{n}, in.notifications...)
	if !n.IsRead {
		in.unread++
	}
}

// MarkRead flips one notification to read, locally and at the
// collaborator. Marking an already-read entry is a no-op success; the
// counter only moves when the entry was actually unread, and never below
// zero.
func (in *Inbox) MarkRead(id string) error {
	in.mu.RLock()
	found := false
	alreadyRead := false
	for _, n := range in.notifications {
		if n.ID == id {
			found = true
			alreadyRead = n.IsRead
			break
		}
	}
	in.mu.RUnlock()

	if !found {
		return models.ErrNotFound
	}
	if alreadyRead {
		return nil
	}

	if err := in.store.MarkNotificationRead(id); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	for i := range in.notifications {
		if in.notifications[i].ID == id && !in.notifications[i].IsRead {
			in.notifications[i].IsRead = true
			if in.unread > 0 {
				in.unread--
			}
			break
		}
	}
	return nil
}

// MarkAllRead flips every entry to read and zeroes the counter.
func (in *Inbox) MarkAllRead() error {
	if err := in.store.MarkAllNotificationsRead(in.actorID); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	for i := range in.notifications {
		in.notifications[i].IsRead = true
	}
	in.unread = 0
	return nil
}

// Notifications returns a copy of the inbox, newest first.
func (in *Inbox) Notifications() []models.Notification {
	in.mu.RLock()
	defer in.mu.RUnlock()

	out := make([]models.Notification, len(in.notifications))
	copy(out, in.notifications)
	return out
}

// UnreadCount returns the number of unread notifications.
func (in *Inbox) UnreadCount() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.unread
}
