package users

import (
	"log"
	"sync"

	"github.com/parley-chat/parley/backend/internal/models"
)

// ProfileStore is the slice of the persistence collaborator the directory
// needs.
type ProfileStore interface {
	ListProfiles(excludeUserID string) ([]models.Profile, error)
}

// Directory is the local view of every other user's profile, kept fresh
// by profile change events so online status flips without polling.
type Directory struct {
	actorID string
	store   ProfileStore

	mu       sync.RWMutex
	profiles []models.Profile
}

// NewDirectory creates an empty directory for the given actor.
func NewDirectory(actorID string, store ProfileStore) *Directory {
	return &Directory{actorID: actorID, store: store}
}

// Load fetches all profiles except the actor's, ordered by name. A failed
// fetch degrades to an empty directory.
func (d *Directory) Load() {
	profiles, err := d.store.ListProfiles(d.actorID)
	if err != nil {
		log.Printf("[Users] Failed to load profiles, starting empty: %v", err)
		return
	}

	d.mu.Lock()
	d.profiles = profiles
	d.mu.Unlock()
}

// ApplyInsert adds a newly created profile. The actor's own profile is
// never listed.
func (d *Directory) ApplyInsert(p models.Profile) {
	if p.UserID == d.actorID {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.profiles {
		if existing.UserID == p.UserID {
			return
		}
	}
	d.profiles = append(d.profiles, p)
}

// ApplyUpdate replaces a changed profile in place, typically an online
// status or last-seen flip.
func (d *Directory) ApplyUpdate(p models.Profile) {
	if p.UserID == d.actorID {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.profiles {
		if d.profiles[i].UserID == p.UserID {
			d.profiles[i] = p
			return
		}
	}
}

// Profiles returns a copy of the directory.
func (d *Directory) Profiles() []models.Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.Profile, len(d.profiles))
	copy(out, d.profiles)
	return out
}

// Get looks a profile up by user ID.
func (d *Directory) Get(userID string) (models.Profile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, p := range d.profiles {
		if p.UserID == userID {
			return p, true
		}
	}
	return models.Profile{}, false
}
