package groups

import (
	"fmt"
	"log"
	"sync"

	"github.com/parley-chat/parley/backend/internal/models"
)

// GroupStore is the slice of the persistence collaborator the group
// service needs.
type GroupStore interface {
	ListGroups() ([]models.Group, error)
	ListGroupMembers(groupID string) ([]models.GroupMember, error)
	InsertGroup(name, createdBy string) (*models.Group, error)
	InsertGroupMember(groupID, userID string) error
	InsertGroupMembers(groupID string, userIDs []string) error
	InsertNotification(userID, title, body string) error
}

// Service holds the local view of groups and their membership and carries
// the create/add-member intents. Change events on the groups tables
// trigger a refetch rather than incremental merging: group state is tiny
// and the feed only tells us that something changed.
type Service struct {
	actorID string
	store   GroupStore

	mu      sync.RWMutex
	groups  []models.Group
	members map[string][]models.GroupMember
}

// NewService creates an empty group service for the given actor.
func NewService(actorID string, store GroupStore) *Service {
	return &Service{
		actorID: actorID,
		store:   store,
		members: make(map[string][]models.GroupMember),
	}
}

// Load fetches all groups and their membership. A failed fetch degrades
// to an empty list.
func (s *Service) Load() {
	groups, err := s.store.ListGroups()
	if err != nil {
		log.Printf("[Groups] Failed to load groups, starting empty: %v", err)
		return
	}

	members := make(map[string][]models.GroupMember, len(groups))
	for _, group := range groups {
		list, err := s.store.ListGroupMembers(group.ID)
		if err != nil {
			log.Printf("[Groups] Failed to load members of %s: %v", group.ID, err)
			continue
		}
		members[group.ID] = list
	}

	s.mu.Lock()
	s.groups = groups
	s.members = members
	s.mu.Unlock()
}

// Refresh refetches group state after a change event. An empty groupID
// refetches everything.
func (s *Service) Refresh(groupID string) {
	if groupID == "" {
		s.Load()
		return
	}

	list, err := s.store.ListGroupMembers(groupID)
	if err != nil {
		log.Printf("[Groups] Failed to refresh members of %s: %v", groupID, err)
		return
	}

	groups, err := s.store.ListGroups()
	if err != nil {
		log.Printf("[Groups] Failed to refresh groups: %v", err)
		return
	}

	s.mu.Lock()
	s.groups = groups
	s.members[groupID] = list
	s.mu.Unlock()
}

// CreateGroup creates a group with the actor plus the given members. The
// creator's membership is inserted first - the group is not visible to
// anyone until its creator is in it - then the rest, each of whom gets a
// notification about being added. Notification failures are non-fatal.
func (s *Service) CreateGroup(name string, memberIDs []string) (*models.Group, error) {
	if s.actorID == "" {
		return nil, models.ErrNotAuthenticated
	}
	if name == "" {
		return nil, fmt.Errorf("group name required")
	}

	group, err := s.store.InsertGroup(name, s.actorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}

	if err := s.store.InsertGroupMember(group.ID, s.actorID); err != nil {
		return nil, fmt.Errorf("%w: failed to add creator: %v", models.ErrRemoteUnavailable, err)
	}

	var others []string
	for _, id := range memberIDs {
		if id != s.actorID {
			others = append(others, id)
		}
	}
	if err := s.store.InsertGroupMembers(group.ID, others); err != nil {
		log.Printf("[Groups] Failed to add members to %s: %v", group.ID, err)
	} else {
		s.notifyAdded(group, others)
	}

	s.Refresh(group.ID)
	return group, nil
}

// AddMember adds one user to an existing group and notifies them.
func (s *Service) AddMember(groupID, userID string) error {
	if s.actorID == "" {
		return models.ErrNotAuthenticated
	}

	s.mu.RLock()
	var group *models.Group
	for i := range s.groups {
		if s.groups[i].ID == groupID {
			group = &s.groups[i]
			break
		}
	}
	s.mu.RUnlock()
	if group == nil {
		return models.ErrNotFound
	}

	if err := s.store.InsertGroupMember(groupID, userID); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
	s.notifyAdded(group, []string{userID})

	s.Refresh(groupID)
	return nil
}

// notifyAdded creates an inbox notification for each newly added member.
func (s *Service) notifyAdded(group *models.Group, userIDs []string) {
	for _, id := range userIDs {
		body := fmt.Sprintf("You were added to %s", group.Name)
		if err := s.store.InsertNotification(id, "Added to group", body); err != nil {
			log.Printf("[Groups] Failed to notify %s about %s: %v", id, group.ID, err)
		}
	}
}

// Groups returns a copy of the known groups, newest first.
func (s *Service) Groups() []models.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Group, len(s.groups))
	copy(out, s.groups)
	return out
}

// Members returns a copy of a group's membership.
func (s *Service) Members(groupID string) []models.GroupMember {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.members[groupID]
	out := make([]models.GroupMember, len(list))
	copy(out, list)
	return out
}

// IsMember reports whether a user belongs to a group.
func (s *Service) IsMember(groupID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, member := range s.members[groupID] {
		if member.UserID == userID {
			return true
		}
	}
	return false
}
