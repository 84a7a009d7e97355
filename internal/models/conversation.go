package models

import (
	"fmt"
	"strings"
)

// Conversation kinds. A conversation is either a direct pair of users or a
// group; the kind plus the counterpart ID identifies it uniquely.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

// ConversationKey identifies a message-grouping unit: a direct conversation
// with another user, or a group. It shards the timeline, the last-message
// index and the typing tracker.
type ConversationKey struct {
	Kind string `json:"kind"`
	// ID is the other user's ID for direct conversations,
	// or the group ID for group conversations.
	ID string `json:"id"`
}

// DirectKey returns the conversation key for a direct conversation with
// the given user.
func DirectKey(otherUserID string) ConversationKey {
	return ConversationKey{Kind: ConversationDirect, ID: otherUserID}
}

// GroupKey returns the conversation key for a group conversation.
func GroupKey(groupID string) ConversationKey {
	return ConversationKey{Kind: ConversationGroup, ID: groupID}
}

// IsZero reports whether the key is unset.
func (k ConversationKey) IsZero() bool {
	return k.Kind == "" && k.ID == ""
}

// String renders the key as "direct:<userID>" or "group:<groupID>",
// the form used in channel names and URLs.
func (k ConversationKey) String() string {
	return k.Kind + ":" + k.ID
}

// ParseConversationKey parses the "kind:id" form produced by String.
func ParseConversationKey(s string) (ConversationKey, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return ConversationKey{}, fmt.Errorf("invalid conversation key %q", s)
	}
	switch kind {
	case ConversationDirect, ConversationGroup:
		return ConversationKey{Kind: kind, ID: id}, nil
	default:
		return ConversationKey{}, fmt.Errorf("invalid conversation kind %q", kind)
	}
}

// Contains reports whether msg belongs to this conversation from the point
// of view of actorID. A direct key matches messages flowing either way
// between the actor and the key's user; a group key matches on group ID.
func (k ConversationKey) Contains(msg Message, actorID string) bool {
	switch k.Kind {
	case ConversationGroup:
		return msg.GroupID == k.ID
	case ConversationDirect:
		if msg.GroupID != "" {
			return false
		}
		return (msg.SenderID == actorID && msg.ReceiverID == k.ID) ||
			(msg.SenderID == k.ID && msg.ReceiverID == actorID)
	default:
		return false
	}
}

// KeyForMessage derives the conversation key a message belongs to, from the
// point of view of actorID. For group messages this is the group; for direct
// messages it is the counterpart, whichever side the actor is on.
func KeyForMessage(msg Message, actorID string) ConversationKey {
	if msg.GroupID != "" {
		return GroupKey(msg.GroupID)
	}
	if msg.SenderID == actorID {
		return DirectKey(msg.ReceiverID)
	}
	return DirectKey(msg.SenderID)
}
