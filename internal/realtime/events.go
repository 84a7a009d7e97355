package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/parley-chat/parley/backend/internal/models"
)

// Event is a decoded change-feed event. The adapter decodes every
// postgres_changes payload into one of the closed set of variants below so
// downstream stores never branch on raw payload shape.
type Event interface {
	isEvent()
}

// MessageInserted is delivered when a row appears in the messages table.
type MessageInserted struct {
	Message models.Message
}

// MessageUpdated is delivered when a messages row changes (edit, seen flip).
type MessageUpdated struct {
	Message models.Message
}

// MessageDeleted is delivered when a messages row is removed. Only the old
// row's id survives the wire.
type MessageDeleted struct {
	ID string
}

// ReportInserted is delivered when a row appears in the user_reports table.
type ReportInserted struct {
	Report models.ReportRecord
}

// NotificationInserted is delivered when a row appears in the
// notifications table.
type NotificationInserted struct {
	Notification models.Notification
}

// GroupChanged is delivered when the groups or group_members tables change
// in any way. Group state is cheap to refetch, so the variant only carries
// the affected group id (empty when the event did not include one).
type GroupChanged struct {
	GroupID string
}

// ProfileInserted is delivered when a new profile appears.
type ProfileInserted struct {
	Profile models.Profile
}

// ProfileUpdated is delivered when a profile changes (online status etc).
type ProfileUpdated struct {
	Profile models.Profile
}

func (MessageInserted) isEvent()      {}
func (MessageUpdated) isEvent()       {}
func (MessageDeleted) isEvent()       {}
func (ReportInserted) isEvent()       {}
func (NotificationInserted) isEvent() {}
func (GroupChanged) isEvent()         {}
func (ProfileInserted) isEvent()      {}
func (ProfileUpdated) isEvent()       {}

// changeData is the payload of a postgres_changes event as delivered by
// the realtime service.
type changeData struct {
	Type      string          `json:"type"` // INSERT, UPDATE, DELETE
	Table     string          `json:"table"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record"`
}

// decodeChange turns a raw change payload into a typed Event.
// Unknown tables and undecodable records return an error; the caller logs
// and drops them rather than letting malformed input near the stores.
func decodeChange(data changeData) (Event, error) {
	switch data.Table {
	case "messages":
		switch data.Type {
		case "INSERT", "UPDATE":
			var msg models.Message
			if err := json.Unmarshal(data.Record, &msg); err != nil {
				return nil, fmt.Errorf("failed to decode message record: %w", err)
			}
			if data.Type == "INSERT" {
				return MessageInserted{Message: msg}, nil
			}
			return MessageUpdated{Message: msg}, nil
		case "DELETE":
			var old struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(data.OldRecord, &old); err != nil {
				return nil, fmt.Errorf("failed to decode deleted message: %w", err)
			}
			return MessageDeleted{ID: old.ID}, nil
		}

	case "user_reports":
		if data.Type == "INSERT" {
			var report models.ReportRecord
			if err := json.Unmarshal(data.Record, &report); err != nil {
				return nil, fmt.Errorf("failed to decode report record: %w", err)
			}
			return ReportInserted{Report: report}, nil
		}

	case "notifications":
		if data.Type == "INSERT" {
			var n models.Notification
			if err := json.Unmarshal(data.Record, &n); err != nil {
				return nil, fmt.Errorf("failed to decode notification record: %w", err)
			}
			return NotificationInserted{Notification: n}, nil
		}

	case "groups", "group_members":
		var record struct {
			ID      string `json:"id"`
			GroupID string `json:"group_id"`
		}
		raw := data.Record
		if data.Type == "DELETE" {
			raw = data.OldRecord
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &record); err != nil {
				return nil, fmt.Errorf("failed to decode group record: %w", err)
			}
		}
		groupID := record.GroupID
		if data.Table == "groups" {
			groupID = record.ID
		}
		return GroupChanged{GroupID: groupID}, nil

	case "profiles":
		switch data.Type {
		case "INSERT", "UPDATE":
			var p models.Profile
			if err := json.Unmarshal(data.Record, &p); err != nil {
				return nil, fmt.Errorf("failed to decode profile record: %w", err)
			}
			if data.Type == "INSERT" {
				return ProfileInserted{Profile: p}, nil
			}
			return ProfileUpdated{Profile: p}, nil
		}
	}

	return nil, fmt.Errorf("unhandled change %s on table %s", data.Type, data.Table)
}
