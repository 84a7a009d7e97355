package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func change(typ, table, record, oldRecord string) changeData {
	data := changeData{Type: typ, Table: table}
	if record != "" {
		data.Record = json.RawMessage(record)
	}
	if oldRecord != "" {
		data.OldRecord = json.RawMessage(oldRecord)
	}
	return data
}

func TestDecodeChange(t *testing.T) {
	tests := []struct {
		name  string
		data  changeData
		check func(t *testing.T, event Event)
	}{
		{
			name: "message insert",
			data: change("INSERT", "messages",
				`{"id":"m-1","sender_id":"bob","receiver_id":"alice","message":"hi"}`, ""),
			check: func(t *testing.T, event Event) {
				inserted, ok := event.(MessageInserted)
				require.True(t, ok)
				require.Equal(t, "m-1", inserted.Message.ID)
				require.Equal(t, "hi", inserted.Message.Body)
			},
		},
		{
			name: "message update",
			data: change("UPDATE", "messages",
				`{"id":"m-1","sender_id":"bob","receiver_id":"alice","message":"edited","seen":true}`, ""),
			check: func(t *testing.T, event Event) {
				updated, ok := event.(MessageUpdated)
				require.True(t, ok)
				require.Equal(t, "edited", updated.Message.Body)
				require.True(t, updated.Message.Seen)
			},
		},
		{
			name: "message delete carries only the old id",
			data: change("DELETE", "messages", "", `{"id":"m-1"}`),
			check: func(t *testing.T, event Event) {
				deleted, ok := event.(MessageDeleted)
				require.True(t, ok)
				require.Equal(t, "m-1", deleted.ID)
			},
		},
		{
			name: "report insert",
			data: change("INSERT", "user_reports",
				`{"id":"r-1","reporter_id":"carol","reported_user_id":"bob"}`, ""),
			check: func(t *testing.T, event Event) {
				inserted, ok := event.(ReportInserted)
				require.True(t, ok)
				require.Equal(t, "bob", inserted.Report.ReportedUserID)
			},
		},
		{
			name: "notification insert",
			data: change("INSERT", "notifications",
				`{"id":"n-1","user_id":"alice","title":"Added to group","message":"You were added to Lunch"}`, ""),
			check: func(t *testing.T, event Event) {
				inserted, ok := event.(NotificationInserted)
				require.True(t, ok)
				require.Equal(t, "alice", inserted.Notification.UserID)
				require.Equal(t, "You were added to Lunch", inserted.Notification.Body)
			},
		},
		{
			name: "group insert",
			data: change("INSERT", "groups", `{"id":"g-1","name":"Lunch"}`, ""),
			check: func(t *testing.T, event Event) {
				changed, ok := event.(GroupChanged)
				require.True(t, ok)
				require.Equal(t, "g-1", changed.GroupID)
			},
		},
		{
			name: "group member insert resolves the group id",
			data: change("INSERT", "group_members", `{"id":"gm-1","group_id":"g-1","user_id":"bob"}`, ""),
			check: func(t *testing.T, event Event) {
				changed, ok := event.(GroupChanged)
				require.True(t, ok)
				require.Equal(t, "g-1", changed.GroupID)
			},
		},
		{
			name: "group member delete reads the old record",
			data: change("DELETE", "group_members", "", `{"id":"gm-1","group_id":"g-1"}`),
			check: func(t *testing.T, event Event) {
				changed, ok := event.(GroupChanged)
				require.True(t, ok)
				require.Equal(t, "g-1", changed.GroupID)
			},
		},
		{
			name: "profile insert",
			data: change("INSERT", "profiles", `{"id":"p-1","user_id":"bob","name":"Bob"}`, ""),
			check: func(t *testing.T, event Event) {
				inserted, ok := event.(ProfileInserted)
				require.True(t, ok)
				require.Equal(t, "bob", inserted.Profile.UserID)
			},
		},
		{
			name: "profile update",
			data: change("UPDATE", "profiles", `{"id":"p-1","user_id":"bob","is_online":true}`, ""),
			check: func(t *testing.T, event Event) {
				updated, ok := event.(ProfileUpdated)
				require.True(t, ok)
				require.True(t, updated.Profile.IsOnline)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := decodeChange(tt.data)
			require.NoError(t, err)
			tt.check(t, event)
		})
	}
}

func TestDecodeChangeRejects(t *testing.T) {
	tests := []struct {
		name string
		data changeData
	}{
		{name: "unknown table", data: change("INSERT", "billing", `{}`, "")},
		{name: "unknown message type", data: change("TRUNCATE", "messages", "", "")},
		{name: "malformed message record", data: change("INSERT", "messages", `{"id":42}`, "")},
		{name: "malformed delete record", data: change("DELETE", "messages", "", `not json`)},
		{name: "report update is not tracked", data: change("UPDATE", "user_reports", `{}`, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeChange(tt.data)
			require.Error(t, err)
		})
	}
}
