package realtime

import (
	"encoding/json"
	"log"
)

// ChangeFilter selects the database changes a subscription receives.
// Event is one of INSERT, UPDATE, DELETE or * ; Filter is an optional
// PostgREST-style row filter such as "user_id=eq.<id>".
type ChangeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

// Changes selects every event type on a table.
func Changes(table string) ChangeFilter {
	return ChangeFilter{Event: "*", Schema: "public", Table: table}
}

// Inserts selects insert events on a table, optionally row-filtered.
func Inserts(table, filter string) ChangeFilter {
	return ChangeFilter{Event: "INSERT", Schema: "public", Table: table, Filter: filter}
}

// Subscription is a handle on one joined change-feed channel.
type Subscription struct {
	conn  *Conn
	topic string
}

// Unsubscribe leaves the channel. No further events are delivered to the
// handler after it returns.
func (s *Subscription) Unsubscribe() {
	s.conn.leave(s.topic)
}

// SubscribeChanges joins a named change-feed channel and delivers every
// matching database change to handler as a typed Event, in publish order.
// Undecodable payloads are logged and dropped at this boundary.
func (c *Conn) SubscribeChanges(name string, filters []ChangeFilter, handler func(Event)) (*Subscription, error) {
	topic := "realtime:" + name

	config := map[string]interface{}{
		"postgres_changes": filters,
	}

	err := c.join(topic, config, func(event string, payload json.RawMessage) {
		if event != "postgres_changes" {
			return
		}

		var body struct {
			Data changeData `json:"data"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			log.Printf("[Realtime] Dropping malformed change on %s: %v", topic, err)
			return
		}

		decoded, err := decodeChange(body.Data)
		if err != nil {
			log.Printf("[Realtime] Dropping change on %s: %v", topic, err)
			return
		}
		handler(decoded)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Realtime] Subscribed to %s (%d filters)", topic, len(filters))
	return &Subscription{conn: c, topic: topic}, nil
}
