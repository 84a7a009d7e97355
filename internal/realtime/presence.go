package realtime

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"
)

// PresenceHandle is a handle on one joined presence channel. Track
// publishes the local user's ephemeral state; the sync callback passed to
// SubscribePresence observes everyone's.
type PresenceHandle struct {
	conn  *Conn
	topic string
}

// Track publishes the local presence state to everyone on the channel.
// Best effort: a failed publish is reported but never retried, the only
// durability being the caller's own timers.
func (p *PresenceHandle) Track(state interface{}) error {
	payload := map[string]interface{}{
		"type":    "presence",
		"event":   "track",
		"payload": state,
	}
	return p.conn.push(p.topic, "presence", payload)
}

// Close leaves the presence channel, which also removes the local user's
// tracked state for everyone else.
func (p *PresenceHandle) Close() {
	p.conn.leave(p.topic)
}

// presenceMeta is one tracked state entry. phx_ref identifies the entry
// across diffs; the rest of the object is the caller's payload and is kept
// raw for the subscriber to decode.
type presenceMeta struct {
	PhxRef string `json:"phx_ref"`
}

// SubscribePresence joins a presence channel and invokes onSync with the
// full, flattened set of tracked states after every state snapshot or
// diff. The channel key is a random per-connection ID, matching how the
// realtime service distinguishes connections.
func (c *Conn) SubscribePresence(name string, onSync func(states []json.RawMessage)) (*PresenceHandle, error) {
	topic := "realtime:" + name

	config := map[string]interface{}{
		"presence": map[string]interface{}{
			"key": uuid.New().String(),
		},
	}

	// state is only touched from the read pump, which dispatches one frame
	// at a time, so it needs no lock.
	state := make(map[string]map[string]json.RawMessage) // key -> phx_ref -> meta

	sync := func() {
		var flat []json.RawMessage
		for _, metas := range state {
			for _, meta := range metas {
				flat = append(flat, meta)
			}
		}
		onSync(flat)
	}

	err := c.join(topic, config, func(event string, payload json.RawMessage) {
		switch event {
		case "presence_state":
			var snapshot map[string]struct {
				Metas []json.RawMessage `json:"metas"`
			}
			if err := json.Unmarshal(payload, &snapshot); err != nil {
				log.Printf("[Realtime] Dropping malformed presence state on %s: %v", topic, err)
				return
			}
			state = make(map[string]map[string]json.RawMessage)
			for key, entry := range snapshot {
				state[key] = metasByRef(entry.Metas)
			}
			sync()

		case "presence_diff":
			var diff struct {
				Joins map[string]struct {
					Metas []json.RawMessage `json:"metas"`
				} `json:"joins"`
				Leaves map[string]struct {
					Metas []json.RawMessage `json:"metas"`
				} `json:"leaves"`
			}
			if err := json.Unmarshal(payload, &diff); err != nil {
				log.Printf("[Realtime] Dropping malformed presence diff on %s: %v", topic, err)
				return
			}
			for key, entry := range diff.Joins {
				if state[key] == nil {
					state[key] = make(map[string]json.RawMessage)
				}
				for ref, meta := range metasByRef(entry.Metas) {
					state[key][ref] = meta
				}
			}
			for key, entry := range diff.Leaves {
				for ref := range metasByRef(entry.Metas) {
					delete(state[key], ref)
				}
				if len(state[key]) == 0 {
					delete(state, key)
				}
			}
			sync()
		}
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Realtime] Joined presence channel %s", topic)
	return &PresenceHandle{conn: c, topic: topic}, nil
}

// metasByRef indexes raw metas by their phx_ref.
func metasByRef(metas []json.RawMessage) map[string]json.RawMessage {
	indexed := make(map[string]json.RawMessage, len(metas))
	for _, raw := range metas {
		var meta presenceMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			continue
		}
		indexed[meta.PhxRef] = raw
	}
	return indexed
}
