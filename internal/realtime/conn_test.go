package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// stubService is a minimal Phoenix endpoint: it acks every phx_join and
// hands received frames to the test.
type stubService struct {
	srv    *httptest.Server
	frames chan phxMessage

	mu sync.Mutex
	ws *websocket.Conn
}

func newStubService(t *testing.T) *stubService {
	t.Helper()
	s := &stubService{frames: make(chan phxMessage, 32)}

	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.ws = ws
		s.mu.Unlock()

		for {
			var msg phxMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Event == "phx_join" {
				reply := phxMessage{
					Topic:   msg.Topic,
					Event:   "phx_reply",
					Payload: json.RawMessage(`{"status":"ok","response":{}}`),
					Ref:     msg.Ref,
				}
				s.mu.Lock()
				if err := ws.WriteJSON(reply); err != nil {
					s.mu.Unlock()
					return
				}
				s.mu.Unlock()
			}
			s.frames <- msg
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stubService) send(t *testing.T, msg phxMessage) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotNil(t, s.ws, "no client connected")
	require.NoError(t, s.ws.WriteJSON(msg))
}

func (s *stubService) dropClient() {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		ws := s.ws
		s.mu.Unlock()
		if ws != nil {
			ws.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// expectFrame waits for the next frame with the given event name,
// skipping others.
func (s *stubService) expectFrame(t *testing.T, event string) phxMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame := <-s.frames:
			if frame.Event == event {
				return frame
			}
		case <-deadline:
			t.Fatalf("no %s frame received", event)
		}
	}
}

func dialStub(t *testing.T, s *stubService, clock clockwork.Clock) *Conn {
	t.Helper()
	conn, err := Dial(s.srv.URL, "test-key", clock)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func changeFrame(topic, typ, table, record string) phxMessage {
	payload, _ := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"type":   typ,
			"table":  table,
			"record": json.RawMessage(record),
		},
	})
	return phxMessage{Topic: topic, Event: "postgres_changes", Payload: payload}
}

func TestConnSubscribeChangesDeliversTypedEvents(t *testing.T) {
	service := newStubService(t)
	conn := dialStub(t, service, clockwork.NewFakeClock())

	events := make(chan Event, 8)
	_, err := conn.SubscribeChanges("messages", []ChangeFilter{Changes("messages")}, func(event Event) {
		events <- event
	})
	require.NoError(t, err)
	service.expectFrame(t, "phx_join")

	service.send(t, changeFrame("realtime:messages", "INSERT", "messages",
		`{"id":"m-1","sender_id":"bob","receiver_id":"alice","message":"hi"}`))

	select {
	case event := <-events:
		inserted, ok := event.(MessageInserted)
		require.True(t, ok)
		require.Equal(t, "m-1", inserted.Message.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	// Frames for other topics and malformed payloads never reach the handler
	service.send(t, changeFrame("realtime:other", "INSERT", "messages", `{"id":"m-2"}`))
	service.send(t, phxMessage{Topic: "realtime:messages", Event: "postgres_changes", Payload: json.RawMessage(`"garbage"`)})
	select {
	case event := <-events:
		t.Fatalf("unexpected event %T", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnJoinSendsFilterConfig(t *testing.T) {
	service := newStubService(t)
	conn := dialStub(t, service, clockwork.NewFakeClock())

	_, err := conn.SubscribeChanges("inbox", []ChangeFilter{Inserts("notifications", "user_id=eq.alice")}, func(Event) {})
	require.NoError(t, err)

	join := service.expectFrame(t, "phx_join")
	require.Equal(t, "realtime:inbox", join.Topic)

	var payload struct {
		Config struct {
			PostgresChanges []ChangeFilter `json:"postgres_changes"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal(join.Payload, &payload))
	require.Len(t, payload.Config.PostgresChanges, 1)
	require.Equal(t, "INSERT", payload.Config.PostgresChanges[0].Event)
	require.Equal(t, "user_id=eq.alice", payload.Config.PostgresChanges[0].Filter)
}

func TestConnRefusesDuplicateTopic(t *testing.T) {
	service := newStubService(t)
	conn := dialStub(t, service, clockwork.NewFakeClock())

	_, err := conn.SubscribeChanges("messages", []ChangeFilter{Changes("messages")}, func(Event) {})
	require.NoError(t, err)

	_, err = conn.SubscribeChanges("messages", []ChangeFilter{Changes("messages")}, func(Event) {})
	require.Error(t, err)
}

func TestConnUnsubscribeStopsDelivery(t *testing.T) {
	service := newStubService(t)
	conn := dialStub(t, service, clockwork.NewFakeClock())

	events := make(chan Event, 8)
	sub, err := conn.SubscribeChanges("messages", []ChangeFilter{Changes("messages")}, func(event Event) {
		events <- event
	})
	require.NoError(t, err)
	service.expectFrame(t, "phx_join")

	sub.Unsubscribe()
	service.expectFrame(t, "phx_leave")

	service.send(t, changeFrame("realtime:messages", "INSERT", "messages",
		`{"id":"m-1","sender_id":"bob","receiver_id":"alice","message":"hi"}`))
	select {
	case event := <-events:
		t.Fatalf("unexpected event %T after unsubscribe", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnHeartbeat(t *testing.T) {
	service := newStubService(t)
	clock := clockwork.NewFakeClock()
	dialStub(t, service, clock)

	clock.BlockUntil(1)
	clock.Advance(heartbeatPeriod)

	frame := service.expectFrame(t, "heartbeat")
	require.Equal(t, "phoenix", frame.Topic)
}

func TestConnClosedFiresWhenServerDrops(t *testing.T) {
	service := newStubService(t)
	conn := dialStub(t, service, clockwork.NewFakeClock())

	service.dropClient()

	select {
	case <-conn.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("Closed did not fire")
	}
}

func TestConnPresence(t *testing.T) {
	service := newStubService(t)
	conn := dialStub(t, service, clockwork.NewFakeClock())

	syncs := make(chan []json.RawMessage, 8)
	handle, err := conn.SubscribePresence("typing:alice-bob", func(states []json.RawMessage) {
		syncs <- states
	})
	require.NoError(t, err)
	service.expectFrame(t, "phx_join")

	// Full state snapshot with two connections tracking
	service.send(t, phxMessage{
		Topic: "realtime:typing:alice-bob",
		Event: "presence_state",
		Payload: json.RawMessage(`{
			"key-1":{"metas":[{"phx_ref":"ref-1","user_id":"alice","typing":false}]},
			"key-2":{"metas":[{"phx_ref":"ref-2","user_id":"bob","typing":true}]}
		}`),
	})

	select {
	case states := <-syncs:
		require.Len(t, states, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("no sync after presence_state")
	}

	// A leave diff removes its entry from the flattened set
	service.send(t, phxMessage{
		Topic: "realtime:typing:alice-bob",
		Event: "presence_diff",
		Payload: json.RawMessage(`{
			"joins":{},
			"leaves":{"key-2":{"metas":[{"phx_ref":"ref-2","user_id":"bob","typing":true}]}}
		}`),
	})

	select {
	case states := <-syncs:
		require.Len(t, states, 1)
		var state struct {
			UserID string `json:"user_id"`
		}
		require.NoError(t, json.Unmarshal(states[0], &state))
		require.Equal(t, "alice", state.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no sync after presence_diff")
	}

	// Track publishes a presence frame on the channel topic
	require.NoError(t, handle.Track(map[string]interface{}{"user_id": "alice", "typing": true}))
	frame := service.expectFrame(t, "presence")
	require.Equal(t, "realtime:typing:alice-bob", frame.Topic)
}
