package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	// Time allowed to write a frame to the realtime service
	writeWait = 10 * time.Second

	// Phoenix heartbeat period. The service drops connections that stay
	// silent for ~60s, so this must be comfortably below that.
	heartbeatPeriod = 25 * time.Second

	// Time allowed for a channel join handshake to complete
	joinTimeout = 10 * time.Second

	// Maximum frame size accepted from the service
	maxMessageSize = 1024 * 1024
)

// phxMessage is the Phoenix wire frame used by the Supabase realtime
// service: every frame in both directions carries a topic, an event name,
// a payload and an optional reply ref.
type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// channelHandler receives every frame delivered on one joined topic, in
// publish order.
type channelHandler func(event string, payload json.RawMessage)

// Conn is a single multiplexed connection to the realtime service. All
// change-feed and presence channels share it; frames for one topic are
// dispatched in order from a single read pump. There is no automatic
// reconnect: when the connection drops, Closed() fires and local state
// stays as-is until the daemon is restarted.
type Conn struct {
	ws    *websocket.Conn
	clock clockwork.Clock

	// writeMu serializes frame writes; gorilla connections allow only one
	// concurrent writer
	writeMu sync.Mutex

	mu       sync.Mutex
	channels map[string]channelHandler
	pending  map[string]chan []byte // join ref -> reply payload
	nextRef  int

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the realtime endpoint of a Supabase project and starts
// the read and heartbeat pumps.
func Dial(baseURL, apiKey string, clock clockwork.Clock) (*Conn, error) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1)
	endpoint := fmt.Sprintf("%s/realtime/v1/websocket?apikey=%s&vsn=1.0.0", wsURL, apiKey)

	ws, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime service: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	c := &Conn{
		ws:       ws,
		clock:    clock,
		channels: make(map[string]channelHandler),
		pending:  make(map[string]chan []byte),
		closed:   make(chan struct{}),
	}

	go c.readPump()
	go c.heartbeatLoop()

	log.Printf("[Realtime] Connected to %s", wsURL)
	return c, nil
}

// Closed returns a channel that is closed when the connection is gone,
// for whatever reason.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.ws.Close()
	})
	return err
}

// readPump reads frames until the connection dies and dispatches each one
// synchronously to its topic's handler. Synchronous dispatch is what
// preserves per-channel publish order; ordering across topics is
// deliberately unspecified.
func (c *Conn) readPump() {
	defer c.Close()

	for {
		var msg phxMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			select {
			case <-c.closed:
			default:
				log.Printf("[Realtime] Connection lost: %v", err)
			}
			return
		}

		// Join replies are routed to the waiting subscriber
		if msg.Event == "phx_reply" && msg.Ref != "" {
			c.mu.Lock()
			ch, ok := c.pending[msg.Ref]
			if ok {
				delete(c.pending, msg.Ref)
			}
			c.mu.Unlock()
			if ok {
				ch <- msg.Payload
				continue
			}
		}

		if msg.Topic == "phoenix" {
			continue
		}

		c.mu.Lock()
		handler := c.channels[msg.Topic]
		c.mu.Unlock()

		if handler != nil {
			handler(msg.Event, msg.Payload)
		}
	}
}

// heartbeatLoop keeps the connection alive. Phoenix expects an explicit
// heartbeat frame rather than websocket pings.
func (c *Conn) heartbeatLoop() {
	ticker := c.clock.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			hb := phxMessage{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage(`{}`), Ref: c.ref()}
			if err := c.write(hb); err != nil {
				log.Printf("[Realtime] Heartbeat failed: %v", err)
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// write sends one frame, serialized against other writers.
func (c *Conn) write(msg phxMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// ref returns the next reply reference.
func (c *Conn) ref() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextRef++
	return strconv.Itoa(c.nextRef)
}

// join performs the phx_join handshake for a topic and installs its
// handler. The handler starts receiving frames as soon as the join reply
// arrives.
func (c *Conn) join(topic string, config interface{}, handler channelHandler) error {
	payload, err := json.Marshal(map[string]interface{}{"config": config})
	if err != nil {
		return fmt.Errorf("failed to marshal join config: %w", err)
	}

	ref := c.ref()
	reply := make(chan []byte, 1)

	c.mu.Lock()
	if _, exists := c.channels[topic]; exists {
		c.mu.Unlock()
		return fmt.Errorf("topic %s already joined", topic)
	}
	c.channels[topic] = handler
	c.pending[ref] = reply
	c.mu.Unlock()

	msg := phxMessage{Topic: topic, Event: "phx_join", Payload: payload, Ref: ref}
	if err := c.write(msg); err != nil {
		c.leaveLocked(topic, ref)
		return fmt.Errorf("failed to join %s: %w", topic, err)
	}

	select {
	case <-reply:
		return nil
	case <-c.clock.After(joinTimeout):
		c.leaveLocked(topic, ref)
		return fmt.Errorf("join handshake for %s timed out", topic)
	case <-c.closed:
		return fmt.Errorf("connection closed while joining %s", topic)
	}
}

// leaveLocked removes local bookkeeping for a failed or abandoned join.
func (c *Conn) leaveLocked(topic, ref string) {
	c.mu.Lock()
	delete(c.channels, topic)
	delete(c.pending, ref)
	c.mu.Unlock()
}

// leave sends phx_leave and detaches the topic's handler. Events already
// in flight for the topic are dropped once the handler is gone.
func (c *Conn) leave(topic string) {
	c.mu.Lock()
	delete(c.channels, topic)
	c.mu.Unlock()

	msg := phxMessage{Topic: topic, Event: "phx_leave", Payload: json.RawMessage(`{}`), Ref: c.ref()}
	if err := c.write(msg); err != nil {
		log.Printf("[Realtime] Failed to leave %s: %v", topic, err)
	}
}

// push sends an event on a joined topic.
func (c *Conn) push(topic, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	msg := phxMessage{Topic: topic, Event: event, Payload: data, Ref: c.ref()}
	return c.write(msg)
}
