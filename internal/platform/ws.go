package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Edge creates rooms on one call platform deployment.
type Edge struct {
	url       string
	apiKey    string
	apiSecret string
	log       logrus.FieldLogger
}

func NewEdge(edgeURL, apiKey, apiSecret string, log logrus.FieldLogger) *Edge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Edge{url: edgeURL, apiKey: apiKey, apiSecret: apiSecret, log: log}
}

// Room returns an unjoined room handle for the given call.
func (e *Edge) Room(callID string) Room {
	return &wsRoom{
		edge:   e,
		callID: callID,
		log:    e.log.WithField("call_id", callID),
	}
}

// wireMessage is the edge signaling frame. Candidate audio arrives as
// separate binary frames.
type wireMessage struct {
	Type      string          `json:"type"`
	APIKey    string          `json:"api_key,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Text      string          `json:"text,omitempty"`
	Timestamp float64         `json:"timestamp,omitempty"`
	Event     string          `json:"event,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type wsRoom struct {
	edge   *Edge
	callID string
	log    logrus.FieldLogger

	mu      sync.Mutex
	conn    *websocket.Conn
	handler Handler
	sink    AudioSink
	closed  bool
}

func (r *wsRoom) Subscribe(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *wsRoom) SetAudioSink(sink AudioSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// Join dials the edge, authenticates, and starts dispatching events to the
// subscribed handler.
func (r *wsRoom) Join(ctx context.Context) error {
	u, err := url.Parse(r.edge.url)
	if err != nil {
		return fmt.Errorf("parse edge url: %w", err)
	}
	q := u.Query()
	q.Set("call_id", r.callID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial edge: %w", err)
	}

	auth := wireMessage{Type: "auth", APIKey: r.edge.apiKey, CallID: r.callID}
	if err := conn.WriteJSON(auth); err != nil {
		_ = conn.Close()
		return fmt.Errorf("edge auth: %w", err)
	}

	var reply wireMessage
	if err := conn.ReadJSON(&reply); err != nil {
		_ = conn.Close()
		return fmt.Errorf("edge auth reply: %w", err)
	}
	if reply.Type != "joined" {
		_ = conn.Close()
		if reply.Error != "" {
			return fmt.Errorf("edge join rejected: %s", reply.Error)
		}
		return fmt.Errorf("edge join rejected: unexpected reply %q", reply.Type)
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	go r.readLoop(conn)
	return nil
}

func (r *wsRoom) readLoop(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if !closed {
				r.log.WithError(err).Debug("edge connection read ended")
			}
			return
		}

		if messageType == websocket.BinaryMessage {
			r.mu.Lock()
			sink := r.sink
			r.mu.Unlock()
			if sink != nil {
				if err := sink.WriteAudio(data); err != nil {
					r.log.WithError(err).Warn("audio sink write failed")
				}
			}
			continue
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			r.log.WithError(err).Warn("malformed edge message")
			continue
		}

		r.mu.Lock()
		handler := r.handler
		r.mu.Unlock()
		if handler == nil {
			continue
		}

		switch msg.Type {
		case "agent_speech":
			handler.OnAgentSpeech(msg.Text, time.Now())
		case "user_speech":
			handler.OnUserSpeech(msg.Text, time.Now())
		case "bye":
			return
		case "error":
			r.log.WithField("error", msg.Error).Warn("edge reported error")
		}
	}
}

// Say has the agent speak in the call.
func (r *wsRoom) Say(_ context.Context, text string) error {
	return r.writeJSON(wireMessage{Type: "say", Text: text})
}

// SendCustomEvent delivers an out-of-band event to call participants.
func (r *wsRoom) SendCustomEvent(eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal custom event: %w", err)
	}
	return r.writeJSON(wireMessage{Type: "custom", Event: eventType, Payload: raw})
}

// Leave sends a farewell frame and closes the connection. Safe to call more
// than once and before Join.
func (r *wsRoom) Leave() error {
	r.mu.Lock()
	conn := r.conn
	alreadyClosed := r.closed
	r.closed = true
	r.conn = nil
	r.mu.Unlock()

	if conn == nil || alreadyClosed {
		return nil
	}

	_ = conn.WriteJSON(wireMessage{Type: "bye", CallID: r.callID})
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close edge connection: %w", err)
	}
	return nil
}

func (r *wsRoom) writeJSON(msg wireMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return fmt.Errorf("room %s not joined", r.callID)
	}
	if err := r.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write edge message: %w", err)
	}
	return nil
}
