package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(m Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(m)
}

// Hub is an http.Handler that upgrades connections and relays published
// messages to subscribers of the same topic. It is also a Publisher for
// in-process senders.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[string]map[*peer]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		subs:   map[string]map[*peer]struct{}{},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	p := &peer{conn: conn}
	defer func() {
		h.drop(p)
		conn.Close()
	}()

	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("push peer read ended", "error", err)
			}
			return
		}
		switch m.Action {
		case ActionSubscribe:
			h.subscribe(m.Topic, p)
			if err := p.send(Message{Action: ActionSubscribed, Topic: m.Topic}); err != nil {
				return
			}
		case ActionUnsubscribe:
			h.unsubscribe(m.Topic, p)
		case ActionPublish:
			h.broadcast(Message{Action: ActionEvent, Topic: m.Topic, Data: m.Data, At: m.At})
		default:
			if err := p.send(Message{Action: ActionError, Error: fmt.Sprintf("unknown action %q", m.Action)}); err != nil {
				return
			}
		}
	}
}

// Publish sends payload to the subscribers of topic.
func (h *Hub) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("push: encode payload: %w", err)
	}
	h.broadcast(Message{Action: ActionEvent, Topic: topic, Data: data, At: time.Now().UTC()})
	return nil
}

// Subscribers counts the peers subscribed to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

func (h *Hub) subscribe(topic string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = map[*peer]struct{}{}
	}
	h.subs[topic][p] = struct{}{}
}

func (h *Hub) unsubscribe(topic string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[topic], p)
	if len(h.subs[topic]) == 0 {
		delete(h.subs, topic)
	}
}

func (h *Hub) drop(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, peers := range h.subs {
		delete(peers, p)
		if len(peers) == 0 {
			delete(h.subs, topic)
		}
	}
}

func (h *Hub) broadcast(m Message) {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.subs[m.Topic]))
	for p := range h.subs[m.Topic] {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		if err := p.send(m); err != nil {
			h.logger.Warn("push delivery failed", "topic", m.Topic, "error", err)
		}
	}
}
