package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a websocket connection to a Hub. Writes are safe for
// concurrent use; Subscribe and Next must be called from one goroutine.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to the hub at url (ws:// or wss://).
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("push: dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) write(ctx context.Context, m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(m); err != nil {
		return fmt.Errorf("push: write: %w", err)
	}
	return nil
}

// Publish sends payload to topic through the hub.
func (c *Client) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("push: encode payload: %w", err)
	}
	return c.write(ctx, Message{Action: ActionPublish, Topic: topic, Data: data, At: time.Now().UTC()})
}

// Subscribe registers for topic and waits for the hub's acknowledgement.
func (c *Client) Subscribe(ctx context.Context, topic string) error {
	if err := c.write(ctx, Message{Action: ActionSubscribe, Topic: topic}); err != nil {
		return err
	}
	m, err := c.Next(ctx)
	if err != nil {
		return err
	}
	if m.Action != ActionSubscribed || m.Topic != topic {
		return fmt.Errorf("push: unexpected reply %q to subscribe", m.Action)
	}
	return nil
}

// Next blocks until the next message arrives or ctx ends.
func (c *Client) Next(ctx context.Context) (*Message, error) {
	if d, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(d)
	} else {
		c.conn.SetReadDeadline(time.Time{})
	}
	var m Message
	if err := c.conn.ReadJSON(&m); err != nil {
		return nil, fmt.Errorf("push: read: %w", err)
	}
	return &m, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}
