// Package push carries realtime change notifications over websockets.
// A Hub relays messages between peers by topic; a Client publishes to or
// subscribes at a Hub.
package push

import (
	"context"
	"encoding/json"
	"time"
)

// Message actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPublish     = "publish"
	ActionSubscribed  = "subscribed"
	ActionEvent       = "event"
	ActionError       = "error"
)

// Message is the single frame format on the wire.
type Message struct {
	Action string          `json:"action"`
	Topic  string          `json:"topic,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	At     time.Time       `json:"at"`
}

// Publisher sends payload to every subscriber of topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// DiffTopic is the topic realtime diffs of an application are sent on.
func DiffTopic(appID string) string { return "workflow/" + appID + "/diff" }

// SavedTopic carries the result of each batch save of an application.
func SavedTopic(appID string) string { return "workflow/" + appID + "/saved" }
