package pubsub

import (
	"context"

	"github.com/goccy/go-json"
)

// Topics published by the editor server
const (
	// TopicDocument carries regenerated (JSON Schema, UI Schema) pairs.
	TopicDocument = "document"
	// TopicGraph carries raw graph snapshots for the canvas.
	TopicGraph = "graph"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic ("document", "graph")
	Type    string          `json:"type"`    // Event type (e.g., "regenerated", "imported")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}
