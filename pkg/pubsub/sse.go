package pubsub

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/formgraph/formgraph/pkg/logging"
)

// TopicConfig controls replay for late subscribers.
type TopicConfig struct {
	BufferSize int  // events retained per topic, 0 disables replay
	ReplayAll  bool // replay the whole buffer instead of only the latest event
}

// topicState holds everything the publisher tracks for one topic.
type topicState struct {
	config  TopicConfig
	version int
	buffer  []Event
	subs    map[*sseSubscription]struct{}
}

// SSEPublisher fans events out to SSE subscribers. Sends never block: a
// subscriber that cannot keep up loses events rather than stalling the
// editor session.
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

// NewSSEPublisher creates an SSE-based publisher.
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

func (p *SSEPublisher) topic(name string) *topicState {
	t := p.topics[name]
	if t == nil {
		t = &topicState{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets the replay policy for a topic.
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic(name).config = config
}

// Subscribe registers a subscriber and replays buffered events per the topic
// policy. The subscription closes when ctx is cancelled.
func (p *SSEPublisher) Subscribe(ctx context.Context, name string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("publisher is closed")
	}

	t := p.topic(name)
	sub := &sseSubscription{
		topic:     name,
		events:    make(chan Event, 100),
		publisher: p,
	}
	t.subs[sub] = struct{}{}

	replay := t.buffer
	if !t.config.ReplayAll && len(replay) > 1 {
		replay = replay[len(replay)-1:]
	}
	for _, event := range replay {
		// The channel is empty and larger than any buffer, so this never drops.
		sub.events <- event
	}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish marshals data, stamps the topic version, buffers per the topic
// policy, and fans out without blocking.
func (p *SSEPublisher) Publish(name string, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	t := p.topic(name)
	t.version++
	event := Event{
		Topic:   name,
		Type:    eventType,
		Data:    payload,
		Version: t.version,
	}

	if n := t.config.BufferSize; n > 0 {
		t.buffer = append(t.buffer, event)
		if len(t.buffer) > n {
			t.buffer = t.buffer[len(t.buffer)-n:]
		}
	}

	for sub := range t.subs {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscriber behind, dropping event", "topic", name, "version", event.Version)
		}
	}
	return nil
}

// Close shuts down the publisher and every subscription.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			close(sub.events)
		}
		t.subs = make(map[*sseSubscription]struct{})
	}
	return nil
}

// unsubscribe removes the subscription from its topic. It reports whether the
// subscription was still registered; the caller that removed it owns closing
// the channel, so it is closed exactly once even when a subscriber Close races
// with publisher Close.
func (p *SSEPublisher) unsubscribe(sub *sseSubscription) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.topics[sub.topic]
	if t == nil {
		return false
	}
	if _, ok := t.subs[sub]; !ok {
		return false
	}
	delete(t.subs, sub)
	return true
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	closed    bool
	mu        sync.Mutex
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

func (s *sseSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.publisher.unsubscribe(s) {
		close(s.events)
	}
	return nil
}

// WriteSSE writes one event in wire format: "data: {json}\n\n".
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
