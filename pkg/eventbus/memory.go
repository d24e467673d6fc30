package eventbus

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Bus. Every subscription on a topic receives every
// message once; a Nack redelivers immediately up to MaxAttempts times. It is
// meant for tests and local wiring, not for production traffic.
type Memory struct {
	MaxAttempts int

	mu     sync.Mutex
	seq    int
	subs   map[string][]chan *Message
	closed bool
}

func NewMemory() *Memory {
	return &Memory{MaxAttempts: 3, subs: make(map[string][]chan *Message)}
}

func (m *Memory) Publish(ctx context.Context, msg *Message) (string, error) {
	if msg == nil {
		return "", errors.New("message required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", errors.New("bus closed")
	}
	m.seq++
	id := strconv.Itoa(m.seq)
	for _, ch := range m.subs[msg.Topic] {
		copied := *msg
		copied.ID = id
		copied.PublishTime = time.Now().UTC()
		select {
		case ch <- &copied:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return id, nil
}

// Subscribe blocks until ctx is canceled. Messages published before the
// subscription registers are not delivered to it; tests wait on Subscribers.
func (m *Memory) Subscribe(ctx context.Context, sub Subscription, handler Handler) error {
	ch := m.register(sub.Topic)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			attempts := m.MaxAttempts
			if attempts <= 0 {
				attempts = 1
			}
			for attempt := 1; attempt <= attempts; attempt++ {
				msg.DeliveryAttempt = attempt
				if handler(ctx, msg) == Ack {
					break
				}
			}
		}
	}
}

func (m *Memory) register(topic string) chan *Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *Message, 64)
	m.subs[topic] = append(m.subs[topic], ch)
	return ch
}

// Subscribers reports how many subscriptions are registered on topic.
func (m *Memory) Subscribers(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[topic])
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
