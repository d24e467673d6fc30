// Package eventbus is the transport-neutral surface the relay and the
// consumers use. Adapters live in pkg/pubsub and pkg/kafka.
package eventbus

import (
	"context"
	"time"
)

// Attribute keys set on every published domain event.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
	AttrPartitionKey  = "partition_key"
	AttrCreatedAt     = "created_at"
)

// Message is a single delivery. Key is the partition/ordering key; messages
// sharing a key are delivered in publish order.
type Message struct {
	ID          string
	Topic       string
	Key         string
	Data        []byte
	Attributes  map[string]string
	PublishTime time.Time
	// DeliveryAttempt starts at 1 and is 0 when the transport does not track it.
	DeliveryAttempt int
}

// Attr returns the named attribute or "".
func (m *Message) Attr(key string) string {
	if m == nil || m.Attributes == nil {
		return ""
	}
	return m.Attributes[key]
}

type Result int

const (
	Ack Result = iota
	Nack
)

func (r Result) String() string {
	if r == Nack {
		return "nack"
	}
	return "ack"
}

// Handler processes one message and decides its fate.
type Handler func(ctx context.Context, msg *Message) Result

// Subscription names a durable consumer position on a topic. On Pub/Sub Name
// is the subscription id; on Kafka it becomes the consumer group suffix.
type Subscription struct {
	Topic string
	Name  string
}

type Publisher interface {
	// Publish blocks until the transport acknowledges the message and returns
	// its transport id.
	Publish(ctx context.Context, msg *Message) (string, error)
}

type Subscriber interface {
	// Subscribe delivers messages to handler until ctx is canceled.
	Subscribe(ctx context.Context, sub Subscription, handler Handler) error
}

// Bus is implemented by every transport adapter.
type Bus interface {
	Publisher
	Subscriber
	Ping(ctx context.Context) error
	Close() error
}
