package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry stores versioned payload decoders for consumers.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

// NewDecoderRegistry builds an empty decoder registry.
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// DefaultDecoders registers the v1 payload of every event type.
func DefaultDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventConnectionRequested, 1, decodeInto[payloads.ConnectionRequestedEvent])
	reg.Register(enums.EventConnectionAccepted, 1, decodeInto[payloads.ConnectionAcceptedEvent])
	reg.Register(enums.EventPostCreated, 1, decodeInto[payloads.PostCreatedEvent])
	reg.Register(enums.EventPostLiked, 1, decodeInto[payloads.PostLikedEvent])
	reg.Register(enums.EventUserCreated, 1, decodeInto[payloads.UserCreatedEvent])
	return reg
}

func decodeInto[T any](payload json.RawMessage) (interface{}, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register stores a decoder for the given event type and version.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

// Decode runs the decoder registered for the event type and version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decoder(payload)
}
