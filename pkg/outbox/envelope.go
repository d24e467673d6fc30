package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events and
// carried verbatim as the message body on the bus.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a message body into an envelope and validates the
// event id.
func DecodeEnvelope(body []byte) (PayloadEnvelope, uuid.UUID, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return PayloadEnvelope{}, uuid.Nil, err
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return envelope, uuid.Nil, err
	}
	return envelope, eventID, nil
}
