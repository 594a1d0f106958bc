package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// SchemaVersion is bumped when the envelope changes incompatibly.
const SchemaVersion = 1

// Origin identifies the client invocation an event was raised by.
type Origin struct {
	Source        string
	DeviceID      string
	CorrelationID string
	UserID        string
}

// Event is the envelope of every message the client publishes. Key is the
// customer or cart id the event is about and doubles as the partition key, so
// one customer's events stay ordered.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Key           string          `json:"key"`
	SchemaVersion int             `json:"schema_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Source        string          `json:"source"`
	DeviceID      string          `json:"device_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent builds an event of eventType about key, stamped with origin.
func NewEvent(eventType, key string, origin Origin, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Key:           key,
		SchemaVersion: SchemaVersion,
		OccurredAt:    time.Now().UTC(),
		Source:        origin.Source,
		DeviceID:      origin.DeviceID,
		CorrelationID: origin.CorrelationID,
		UserID:        origin.UserID,
		Data:          payload,
	}, nil
}

// Headers returns the message headers consumers route on without decoding
// the body. Empty ids are left out.
func (e *Event) Headers() []kafka.Header {
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(e.Type)},
		{Key: "source", Value: []byte(e.Source)},
	}
	for _, h := range []struct{ key, value string }{
		{"correlation_id", e.CorrelationID},
		{"device_id", e.DeviceID},
	} {
		if h.value != "" {
			headers = append(headers, kafka.Header{Key: h.key, Value: []byte(h.value)})
		}
	}
	return headers
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
