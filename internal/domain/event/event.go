package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents something that happened to an expense sheet.
// Events are built inside a transaction and dispatched after it commits.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	SheetID       int64                  `json:"sheet_id"`
	ActorID       int64                  `json:"actor_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, sheetID, actorID int64, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		SheetID:       sheetID,
		ActorID:       actorID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
}

// WithCorrelation returns a copy of the event linked to a correlation chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	cp := *e
	cp.CorrelationID = correlationID
	return &cp
}

// WithPayload returns a new Event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
