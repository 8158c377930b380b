package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of change an event describes.
type EventType string

const (
	EventTypeDealCreation          EventType = "deal.creation"
	EventTypeDealPropertyChange    EventType = "deal.propertyChange"
	EventTypeCompanyPropertyChange EventType = "company.propertyChange"
	EventTypeContactPropertyChange EventType = "contact.propertyChange"
	EventTypeNoteCreation          EventType = "note.creation"
)

// Source identifies the system that produced an event.
type Source string

const (
	SourceHubSpot   Source = "hubspot"
	SourceAWS       Source = "aws"
	SourceMicrosoft Source = "microsoft"
	SourceGCP       Source = "gcp"
)

// ValidSources lists every source the pipeline accepts.
var ValidSources = []Source{SourceHubSpot, SourceAWS, SourceMicrosoft, SourceGCP}

// ParseSource converts a raw string (e.g. a webhook path segment) into a Source.
func ParseSource(raw string) (Source, error) {
	s := Source(raw)
	for _, v := range ValidSources {
		if s == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown event source %q", raw)
}

// Event is the canonical representation of "something changed", independent
// of which external system produced it. It is immutable once constructed
// except for AttemptCount, which the router increments once per delivery.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     EventType         `json:"event_type"`
	Source        Source            `json:"event_source"`
	Timestamp     time.Time         `json:"timestamp"`
	ObjectID      string            `json:"object_id"`
	ObjectType    string            `json:"object_type"`
	Properties    map[string]string `json:"properties,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	AttemptCount  int               `json:"attempt_count"`
}

// NewEvent creates a canonical event, generating the event and correlation
// IDs when absent.
func NewEvent(eventType EventType, source Source, objectID, objectType string, properties map[string]string) *Event {
	if properties == nil {
		properties = make(map[string]string)
	}
	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		ObjectID:      objectID,
		ObjectType:    objectType,
		Properties:    properties,
		CorrelationID: uuid.NewString(),
	}
}

// OrderingKey returns the queue ordering key: all events for one entity are
// delivered strictly in enqueue order relative to each other.
func (e *Event) OrderingKey() string {
	return e.ObjectID
}

// DedupKey returns the queue deduplication key, collapsing duplicate
// enqueues of the same event within the dedup window.
func (e *Event) DedupKey() string {
	return e.EventID
}

// Marshal serializes the event for the queue message body.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes a queue message body into an Event.
func UnmarshalEvent(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("decode canonical event: %w", err)
	}
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	return &e, nil
}

// objectTypeFor derives the object type from a webhook subscription type,
// e.g. "deal.propertyChange" -> "deal".
func objectTypeFor(subscriptionType string) string {
	for _, t := range []string{"company", "contact", "note", "engagement"} {
		if len(subscriptionType) >= len(t) && subscriptionType[:len(t)] == t {
			return t
		}
	}
	return "deal"
}

// subscriptionTypeMap converts provider subscription types to event types.
var subscriptionTypeMap = map[string]EventType{
	"deal.creation":          EventTypeDealCreation,
	"deal.propertyChange":    EventTypeDealPropertyChange,
	"company.propertyChange": EventTypeCompanyPropertyChange,
	"contact.propertyChange": EventTypeContactPropertyChange,
	"note.creation":          EventTypeNoteCreation,
}

// EventFromWebhook converts one provider webhook item into a canonical
// event. Unknown subscription types default to deal.propertyChange so a new
// provider subscription never breaks ingestion.
func EventFromWebhook(source Source, subscriptionType, objectID string, properties map[string]string, correlationID string) *Event {
	eventType, ok := subscriptionTypeMap[subscriptionType]
	if !ok {
		eventType = EventTypeDealPropertyChange
	}
	if properties == nil {
		properties = make(map[string]string)
	}
	properties["subscriptionType"] = subscriptionType

	e := NewEvent(eventType, source, objectID, objectTypeFor(subscriptionType), properties)
	if correlationID != "" {
		e.CorrelationID = correlationID
	}
	return e
}
