package gate

import "github.com/google/uuid"

// EventTypeStoryPublished is the outbox event type written on a successful
// transition. Consumers match on the versioned name.
const EventTypeStoryPublished = "story.published.v1"

// EventVersion is the payload schema version carried on every event row.
const EventVersion = "v1"

// EventIDGenerator produces unique, time-ordered event identifiers. Injected
// so tests can fix IDs and deployments can swap the scheme.
type EventIDGenerator interface {
	NewEventID() (string, error)
}

// UUIDv7Generator issues UUIDv7 identifiers, which sort by creation time.
type UUIDv7Generator struct{}

func (UUIDv7Generator) NewEventID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
