// Event outbox — append-only rows written inside the publish transaction.
// Delivery and consumer cursors belong to the external relay.
package db

import (
	"database/sql"
	"encoding/json"
	"time"
)

type OutboxEvent struct {
	EventID      string          `json:"event_id"`
	PlatformID   string          `json:"platform_id"`
	StoryID      string          `json:"story_id"`
	EventType    string          `json:"event_type"`
	EventVersion string          `json:"event_version"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AppendOutboxEventTx inserts one event row within the caller's transaction.
// The unique (story_id, event_type) index acts as the idempotency key: a
// second publish of the same story cannot enqueue a duplicate even if the
// state guard were bypassed.
func AppendOutboxEventTx(tx *sql.Tx, e *OutboxEvent) error {
	_, err := tx.Exec(`
		INSERT INTO event_outbox (event_id, platform_id, story_id, event_type, event_version, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, e.PlatformID, e.StoryID, e.EventType, e.EventVersion, string(e.Payload))
	return err
}

// ListOutboxEvents returns queued events for a platform in event_id order.
// Read-only inspection surface; rows are never mutated here.
func (db *DB) ListOutboxEvents(platformID string, limit int) ([]*OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT event_id, platform_id, story_id, event_type, event_version, payload, created_at
		FROM event_outbox WHERE platform_id = ?
		ORDER BY event_id ASC
		LIMIT ?`, platformID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		var payload []byte
		if err := rows.Scan(&e.EventID, &e.PlatformID, &e.StoryID, &e.EventType,
			&e.EventVersion, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		results = append(results, e)
	}
	return results, rows.Err()
}

// CountOutboxEventsForStory returns how many events exist for one story.
func (db *DB) CountOutboxEventsForStory(storyID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM event_outbox WHERE story_id = ?`, storyID).Scan(&n)
	return n, err
}
