package gate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/newsgate/internal/db"
)

// ErrNotFound is returned when the story, or its target version, does not
// exist.
var ErrNotFound = errors.New("story not found")

// ErrAlreadyPublished is the idempotent conflict: the story reached the
// published state before this attempt. Not a fault; nothing changed.
var ErrAlreadyPublished = errors.New("story already published")

// GateFailedError is the business-rule rejection. It carries the computed
// metrics and the thresholds applied so the caller can see exactly which
// predicate failed.
type GateFailedError struct {
	Metrics    *Metrics
	Thresholds Thresholds
}

func (e *GateFailedError) Error() string {
	return fmt.Sprintf("publish gate failed: ratio=%.2f share=%.2f contradicted=%d corroboration_ok=%v",
		e.Metrics.PrimaryEvidenceRatio, e.Metrics.UnsupportedClaimShare,
		e.Metrics.ContradictedClaims, e.Metrics.CorroborationOK)
}

// Result is the success outcome of EvaluateAndPublish.
type Result struct {
	StoryID        string   `json:"story_id"`
	State          string   `json:"state"`
	StoryVersionID string   `json:"story_version_id"`
	Metrics        *Metrics `json:"metrics"`
}

// Publisher orchestrates the publish transition: lock, aggregate, decide,
// mutate, and enqueue the outbox event as one atomic unit.
type Publisher struct {
	db         *db.DB
	platformID string
	scope      string
	thresholds Thresholds
	classifier Classifier
	eventIDs   EventIDGenerator
}

func NewPublisher(database *db.DB, platformID, scope string, thresholds Thresholds) *Publisher {
	return &Publisher{
		db:         database,
		platformID: platformID,
		scope:      scope,
		thresholds: thresholds,
		classifier: LexiconClassifier{},
		eventIDs:   UUIDv7Generator{},
	}
}

// SetClassifier overrides the default lexicon classifier.
func (p *Publisher) SetClassifier(c Classifier) {
	p.classifier = c
}

// SetEventIDGenerator overrides the default UUIDv7 event ID generator.
func (p *Publisher) SetEventIDGenerator(g EventIDGenerator) {
	p.eventIDs = g
}

// Thresholds returns the thresholds this publisher applies.
func (p *Publisher) Thresholds() Thresholds {
	return p.thresholds
}

// EvaluateAndPublish evaluates the gate for one story version and, on pass,
// flips the story to published and enqueues the story.published.v1 event,
// committed together. versionID may be empty to target the latest version.
//
// Outcomes: (*Result, nil) on success; ErrNotFound; ErrAlreadyPublished;
// *GateFailedError; any other error is an internal fault with the
// transaction rolled back.
func (p *Publisher) EvaluateAndPublish(ctx context.Context, storyID, versionID string) (*Result, error) {
	// SQLITE_BUSY retry: each attempt is a whole fresh transaction.
	const maxRetries = 5
	var res *Result
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err = p.publishOnce(ctx, storyID, versionID)
		if err == nil || !isBusy(err) {
			return res, err
		}
		select {
		case <-time.After(time.Duration(10*(attempt+1)) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, err
}

func (p *Publisher) publishOnce(ctx context.Context, storyID, versionID string) (*Result, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Re-read state under the transaction's writer lock. A racer that lost
	// observes the committed published state here.
	var state string
	err = tx.QueryRow(`SELECT state FROM stories WHERE story_id = ? AND platform_id = ?`,
		storyID, p.platformID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading story state: %w", err)
	}
	if state == "published" {
		return nil, ErrAlreadyPublished
	}

	if versionID == "" {
		err = tx.QueryRow(`
			SELECT story_version_id FROM story_versions
			WHERE story_id = ?
			ORDER BY created_at DESC, story_version_id DESC
			LIMIT 1`, storyID).Scan(&versionID)
		if errors.Is(err, sql.ErrNoRows) {
			// A story with no versions at all has nothing to evaluate.
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("resolving latest version: %w", err)
		}
	} else {
		var one int
		err = tx.QueryRow(`SELECT 1 FROM story_versions WHERE story_version_id = ? AND story_id = ?`,
			versionID, storyID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("resolving version: %w", err)
		}
	}

	metrics, err := Aggregate(tx, versionID, p.classifier)
	if err != nil {
		return nil, fmt.Errorf("aggregating metrics: %w", err)
	}

	if !Decide(metrics, p.thresholds) {
		return nil, &GateFailedError{Metrics: metrics, Thresholds: p.thresholds}
	}

	// Compare-and-swap guard: the state predicate makes the flip a no-op if
	// anything published this story since the read above.
	upd, err := tx.Exec(`
		UPDATE stories SET state = 'published', updated_at = datetime('now')
		WHERE story_id = ? AND platform_id = ? AND state != 'published'`,
		storyID, p.platformID)
	if err != nil {
		return nil, fmt.Errorf("updating story state: %w", err)
	}
	n, err := upd.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return nil, ErrAlreadyPublished
	}

	eventID, err := p.eventIDs.NewEventID()
	if err != nil {
		return nil, fmt.Errorf("generating event id: %w", err)
	}
	payload, err := json.Marshal(map[string]string{
		"story_id":          storyID,
		"story_version_id":  versionID,
		"publication_scope": p.scope,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	if err := db.AppendOutboxEventTx(tx, &db.OutboxEvent{
		EventID:      eventID,
		PlatformID:   p.platformID,
		StoryID:      storyID,
		EventType:    EventTypeStoryPublished,
		EventVersion: EventVersion,
		Payload:      payload,
	}); err != nil {
		return nil, fmt.Errorf("appending outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing publish: %w", err)
	}

	return &Result{
		StoryID:        storyID,
		State:          "published",
		StoryVersionID: versionID,
		Metrics:        metrics,
	}, nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
