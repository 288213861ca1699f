// Story and story-version queries — draft creation, immutable version append,
// feed listing, and detail reads for the publish pipeline.
package db

import (
	"fmt"
	"time"
)

type Story struct {
	StoryID    string    `json:"story_id"`
	PlatformID string    `json:"platform_id"`
	Title      string    `json:"title"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type StoryVersion struct {
	StoryVersionID string    `json:"story_version_id"`
	StoryID        string    `json:"story_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

const storyColumns = `story_id, platform_id, title, state, created_at, updated_at`

func scanStory(s interface{ Scan(...any) error }) (*Story, error) {
	st := &Story{}
	err := s.Scan(&st.StoryID, &st.PlatformID, &st.Title, &st.State, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// CreateStory inserts a new story in draft state.
func (db *DB) CreateStory(platformID, title string) (*Story, error) {
	id := NewID()
	_, err := db.Exec(`
		INSERT INTO stories (story_id, platform_id, title, state)
		VALUES (?, ?, ?, 'draft')`, id, platformID, title)
	if err != nil {
		return nil, fmt.Errorf("inserting story: %w", err)
	}
	return db.GetStory(id)
}

func (db *DB) GetStory(storyID string) (*Story, error) {
	return scanStory(db.QueryRow(`SELECT `+storyColumns+` FROM stories WHERE story_id = ?`, storyID))
}

// ListStories returns feed entries for a platform, newest-updated first.
// state filters when non-empty; limit is clamped to 1..200 (default 50).
func (db *DB) ListStories(platformID, state string, limit int) ([]*Story, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `SELECT ` + storyColumns + ` FROM stories WHERE platform_id = ?`
	args := []any{platformID}
	if state != "" {
		query += ` AND state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Story
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, st)
	}
	return results, rows.Err()
}

// CreateVersion appends an immutable version to a story.
func (db *DB) CreateVersion(storyID, body string) (*StoryVersion, error) {
	id := NewID()
	_, err := db.Exec(`
		INSERT INTO story_versions (story_version_id, story_id, body)
		VALUES (?, ?, ?)`, id, storyID, body)
	if err != nil {
		return nil, fmt.Errorf("inserting story version: %w", err)
	}
	// updated_at drives feed ordering
	_, err = db.Exec(`UPDATE stories SET updated_at = datetime('now') WHERE story_id = ?`, storyID)
	if err != nil {
		return nil, fmt.Errorf("touching story: %w", err)
	}
	return db.GetVersion(id)
}

func (db *DB) GetVersion(versionID string) (*StoryVersion, error) {
	v := &StoryVersion{}
	err := db.QueryRow(`
		SELECT story_version_id, story_id, body, created_at
		FROM story_versions WHERE story_version_id = ?`, versionID).Scan(
		&v.StoryVersionID, &v.StoryID, &v.Body, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListVersions returns a story's versions, newest first.
func (db *DB) ListVersions(storyID string) ([]*StoryVersion, error) {
	rows, err := db.Query(`
		SELECT story_version_id, story_id, body, created_at
		FROM story_versions WHERE story_id = ?
		ORDER BY created_at DESC, story_version_id DESC`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*StoryVersion
	for rows.Next() {
		v := &StoryVersion{}
		if err := rows.Scan(&v.StoryVersionID, &v.StoryID, &v.Body, &v.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// LatestVersionID returns the most recently created version for a story.
// sql.ErrNoRows when the story has no versions at all.
func (db *DB) LatestVersionID(storyID string) (string, error) {
	var id string
	err := db.QueryRow(`
		SELECT story_version_id FROM story_versions
		WHERE story_id = ?
		ORDER BY created_at DESC, story_version_id DESC
		LIMIT 1`, storyID).Scan(&id)
	return id, err
}
