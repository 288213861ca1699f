// Claim queries — per-version claim storage, support-status updates,
// corrections, and extraction job records.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Claim struct {
	ClaimID        string    `json:"claim_id"`
	StoryID        string    `json:"story_id"`
	StoryVersionID string    `json:"story_version_id"`
	ClaimType      string    `json:"claim_type"`
	Text           string    `json:"text"`
	Entities       []string  `json:"entities"`
	SupportStatus  string    `json:"support_status"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateClaimInput struct {
	StoryID        string   `json:"story_id"`
	StoryVersionID string   `json:"story_version_id"`
	ClaimType      string   `json:"claim_type"`
	Text           string   `json:"text"`
	Entities       []string `json:"entities"`
}

const claimColumns = `claim_id, story_id, story_version_id, claim_type, text, entities, support_status, created_at`

func scanClaim(s interface{ Scan(...any) error }) (*Claim, error) {
	c := &Claim{}
	var entities string
	err := s.Scan(&c.ClaimID, &c.StoryID, &c.StoryVersionID, &c.ClaimType, &c.Text,
		&entities, &c.SupportStatus, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(entities), &c.Entities); err != nil {
		c.Entities = nil
	}
	if c.Entities == nil {
		c.Entities = []string{}
	}
	return c, nil
}

// CreateClaim inserts a claim bound to one story version. Membership is
// immutable; there is no update path for story_id/story_version_id.
func (db *DB) CreateClaim(input CreateClaimInput) (*Claim, error) {
	id := NewID()
	entities := input.Entities
	if entities == nil {
		entities = []string{}
	}
	entJSON, err := json.Marshal(entities)
	if err != nil {
		return nil, fmt.Errorf("encoding entities: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO claims (claim_id, story_id, story_version_id, claim_type, text, entities)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, input.StoryID, input.StoryVersionID, input.ClaimType, input.Text, string(entJSON))
	if err != nil {
		return nil, fmt.Errorf("inserting claim: %w", err)
	}
	return db.GetClaim(id)
}

func (db *DB) GetClaim(claimID string) (*Claim, error) {
	return scanClaim(db.QueryRow(`SELECT `+claimColumns+` FROM claims WHERE claim_id = ?`, claimID))
}

// ClaimsByStory returns all claims for a story, oldest first.
func (db *DB) ClaimsByStory(storyID string) ([]*Claim, error) {
	rows, err := db.Query(`SELECT `+claimColumns+` FROM claims WHERE story_id = ? ORDER BY created_at ASC, claim_id ASC`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClaimRows(rows)
}

// ClaimsByVersion returns claims belonging to one version snapshot.
func (db *DB) ClaimsByVersion(versionID string) ([]*Claim, error) {
	rows, err := db.Query(`SELECT `+claimColumns+` FROM claims WHERE story_version_id = ? ORDER BY created_at ASC, claim_id ASC`, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClaimRows(rows)
}

func scanClaimRows(rows *sql.Rows) ([]*Claim, error) {
	var results []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// SetSupportStatus updates a claim's support status after review.
func (db *DB) SetSupportStatus(claimID, status string) error {
	res, err := db.Exec(`UPDATE claims SET support_status = ? WHERE claim_id = ?`, status, claimID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- Corrections ---

type Correction struct {
	CorrectionID string    `json:"correction_id"`
	PlatformID   string    `json:"platform_id"`
	ClaimID      string    `json:"claim_id"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

func (db *DB) CreateCorrection(platformID, claimID, reason string) (*Correction, error) {
	id := NewID()
	_, err := db.Exec(`
		INSERT INTO corrections (correction_id, platform_id, claim_id, reason)
		VALUES (?, ?, ?, ?)`, id, platformID, claimID, reason)
	if err != nil {
		return nil, fmt.Errorf("inserting correction: %w", err)
	}
	c := &Correction{}
	err = db.QueryRow(`
		SELECT correction_id, platform_id, claim_id, reason, created_at
		FROM corrections WHERE correction_id = ?`, id).Scan(
		&c.CorrectionID, &c.PlatformID, &c.ClaimID, &c.Reason, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CorrectionsByStory returns corrections for all claims of a story, oldest first.
func (db *DB) CorrectionsByStory(platformID, storyID string) ([]*Correction, error) {
	rows, err := db.Query(`
		SELECT correction_id, platform_id, claim_id, reason, created_at
		FROM corrections
		WHERE platform_id = ?
		  AND claim_id IN (SELECT claim_id FROM claims WHERE story_id = ?)
		ORDER BY created_at ASC`, platformID, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Correction
	for rows.Next() {
		c := &Correction{}
		if err := rows.Scan(&c.CorrectionID, &c.PlatformID, &c.ClaimID, &c.Reason, &c.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// --- Extraction jobs ---

type ExtractionJob struct {
	JobID          string    `json:"job_id"`
	PlatformID     string    `json:"platform_id"`
	StoryID        string    `json:"story_id"`
	StoryVersionID string    `json:"story_version_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func (db *DB) CreateExtractionJob(platformID, storyID, versionID string) (*ExtractionJob, error) {
	id := NewID()
	_, err := db.Exec(`
		INSERT INTO extraction_jobs (job_id, platform_id, story_id, story_version_id, status)
		VALUES (?, ?, ?, ?, 'pending')`, id, platformID, storyID, versionID)
	if err != nil {
		return nil, fmt.Errorf("inserting extraction job: %w", err)
	}
	return db.GetExtractionJob(id)
}

func (db *DB) GetExtractionJob(jobID string) (*ExtractionJob, error) {
	j := &ExtractionJob{}
	err := db.QueryRow(`
		SELECT job_id, platform_id, story_id, story_version_id, status, created_at
		FROM extraction_jobs WHERE job_id = ?`, jobID).Scan(
		&j.JobID, &j.PlatformID, &j.StoryID, &j.StoryVersionID, &j.Status, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (db *DB) SetExtractionJobStatus(jobID, status string) error {
	_, err := db.Exec(`UPDATE extraction_jobs SET status = ? WHERE job_id = ?`, status, jobID)
	return err
}
