// Verification task queries — review work items attached to claims.
package db

import (
	"database/sql"
	"fmt"
	"time"
)

type VerificationTask struct {
	TaskID    string    `json:"task_id"`
	ClaimID   string    `json:"claim_id"`
	Status    string    `json:"status"`
	Assignee  *string   `json:"assignee,omitempty"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// taskTransitions defines the allowed status flow for verification tasks.
var taskTransitions = map[string][]string{
	"open":      {"in_review", "done"},
	"in_review": {"done", "open"},
	"done":      {},
}

func scanTask(s interface{ Scan(...any) error }) (*VerificationTask, error) {
	t := &VerificationTask{}
	var assignee, note sql.NullString
	err := s.Scan(&t.TaskID, &t.ClaimID, &t.Status, &assignee, &note, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if assignee.Valid {
		t.Assignee = &assignee.String
	}
	if note.Valid {
		t.Note = &note.String
	}
	return t, nil
}

const taskColumns = `task_id, claim_id, status, assignee, note, created_at, updated_at`

// CreateTask opens a verification task for a claim.
func (db *DB) CreateTask(claimID string, assignee *string) (*VerificationTask, error) {
	id := NewID()
	_, err := db.Exec(`
		INSERT INTO verification_tasks (task_id, claim_id, status, assignee)
		VALUES (?, ?, 'open', ?)`, id, claimID, assignee)
	if err != nil {
		return nil, fmt.Errorf("inserting task: %w", err)
	}
	return db.GetTask(id)
}

func (db *DB) GetTask(taskID string) (*VerificationTask, error) {
	return scanTask(db.QueryRow(`SELECT `+taskColumns+` FROM verification_tasks WHERE task_id = ?`, taskID))
}

// ListTasks returns tasks filtered by status when non-empty, oldest first.
func (db *DB) ListTasks(status string, limit int) ([]*VerificationTask, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + taskColumns + ` FROM verification_tasks`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*VerificationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// TransitionTask moves a task to a new status, enforcing the allowed flow.
// An optional note is recorded alongside the transition.
func (db *DB) TransitionTask(taskID, newStatus string, note *string) (*VerificationTask, error) {
	task, err := db.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, s := range taskTransitions[task.Status] {
		if s == newStatus {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("invalid transition %s -> %s", task.Status, newStatus)
	}

	if note != nil {
		_, err = db.Exec(`
			UPDATE verification_tasks SET status = ?, note = ?, updated_at = datetime('now')
			WHERE task_id = ?`, newStatus, *note, taskID)
	} else {
		_, err = db.Exec(`
			UPDATE verification_tasks SET status = ?, updated_at = datetime('now')
			WHERE task_id = ?`, newStatus, taskID)
	}
	if err != nil {
		return nil, err
	}
	return db.GetTask(taskID)
}
