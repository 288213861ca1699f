package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hazyhaar/newsgate/internal/db"
)

// handleCreateTask opens a verification task for a claim.
// POST /v1/task  {"claim_id": "...", "assignee": "optional-handle"}
func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		ClaimID  string  `json:"claim_id"`
		Assignee *string `json:"assignee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ClaimID == "" {
		jsonError(w, "claim_id is required", http.StatusBadRequest)
		return
	}

	if _, err := a.db.GetClaim(req.ClaimID); errors.Is(err, sql.ErrNoRows) {
		jsonCoded(w, http.StatusNotFound, "not_found", "claim not found", nil)
		return
	} else if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	task, err := a.db.CreateTask(req.ClaimID, req.Assignee)
	if err != nil {
		slog.Error("creating task failed", "claim_id", req.ClaimID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusCreated, task)
}

// handleListTasks lists verification tasks, optionally by status.
// GET /v1/tasks?status=open&limit=50
func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", "open", "in_review", "done":
	default:
		jsonError(w, "invalid status", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	tasks, err := a.db.ListTasks(status, limit)
	if err != nil {
		slog.Error("listing tasks failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*db.VerificationTask{}
	}
	jsonResp(w, http.StatusOK, map[string]any{"items": tasks})
}

// handleTransitionTask moves a task along open -> in_review -> done.
// POST /v1/task/{task_id}/transition  {"status": "done", "note": "optional"}
func (a *API) handleTransitionTask(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	taskID := r.PathValue("task_id")

	var req struct {
		Status string  `json:"status"`
		Note   *string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := a.db.GetTask(taskID); errors.Is(err, sql.ErrNoRows) {
		jsonCoded(w, http.StatusNotFound, "not_found", "task not found", nil)
		return
	} else if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	task, err := a.db.TransitionTask(taskID, req.Status, req.Note)
	if err != nil {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	jsonResp(w, http.StatusOK, task)
}
