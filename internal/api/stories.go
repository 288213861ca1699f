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

// handleFeed lists stories for the platform, newest-updated first.
// GET /v1/feed?state=published&limit=50
func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	switch state {
	case "", "draft", "review", "published":
	default:
		state = ""
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	stories, err := a.db.ListStories(a.platformID, state, limit)
	if err != nil {
		slog.Error("feed query failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if stories == nil {
		stories = []*db.Story{}
	}
	jsonResp(w, http.StatusOK, map[string]any{"items": stories})
}

// handleCreateStory creates a draft story. Auth required.
func (a *API) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		jsonError(w, "title is required", http.StatusBadRequest)
		return
	}

	story, err := a.db.CreateStory(a.platformID, req.Title)
	if err != nil {
		slog.Error("creating story failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Optional initial version in the same request.
	if req.Body != "" {
		if _, err := a.db.CreateVersion(story.StoryID, req.Body); err != nil {
			slog.Error("creating initial version failed", "story_id", story.StoryID, "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	jsonResp(w, http.StatusCreated, story)
}

// handleGetStory returns a story with versions, claims, normalized evidence
// edges, and corrections.
func (a *API) handleGetStory(w http.ResponseWriter, r *http.Request) {
	storyID := r.PathValue("story_id")

	story, err := a.db.GetStory(storyID)
	if errors.Is(err, sql.ErrNoRows) {
		jsonCoded(w, http.StatusNotFound, "not_found", "story not found", nil)
		return
	}
	if err != nil {
		slog.Error("loading story failed", "story_id", storyID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	versions, err := a.db.ListVersions(storyID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	claims, err := a.db.ClaimsByStory(storyID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	edges, err := a.db.EdgesByStory(storyID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	corrections, err := a.db.CorrectionsByStory(a.platformID, storyID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	jsonResp(w, http.StatusOK, map[string]any{
		"story":          story,
		"versions":       versions,
		"claims":         claims,
		"evidence_edges": edges,
		"corrections":    corrections,
	})
}

// handleCreateVersion appends an immutable version to a story.
func (a *API) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	storyID := r.PathValue("story_id")
	if _, err := a.db.GetStory(storyID); errors.Is(err, sql.ErrNoRows) {
		jsonCoded(w, http.StatusNotFound, "not_found", "story not found", nil)
		return
	} else if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Body == "" {
		jsonError(w, "body is required", http.StatusBadRequest)
		return
	}

	version, err := a.db.CreateVersion(storyID, req.Body)
	if err != nil {
		slog.Error("creating version failed", "story_id", storyID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusCreated, version)
}
