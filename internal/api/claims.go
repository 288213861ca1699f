package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/newsgate/internal/db"
	"github.com/hazyhaar/newsgate/internal/extract"
)

// handleExtract runs heuristic claim extraction against a story version.
// POST /v1/story/{story_id}/extract
// {"story_version_id": "optional, default latest", "max_claims": 200}
func (a *API) handleExtract(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	storyID := r.PathValue("story_id")

	var req struct {
		StoryVersionID string `json:"story_version_id"`
		MaxClaims      int    `json:"max_claims"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req)
	}

	if _, err := a.db.GetStory(storyID); errors.Is(err, sql.ErrNoRows) {
		jsonCoded(w, http.StatusNotFound, "not_found", "story not found", nil)
		return
	} else if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	versionID := req.StoryVersionID
	if versionID == "" {
		var err error
		versionID, err = a.db.LatestVersionID(storyID)
		if errors.Is(err, sql.ErrNoRows) {
			jsonCoded(w, http.StatusNotFound, "not_found", "story has no versions", nil)
			return
		} else if err != nil {
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	job, extracted, err := extract.Run(a.db, a.classifier, a.platformID, storyID, versionID, req.MaxClaims)
	if err != nil {
		slog.Error("claim extraction failed", "story_id", storyID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusAccepted, map[string]any{
		"job_id":          job.JobID,
		"claims_extracted": len(extracted),
	})
}

// handleListClaims lists a story's claims, oldest first.
func (a *API) handleListClaims(w http.ResponseWriter, r *http.Request) {
	storyID := r.PathValue("story_id")

	items, err := a.db.ClaimsByStory(storyID)
	if err != nil {
		slog.Error("listing claims failed", "story_id", storyID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*db.Claim{}
	}
	jsonResp(w, http.StatusOK, map[string]any{"items": items})
}

// handleSetClaimStatus updates a claim's support status after review.
func (a *API) handleSetClaimStatus(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	claimID := r.PathValue("claim_id")

	var req struct {
		SupportStatus string `json:"support_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	switch req.SupportStatus {
	case "unsupported", "partially_supported", "supported", "contradicted":
	default:
		jsonError(w, "invalid support_status", http.StatusBadRequest)
		return
	}

	err := a.db.SetSupportStatus(claimID, req.SupportStatus)
	if errors.Is(err, sql.ErrNoRows) {
		jsonCoded(w, http.StatusNotFound, "not_found", "claim not found", nil)
		return
	}
	if err != nil {
		slog.Error("updating claim status failed", "claim_id", claimID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	claim, err := a.db.GetClaim(claimID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, claim)
}

// handleCreateCorrection appends a correction to a claim.
func (a *API) handleCreateCorrection(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	claimID := r.PathValue("claim_id")

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		jsonError(w, "reason is required", http.StatusBadRequest)
		return
	}

	if _, err := a.db.GetClaim(claimID); errors.Is(err, sql.ErrNoRows) {
		jsonCoded(w, http.StatusNotFound, "not_found", "claim not found", nil)
		return
	} else if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	correction, err := a.db.CreateCorrection(a.platformID, claimID, req.Reason)
	if err != nil {
		slog.Error("creating correction failed", "claim_id", claimID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusCreated, correction)
}
