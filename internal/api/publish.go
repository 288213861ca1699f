package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/newsgate/internal/auth"
	"github.com/hazyhaar/newsgate/internal/gate"
)

// handlePublish runs the publish gate for one story.
// POST /v1/story/{story_id}/publish  {"story_version_id": "optional"}
//
// Outcome mapping: success 200, not_found 404, already_published 409,
// publish_gate_failed 409 (with metrics + thresholds), internal 500.
func (a *API) handlePublish(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if !auth.CanPublish(claims.Role) {
		jsonError(w, "editor role required", http.StatusForbidden)
		return
	}

	storyID := r.PathValue("story_id")

	var req struct {
		StoryVersionID string `json:"story_version_id"`
	}
	// Body is optional; an empty body targets the latest version.
	if r.Body != nil {
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req)
	}

	result, err := a.publisher.EvaluateAndPublish(r.Context(), storyID, req.StoryVersionID)
	if err == nil {
		slog.Info("story published",
			"story_id", result.StoryID,
			"story_version_id", result.StoryVersionID,
			"editor", claims.Handle)
		jsonResp(w, http.StatusOK, result)
		return
	}

	var gateErr *gate.GateFailedError
	switch {
	case errors.Is(err, gate.ErrNotFound):
		jsonCoded(w, http.StatusNotFound, "not_found", "story not found", nil)
	case errors.Is(err, gate.ErrAlreadyPublished):
		jsonCoded(w, http.StatusConflict, "already_published", "story already published", nil)
	case errors.As(err, &gateErr):
		// Business rejection, not a fault: log below error level.
		slog.Info("publish gate failed",
			"story_id", storyID,
			"total_claims", gateErr.Metrics.TotalClaims,
			"primary_evidence_ratio", gateErr.Metrics.PrimaryEvidenceRatio,
			"unsupported_claim_share", gateErr.Metrics.UnsupportedClaimShare,
			"contradicted_claims", gateErr.Metrics.ContradictedClaims,
			"corroboration_ok", gateErr.Metrics.CorroborationOK)
		jsonCoded(w, http.StatusConflict, "publish_gate_failed", "publish gate failed", map[string]any{
			"metrics":    gateErr.Metrics,
			"thresholds": gateErr.Thresholds,
		})
	default:
		slog.Error("publish failed", "story_id", storyID, "error", err)
		jsonCoded(w, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
	}
}

// handleListOutbox returns queued events for inspection. Delivery and
// acknowledgement belong to the external relay.
func (a *API) handleListOutbox(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	events, err := a.db.ListOutboxEvents(a.platformID, 0)
	if err != nil {
		slog.Error("listing outbox failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{"items": events})
}
