package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/newsgate/internal/db"
)

// handleRegisterEvidence registers an evidence object, deduplicated on the
// content-derived hash of its blob URI.
// POST /v1/evidence
// {"blob_uri": "...", "media_type": "image/png",
//  "provenance": {"source": "...", "source_class": "primary", "collected_at": "..."}}
func (a *API) handleRegisterEvidence(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		BlobURI    string            `json:"blob_uri"`
		MediaType  string            `json:"media_type"`
		Provenance map[string]string `json:"provenance"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BlobURI == "" {
		jsonError(w, "blob_uri is required", http.StatusBadRequest)
		return
	}

	evidence, err := a.db.PutEvidence(req.BlobURI, req.MediaType, req.Provenance)
	if err != nil {
		slog.Error("registering evidence failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusCreated, evidence)
}

// handlePresignUpload simulates a presigned blob upload: it returns a fake
// upload target plus the evidence hash the blob will be registered under.
// No bytes are stored; blob storage is external.
func (a *API) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		FileName  string `json:"file_name"`
		MediaType string `json:"media_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileName == "" {
		jsonError(w, "file_name is required", http.StatusBadRequest)
		return
	}

	blobURI := "blob://" + a.platformID + "/" + db.NewID() + "/" + req.FileName
	jsonResp(w, http.StatusOK, map[string]any{
		"upload_url":       "https://blobs.invalid/upload/" + db.HashBlobURI(blobURI),
		"blob_uri":         blobURI,
		"evidence_id_hash": db.HashBlobURI(blobURI),
		"expires_in_sec":   900,
	})
}

func (a *API) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("evidence_id_hash")

	evidence, err := a.db.GetEvidence(hash)
	if errors.Is(err, sql.ErrNoRows) {
		jsonCoded(w, http.StatusNotFound, "not_found", "evidence not found", nil)
		return
	}
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, evidence)
}

// handleLinkEvidence creates a claim-evidence edge. Legacy relation
// 'context_only' is accepted and normalized to 'context'.
// POST /v1/claim/{claim_id}/evidence
// {"evidence_id_hash": "...", "relation": "supports", "strength": 0.8}
func (a *API) handleLinkEvidence(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	claimID := r.PathValue("claim_id")

	var req struct {
		EvidenceIDHash string   `json:"evidence_id_hash"`
		Relation       string   `json:"relation"`
		Strength       *float64 `json:"strength"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.EvidenceIDHash == "" || req.Relation == "" {
		jsonError(w, "evidence_id_hash and relation are required", http.StatusBadRequest)
		return
	}

	if _, err := a.db.GetClaim(claimID); errors.Is(err, sql.ErrNoRows) {
		jsonCoded(w, http.StatusNotFound, "not_found", "claim not found", nil)
		return
	} else if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := a.db.GetEvidence(req.EvidenceIDHash); errors.Is(err, sql.ErrNoRows) {
		jsonCoded(w, http.StatusNotFound, "not_found", "evidence not found", nil)
		return
	} else if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	strength := 0.5
	if req.Strength != nil {
		strength = *req.Strength
	}
	edge, err := a.db.CreateEdge(claimID, req.EvidenceIDHash, req.Relation, strength)
	if err != nil {
		jsonError(w, "invalid relation", http.StatusBadRequest)
		return
	}
	jsonResp(w, http.StatusCreated, edge)
}
