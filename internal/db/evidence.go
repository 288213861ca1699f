// Evidence queries — content-hash deduplicated evidence objects, provenance
// metadata, and claim-evidence edges with legacy relation normalization.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

type EvidenceObject struct {
	EvidenceIDHash string            `json:"evidence_id_hash"`
	BlobURI        string            `json:"blob_uri"`
	MediaType      string            `json:"media_type"`
	Provenance     map[string]string `json:"provenance"`
	CreatedAt      time.Time         `json:"created_at"`
}

type EvidenceEdge struct {
	ClaimID        string  `json:"claim_id"`
	EvidenceIDHash string  `json:"evidence_id_hash"`
	Relation       string  `json:"relation"`
	Strength       float64 `json:"strength"`
}

// HashBlobURI derives the deduplication key for an evidence object from the
// referenced blob location.
func HashBlobURI(blobURI string) string {
	h := sha256.Sum256([]byte(blobURI))
	return hex.EncodeToString(h[:])
}

// NormalizeRelation maps the legacy 'context_only' relation to 'context'.
// Applied on every write and read path that touches edges.
func NormalizeRelation(relation string) string {
	if relation == "context_only" {
		return "context"
	}
	return relation
}

// PutEvidence registers an evidence object, deduplicating on the content
// hash. Registering the same blob URI twice returns the existing object.
func (db *DB) PutEvidence(blobURI, mediaType string, provenance map[string]string) (*EvidenceObject, error) {
	hash := HashBlobURI(blobURI)
	if provenance == nil {
		provenance = map[string]string{}
	}
	provJSON, err := json.Marshal(provenance)
	if err != nil {
		return nil, fmt.Errorf("encoding provenance: %w", err)
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	_, err = db.Exec(`
		INSERT INTO evidence_objects (evidence_id_hash, blob_uri, media_type, provenance)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(evidence_id_hash) DO NOTHING`,
		hash, blobURI, mediaType, string(provJSON))
	if err != nil {
		return nil, fmt.Errorf("inserting evidence: %w", err)
	}
	return db.GetEvidence(hash)
}

func (db *DB) GetEvidence(hash string) (*EvidenceObject, error) {
	e := &EvidenceObject{}
	var prov string
	err := db.QueryRow(`
		SELECT evidence_id_hash, blob_uri, media_type, provenance, created_at
		FROM evidence_objects WHERE evidence_id_hash = ?`, hash).Scan(
		&e.EvidenceIDHash, &e.BlobURI, &e.MediaType, &prov, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(prov), &e.Provenance); err != nil {
		e.Provenance = map[string]string{}
	}
	return e, nil
}

// CreateEdge links a claim to an evidence object. The relation is normalized
// and strength clamped to [0,1]. Re-linking the same pair updates in place.
func (db *DB) CreateEdge(claimID, evidenceHash, relation string, strength float64) (*EvidenceEdge, error) {
	relation = NormalizeRelation(relation)
	switch relation {
	case "supports", "contradicts", "context":
	default:
		return nil, fmt.Errorf("invalid relation %q", relation)
	}
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	_, err := db.Exec(`
		INSERT INTO claim_evidence_edges (claim_id, evidence_id_hash, relation, strength)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(claim_id, evidence_id_hash) DO UPDATE SET
			relation = excluded.relation,
			strength = excluded.strength`,
		claimID, evidenceHash, relation, strength)
	if err != nil {
		return nil, fmt.Errorf("inserting edge: %w", err)
	}
	return &EvidenceEdge{
		ClaimID:        claimID,
		EvidenceIDHash: evidenceHash,
		Relation:       relation,
		Strength:       strength,
	}, nil
}

// EdgesByStory returns all edges touching a story's claims, oldest first.
func (db *DB) EdgesByStory(storyID string) ([]*EvidenceEdge, error) {
	rows, err := db.Query(`
		SELECT claim_id, evidence_id_hash, relation, strength
		FROM claim_evidence_edges
		WHERE claim_id IN (SELECT claim_id FROM claims WHERE story_id = ?)
		ORDER BY created_at ASC, claim_id ASC`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdgeRows(rows)
}

// EdgesByClaim returns all edges for one claim.
func (db *DB) EdgesByClaim(claimID string) ([]*EvidenceEdge, error) {
	rows, err := db.Query(`
		SELECT claim_id, evidence_id_hash, relation, strength
		FROM claim_evidence_edges
		WHERE claim_id = ?
		ORDER BY created_at ASC`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdgeRows(rows)
}

func scanEdgeRows(rows *sql.Rows) ([]*EvidenceEdge, error) {
	var results []*EvidenceEdge
	for rows.Next() {
		e := &EvidenceEdge{}
		if err := rows.Scan(&e.ClaimID, &e.EvidenceIDHash, &e.Relation, &e.Strength); err != nil {
			return nil, err
		}
		e.Relation = NormalizeRelation(e.Relation)
		results = append(results, e)
	}
	return results, rows.Err()
}
