package gate

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Metrics summarizes a story version's claim/evidence subgraph. Immutable
// output of Aggregate; echoed verbatim in gate failure responses.
type Metrics struct {
	StoryVersionID         string  `json:"story_version_id"`
	TotalClaims            int     `json:"total_claims"`
	UnsupportedClaims      int     `json:"unsupported_claims"`
	ContradictedClaims     int     `json:"contradicted_claims"`
	PrimarySupportedClaims int     `json:"primary_supported_claims"`
	PrimaryEvidenceRatio   float64 `json:"primary_evidence_ratio"`
	UnsupportedClaimShare  float64 `json:"unsupported_claim_share"`
	HighImpactClaims       int     `json:"high_impact_claims"`
	HighImpactCorroborated int     `json:"high_impact_corroborated"`
	CorroborationOK        bool    `json:"corroboration_ok"`
}

// querier is satisfied by both *sql.DB and *sql.Tx. Aggregation runs on the
// publish transaction so it sees a consistent snapshot.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type claimRow struct {
	id            string
	claimType     string
	text          string
	supportStatus string
}

// Aggregate computes gate metrics for the claims of one story version.
// Deterministic: no clock reads, no randomness, nothing outside q.
func Aggregate(q querier, versionID string, cls Classifier) (*Metrics, error) {
	rows, err := q.Query(`
		SELECT claim_id, claim_type, text, support_status
		FROM claims WHERE story_version_id = ?
		ORDER BY created_at ASC, claim_id ASC`, versionID)
	if err != nil {
		return nil, fmt.Errorf("loading claims: %w", err)
	}
	defer rows.Close()

	var claims []claimRow
	for rows.Next() {
		var c claimRow
		if err := rows.Scan(&c.id, &c.claimType, &c.text, &c.supportStatus); err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	m := &Metrics{StoryVersionID: versionID}
	m.TotalClaims = len(claims)
	for _, c := range claims {
		switch c.supportStatus {
		case "unsupported":
			m.UnsupportedClaims++
		case "contradicted":
			m.ContradictedClaims++
		}
	}

	// Supports edges joined with evidence provenance, keyed by claim.
	primaryByClaim, keysByClaim, err := loadSupport(q, versionID)
	if err != nil {
		return nil, err
	}

	for _, c := range claims {
		if primaryByClaim[c.id] {
			m.PrimarySupportedClaims++
		}
	}

	for _, c := range claims {
		if !cls.IsHighImpact(c.claimType, c.text) {
			continue
		}
		m.HighImpactClaims++
		if len(keysByClaim[c.id]) >= 2 {
			m.HighImpactCorroborated++
		}
	}

	// Empty claim set fails safe: ratio 0 can never clear the minimum and
	// share 1 always exceeds the cap.
	if m.TotalClaims == 0 {
		m.PrimaryEvidenceRatio = 0
		m.UnsupportedClaimShare = 1
	} else {
		m.PrimaryEvidenceRatio = float64(m.PrimarySupportedClaims) / float64(m.TotalClaims)
		m.UnsupportedClaimShare = float64(m.UnsupportedClaims) / float64(m.TotalClaims)
	}

	m.CorroborationOK = m.HighImpactClaims == 0 || m.HighImpactCorroborated == m.HighImpactClaims

	return m, nil
}

// loadSupport reads the supports edges for a version's claims together with
// the referenced evidence objects. Returns, per claim: whether any primary
// evidence supports it, and the set of distinct independence keys among its
// supporting evidence.
func loadSupport(q querier, versionID string) (map[string]bool, map[string]map[string]struct{}, error) {
	rows, err := q.Query(`
		SELECT e.claim_id, eo.blob_uri, eo.provenance
		FROM claim_evidence_edges e
		JOIN evidence_objects eo ON eo.evidence_id_hash = e.evidence_id_hash
		WHERE e.relation = 'supports'
		  AND e.claim_id IN (SELECT claim_id FROM claims WHERE story_version_id = ?)`, versionID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading support edges: %w", err)
	}
	defer rows.Close()

	primary := make(map[string]bool)
	keys := make(map[string]map[string]struct{})
	for rows.Next() {
		var claimID, blobURI, provJSON string
		if err := rows.Scan(&claimID, &blobURI, &provJSON); err != nil {
			return nil, nil, fmt.Errorf("scanning support edge: %w", err)
		}

		var prov map[string]string
		if err := json.Unmarshal([]byte(provJSON), &prov); err != nil {
			prov = map[string]string{}
		}

		if prov["source_class"] == "primary" {
			primary[claimID] = true
		}

		key := independenceKey(prov, blobURI)
		if keys[claimID] == nil {
			keys[claimID] = make(map[string]struct{})
		}
		keys[claimID][key] = struct{}{}
	}
	return primary, keys, rows.Err()
}

// independenceKey identifies the origin of a piece of evidence for
// corroboration counting: source, then publisher, then url, then the blob
// location itself.
func independenceKey(prov map[string]string, blobURI string) string {
	if v := prov["source"]; v != "" {
		return v
	}
	if v := prov["publisher"]; v != "" {
		return v
	}
	if v := prov["url"]; v != "" {
		return v
	}
	return blobURI
}
