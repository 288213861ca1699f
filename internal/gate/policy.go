package gate

// Thresholds configure the publish gate policy.
type Thresholds struct {
	MinPrimaryEvidenceRatio        float64 `json:"min_primary_evidence_ratio"`
	MaxUnsupportedClaimShare       float64 `json:"max_unsupported_claim_share"`
	RequireHighImpactCorroboration bool    `json:"require_high_impact_corroboration"`
}

// DefaultThresholds returns the standard gate configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinPrimaryEvidenceRatio:        0.5,
		MaxUnsupportedClaimShare:       0.10,
		RequireHighImpactCorroboration: true,
	}
}

// Decide converts metrics into a pass/fail decision. Stateless. A single
// contradicted claim vetoes publication regardless of the ratios, and an
// empty claim set can never pass.
func Decide(m *Metrics, t Thresholds) bool {
	corroborationOK := m.CorroborationOK
	if !t.RequireHighImpactCorroboration {
		corroborationOK = true
	}
	return m.TotalClaims > 0 &&
		m.ContradictedClaims == 0 &&
		m.PrimaryEvidenceRatio >= t.MinPrimaryEvidenceRatio &&
		m.UnsupportedClaimShare <= t.MaxUnsupportedClaimShare &&
		corroborationOK
}
