package gate

import "testing"

func TestDecide(t *testing.T) {
	th := DefaultThresholds()

	cases := []struct {
		name string
		m    Metrics
		want bool
	}{
		{
			name: "healthy version passes",
			m: Metrics{
				TotalClaims:            10,
				UnsupportedClaims:      1,
				PrimarySupportedClaims: 6,
				PrimaryEvidenceRatio:   0.6,
				UnsupportedClaimShare:  0.1,
				CorroborationOK:        true,
			},
			want: true,
		},
		{
			name: "empty claim set fails",
			m: Metrics{
				TotalClaims:           0,
				PrimaryEvidenceRatio:  0,
				UnsupportedClaimShare: 1,
				CorroborationOK:       true,
			},
			want: false,
		},
		{
			name: "single contradiction vetoes",
			m: Metrics{
				TotalClaims:           10,
				ContradictedClaims:    1,
				PrimaryEvidenceRatio:  1,
				UnsupportedClaimShare: 0,
				CorroborationOK:       true,
			},
			want: false,
		},
		{
			name: "ratio exactly at minimum passes",
			m: Metrics{
				TotalClaims:           4,
				PrimaryEvidenceRatio:  0.5,
				UnsupportedClaimShare: 0,
				CorroborationOK:       true,
			},
			want: true,
		},
		{
			name: "ratio below minimum fails",
			m: Metrics{
				TotalClaims:           4,
				PrimaryEvidenceRatio:  0.49,
				UnsupportedClaimShare: 0,
				CorroborationOK:       true,
			},
			want: false,
		},
		{
			name: "unsupported share above cap fails",
			m: Metrics{
				TotalClaims:           10,
				UnsupportedClaims:     2,
				PrimaryEvidenceRatio:  0.8,
				UnsupportedClaimShare: 0.2,
				CorroborationOK:       true,
			},
			want: false,
		},
		{
			name: "missing corroboration fails",
			m: Metrics{
				TotalClaims:            5,
				PrimaryEvidenceRatio:   1,
				UnsupportedClaimShare:  0,
				HighImpactClaims:       1,
				HighImpactCorroborated: 0,
				CorroborationOK:        false,
			},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(&tc.m, th); got != tc.want {
				t.Errorf("Decide() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDecideCorroborationNotRequired(t *testing.T) {
	th := DefaultThresholds()
	th.RequireHighImpactCorroboration = false

	m := Metrics{
		TotalClaims:            5,
		PrimaryEvidenceRatio:   1,
		UnsupportedClaimShare:  0,
		HighImpactClaims:       2,
		HighImpactCorroborated: 0,
		CorroborationOK:        false,
	}
	if !Decide(&m, th) {
		t.Error("expected pass when corroboration requirement is disabled")
	}
}
