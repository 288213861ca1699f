// Package gate implements the publish gate: claim classification, graph
// aggregation, the pass/fail policy, and the transactional state transition
// with its outbox event.
package gate

import "regexp"

// Claim types recognized by the classifier.
const (
	ClaimFactual        = "factual"
	ClaimStatistical    = "statistical"
	ClaimAttribution    = "attribution"
	ClaimInterpretation = "interpretation"
)

// Classifier decides a claim's type and whether it is high-impact. The
// heuristic rules live behind this interface so they can evolve without
// touching gate logic.
type Classifier interface {
	Classify(text string) string
	IsHighImpact(claimType, text string) bool
}

// statisticalRe matches quantitative claims: percentages, money, large
// magnitude words, counted people/cases/deaths.
var statisticalRe = regexp.MustCompile(`(?i)\d+%|\$[\d,]+|million|billion|\d+\s*(people|cases|deaths)`)

// attributionRe matches reported-speech verbs.
var attributionRe = regexp.MustCompile(`(?i)said|according to|stated|announced|reported`)

// riskLexiconRe flags factual claims about accusation, crime, legal action,
// violence, terrorism, or abuse.
var riskLexiconRe = regexp.MustCompile(`(?i)accus|illegal|fraud|crime|charged|indict|lawsuit|killed|injur|shoot|arrest|explos|terror|abuse`)

// numericRiskRe flags monetary or numeric content in factual claims.
var numericRiskRe = regexp.MustCompile(`(?i)\$|usd|million|billion|percent|%`)

// LexiconClassifier is the default regex/lexicon implementation.
type LexiconClassifier struct{}

func (LexiconClassifier) Classify(text string) string {
	if statisticalRe.MatchString(text) {
		return ClaimStatistical
	}
	if attributionRe.MatchString(text) {
		return ClaimAttribution
	}
	return ClaimFactual
}

// IsHighImpact reports whether a claim signals elevated risk of harm if
// wrong: every statistical claim, plus factual claims matching the risk
// lexicon or a numeric/monetary pattern.
func (LexiconClassifier) IsHighImpact(claimType, text string) bool {
	if claimType == ClaimStatistical {
		return true
	}
	if claimType != ClaimFactual {
		return false
	}
	return riskLexiconRe.MatchString(text) || numericRiskRe.MatchString(text)
}
