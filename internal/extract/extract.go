// Package extract turns a story version's prose into claim rows using the
// heuristic sentence splitter and the gate classifier.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hazyhaar/newsgate/internal/db"
	"github.com/hazyhaar/newsgate/internal/gate"
)

// DefaultMaxClaims bounds extraction when the caller supplies no policy.
const DefaultMaxClaims = 200

var sentenceRe = regexp.MustCompile(`[.!?]+`)

// entityStopRe filters leading words that look like entities but aren't.
var entityStopRe = regexp.MustCompile(`^(The|A|An|In|On|At|By|For|To|Is|It|He|She|We|They)$`)

// Sentences splits prose into candidate claim sentences. Fragments of 20
// characters or fewer are dropped.
func Sentences(body string) []string {
	parts := sentenceRe.Split(body, -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) > 20 {
			out = append(out, p)
		}
	}
	return out
}

// Entities pulls up to five capitalized tokens from a sentence as a naive
// named-entity guess.
func Entities(text string) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		if len(w) <= 1 {
			continue
		}
		if w[0] < 'A' || w[0] > 'Z' {
			continue
		}
		if entityStopRe.MatchString(w) {
			continue
		}
		out = append(out, w)
		if len(out) == 5 {
			break
		}
	}
	return out
}

// Run extracts claims from a version's body and stores them, recording an
// extraction job. Extracted claims start unsupported. maxClaims <= 0 means
// DefaultMaxClaims.
func Run(database *db.DB, cls gate.Classifier, platformID, storyID, versionID string, maxClaims int) (*db.ExtractionJob, []*db.Claim, error) {
	version, err := database.GetVersion(versionID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading version: %w", err)
	}
	if version.StoryID != storyID {
		return nil, nil, fmt.Errorf("version %s does not belong to story %s", versionID, storyID)
	}

	job, err := database.CreateExtractionJob(platformID, storyID, versionID)
	if err != nil {
		return nil, nil, fmt.Errorf("creating extraction job: %w", err)
	}

	if maxClaims <= 0 {
		maxClaims = DefaultMaxClaims
	}
	sentences := Sentences(version.Body)
	if len(sentences) > maxClaims {
		sentences = sentences[:maxClaims]
	}

	var claims []*db.Claim
	for _, text := range sentences {
		claim, err := database.CreateClaim(db.CreateClaimInput{
			StoryID:        storyID,
			StoryVersionID: versionID,
			ClaimType:      cls.Classify(text),
			Text:           text,
			Entities:       Entities(text),
		})
		if err != nil {
			_ = database.SetExtractionJobStatus(job.JobID, "failed")
			return nil, nil, fmt.Errorf("inserting extracted claim: %w", err)
		}
		claims = append(claims, claim)
	}

	if err := database.SetExtractionJobStatus(job.JobID, "completed"); err != nil {
		return nil, nil, fmt.Errorf("completing extraction job: %w", err)
	}
	job.Status = "completed"
	return job, claims, nil
}
