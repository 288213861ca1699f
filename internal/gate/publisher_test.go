package gate

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hazyhaar/newsgate/internal/db"
)

func testDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "gate_test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func seedStory(t *testing.T, d *db.DB) (string, string) {
	t.Helper()
	story, err := d.CreateStory("local", "Test story")
	if err != nil {
		t.Fatalf("creating story: %v", err)
	}
	version, err := d.CreateVersion(story.StoryID, "Body text for the story under test, long enough to matter.")
	if err != nil {
		t.Fatalf("creating version: %v", err)
	}
	return story.StoryID, version.StoryVersionID
}

func addClaim(t *testing.T, d *db.DB, storyID, versionID, claimType, text, status string) string {
	t.Helper()
	claim, err := d.CreateClaim(db.CreateClaimInput{
		StoryID:        storyID,
		StoryVersionID: versionID,
		ClaimType:      claimType,
		Text:           text,
	})
	if err != nil {
		t.Fatalf("creating claim: %v", err)
	}
	if status != "unsupported" {
		if err := d.SetSupportStatus(claim.ClaimID, status); err != nil {
			t.Fatalf("setting support status: %v", err)
		}
	}
	return claim.ClaimID
}

func linkSupport(t *testing.T, d *db.DB, claimID, blobURI string, prov map[string]string) {
	t.Helper()
	evidence, err := d.PutEvidence(blobURI, "application/pdf", prov)
	if err != nil {
		t.Fatalf("registering evidence: %v", err)
	}
	if _, err := d.CreateEdge(claimID, evidence.EvidenceIDHash, "supports", 0.9); err != nil {
		t.Fatalf("creating edge: %v", err)
	}
}

func primaryProv(source string) map[string]string {
	return map[string]string{"source": source, "source_class": "primary"}
}

func TestPublishPasses(t *testing.T) {
	d := testDB(t)
	p := NewPublisher(d, "local", "local", DefaultThresholds())
	storyID, versionID := seedStory(t, d)

	texts := []string{
		"The council approved the renovation of the riverside park",
		"Construction begins next spring after the thaw",
		"The contractor was selected through an open bidding process",
		"Residents can comment on the plan at the town hall",
	}
	for i, text := range texts {
		claimID := addClaim(t, d, storyID, versionID, ClaimFactual, text, "supported")
		linkSupport(t, d, claimID, "blob://local/ev/"+text[:8], primaryProv("source-"+string(rune('a'+i))))
	}

	res, err := p.EvaluateAndPublish(context.Background(), storyID, "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.State != "published" {
		t.Errorf("state = %s, want published", res.State)
	}
	if res.StoryVersionID != versionID {
		t.Errorf("version = %s, want %s", res.StoryVersionID, versionID)
	}
	if res.Metrics.PrimaryEvidenceRatio != 1.0 {
		t.Errorf("ratio = %f, want 1.0", res.Metrics.PrimaryEvidenceRatio)
	}

	story, err := d.GetStory(storyID)
	if err != nil {
		t.Fatalf("reloading story: %v", err)
	}
	if story.State != "published" {
		t.Errorf("stored state = %s, want published", story.State)
	}

	events, err := d.ListOutboxEvents("local", 10)
	if err != nil {
		t.Fatalf("listing outbox: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("outbox events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.EventType != EventTypeStoryPublished {
		t.Errorf("event type = %s, want %s", ev.EventType, EventTypeStoryPublished)
	}
	var payload map[string]string
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload["story_id"] != storyID || payload["story_version_id"] != versionID {
		t.Errorf("payload = %v", payload)
	}
	if payload["publication_scope"] != "local" {
		t.Errorf("scope = %s, want local", payload["publication_scope"])
	}
}

func TestPublishFailsOnUnsupportedShare(t *testing.T) {
	d := testDB(t)
	p := NewPublisher(d, "local", "local", DefaultThresholds())
	storyID, versionID := seedStory(t, d)

	// 1 of 5 unsupported gives share 0.20, over the 0.10 cap.
	for i := 0; i < 4; i++ {
		claimID := addClaim(t, d, storyID, versionID, ClaimFactual,
			"Verified background detail number "+string(rune('a'+i)), "supported")
		linkSupport(t, d, claimID, "blob://local/sup/"+string(rune('a'+i)), primaryProv("outlet-"+string(rune('a'+i))))
	}
	addClaim(t, d, storyID, versionID, ClaimFactual,
		"An unverified detail nobody has confirmed yet", "unsupported")

	_, err := p.EvaluateAndPublish(context.Background(), storyID, "")
	var gateErr *GateFailedError
	if !errors.As(err, &gateErr) {
		t.Fatalf("err = %v, want GateFailedError", err)
	}
	if gateErr.Metrics.UnsupportedClaimShare != 0.2 {
		t.Errorf("share = %f, want 0.2", gateErr.Metrics.UnsupportedClaimShare)
	}

	story, _ := d.GetStory(storyID)
	if story.State == "published" {
		t.Error("gate failure must not change story state")
	}
	n, _ := d.CountOutboxEventsForStory(storyID)
	if n != 0 {
		t.Errorf("outbox events = %d, want 0", n)
	}
}

func TestPublishContradictionVeto(t *testing.T) {
	d := testDB(t)
	p := NewPublisher(d, "local", "local", DefaultThresholds())
	storyID, versionID := seedStory(t, d)

	for i := 0; i < 9; i++ {
		claimID := addClaim(t, d, storyID, versionID, ClaimFactual,
			"Well sourced observation variant "+string(rune('a'+i)), "supported")
		linkSupport(t, d, claimID, "blob://local/obs/"+string(rune('a'+i)), primaryProv("agency-"+string(rune('a'+i))))
	}
	contradicted := addClaim(t, d, storyID, versionID, ClaimFactual,
		"A detail the record directly refutes", "contradicted")
	linkSupport(t, d, contradicted, "blob://local/obs/z", primaryProv("agency-z"))

	_, err := p.EvaluateAndPublish(context.Background(), storyID, "")
	var gateErr *GateFailedError
	if !errors.As(err, &gateErr) {
		t.Fatalf("err = %v, want GateFailedError", err)
	}
	if gateErr.Metrics.ContradictedClaims != 1 {
		t.Errorf("contradicted = %d, want 1", gateErr.Metrics.ContradictedClaims)
	}
}

func TestPublishHighImpactCorroboration(t *testing.T) {
	d := testDB(t)
	p := NewPublisher(d, "local", "local", DefaultThresholds())
	storyID, versionID := seedStory(t, d)

	claimID := addClaim(t, d, storyID, versionID, ClaimStatistical,
		"Unemployment in the region rose to 9% last quarter", "supported")
	linkSupport(t, d, claimID, "blob://local/hi/1", primaryProv("bureau"))

	// One independent source is not corroboration for a high-impact claim.
	_, err := p.EvaluateAndPublish(context.Background(), storyID, "")
	var gateErr *GateFailedError
	if !errors.As(err, &gateErr) {
		t.Fatalf("err = %v, want GateFailedError", err)
	}
	if gateErr.Metrics.HighImpactClaims != 1 || gateErr.Metrics.HighImpactCorroborated != 0 {
		t.Errorf("high impact = %d corroborated = %d, want 1 and 0",
			gateErr.Metrics.HighImpactClaims, gateErr.Metrics.HighImpactCorroborated)
	}

	// A second supporting source with a distinct origin satisfies it.
	linkSupport(t, d, claimID, "blob://local/hi/2", primaryProv("ministry"))
	res, err := p.EvaluateAndPublish(context.Background(), storyID, "")
	if err != nil {
		t.Fatalf("publish after corroboration: %v", err)
	}
	if !res.Metrics.CorroborationOK {
		t.Error("expected corroboration_ok after second source")
	}
}

func TestPublishSameSourceNotCorroboration(t *testing.T) {
	d := testDB(t)
	p := NewPublisher(d, "local", "local", DefaultThresholds())
	storyID, versionID := seedStory(t, d)

	claimID := addClaim(t, d, storyID, versionID, ClaimStatistical,
		"Flood damage was estimated at $3 million", "supported")
	linkSupport(t, d, claimID, "blob://local/same/1", primaryProv("bureau"))
	linkSupport(t, d, claimID, "blob://local/same/2", primaryProv("bureau"))

	_, err := p.EvaluateAndPublish(context.Background(), storyID, "")
	var gateErr *GateFailedError
	if !errors.As(err, &gateErr) {
		t.Fatalf("err = %v, want GateFailedError", err)
	}
	if gateErr.Metrics.HighImpactCorroborated != 0 {
		t.Errorf("corroborated = %d, want 0 for same-source evidence",
			gateErr.Metrics.HighImpactCorroborated)
	}
}

func TestPublishEmptyClaimSet(t *testing.T) {
	d := testDB(t)
	p := NewPublisher(d, "local", "local", DefaultThresholds())
	storyID, _ := seedStory(t, d)

	_, err := p.EvaluateAndPublish(context.Background(), storyID, "")
	var gateErr *GateFailedError
	if !errors.As(err, &gateErr) {
		t.Fatalf("err = %v, want GateFailedError", err)
	}
	if gateErr.Metrics.TotalClaims != 0 {
		t.Errorf("total = %d, want 0", gateErr.Metrics.TotalClaims)
	}
	if gateErr.Metrics.UnsupportedClaimShare != 1 {
		t.Errorf("share = %f, want 1 for empty claim set", gateErr.Metrics.UnsupportedClaimShare)
	}
}

func TestPublishAlreadyPublished(t *testing.T) {
	d := testDB(t)
	p := NewPublisher(d, "local", "local", DefaultThresholds())
	storyID, versionID := seedStory(t, d)

	claimID := addClaim(t, d, storyID, versionID, ClaimFactual,
		"A straightforward well documented statement", "supported")
	linkSupport(t, d, claimID, "blob://local/rep/1", primaryProv("registry"))

	if _, err := p.EvaluateAndPublish(context.Background(), storyID, ""); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	_, err := p.EvaluateAndPublish(context.Background(), storyID, "")
	if !errors.Is(err, ErrAlreadyPublished) {
		t.Fatalf("err = %v, want ErrAlreadyPublished", err)
	}

	n, err := d.CountOutboxEventsForStory(storyID)
	if err != nil {
		t.Fatalf("counting outbox: %v", err)
	}
	if n != 1 {
		t.Errorf("outbox events = %d, want exactly 1", n)
	}
}

func TestPublishNotFound(t *testing.T) {
	d := testDB(t)
	p := NewPublisher(d, "local", "local", DefaultThresholds())

	if _, err := p.EvaluateAndPublish(context.Background(), "st_missing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing story: err = %v, want ErrNotFound", err)
	}

	storyID, _ := seedStory(t, d)
	otherStory, otherVersion := seedStory(t, d)
	_ = otherStory
	if _, err := p.EvaluateAndPublish(context.Background(), storyID, otherVersion); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign version: err = %v, want ErrNotFound", err)
	}

	noVersions, err := d.CreateStory("local", "Versionless")
	if err != nil {
		t.Fatalf("creating story: %v", err)
	}
	if _, err := p.EvaluateAndPublish(context.Background(), noVersions.StoryID, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("no versions: err = %v, want ErrNotFound", err)
	}
}

func TestPublishConcurrentSingleWinner(t *testing.T) {
	d := testDB(t)
	p := NewPublisher(d, "local", "local", DefaultThresholds())
	storyID, versionID := seedStory(t, d)

	claimID := addClaim(t, d, storyID, versionID, ClaimFactual,
		"A statement two editors race to publish together", "supported")
	linkSupport(t, d, claimID, "blob://local/race/1", primaryProv("wire"))

	const racers = 4
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.EvaluateAndPublish(context.Background(), storyID, "")
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyPublished):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	if conflicts != racers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, racers-1)
	}

	n, _ := d.CountOutboxEventsForStory(storyID)
	if n != 1 {
		t.Errorf("outbox events = %d, want exactly 1", n)
	}
}

func TestPublishGateFailureLeavesNoTrace(t *testing.T) {
	d := testDB(t)
	p := NewPublisher(d, "local", "local", DefaultThresholds())
	storyID, versionID := seedStory(t, d)

	addClaim(t, d, storyID, versionID, ClaimFactual,
		"Nothing here has any supporting evidence", "unsupported")

	for i := 0; i < 3; i++ {
		if _, err := p.EvaluateAndPublish(context.Background(), storyID, ""); err == nil {
			t.Fatal("expected gate failure")
		}
	}
	story, _ := d.GetStory(storyID)
	if story.State != "draft" {
		t.Errorf("state = %s, want draft after repeated failures", story.State)
	}
	n, _ := d.CountOutboxEventsForStory(storyID)
	if n != 0 {
		t.Errorf("outbox events = %d, want 0", n)
	}
}
