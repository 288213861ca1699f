package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/newsgate/internal/auth"
	"github.com/hazyhaar/newsgate/internal/db"
	"github.com/hazyhaar/newsgate/internal/gate"
)

func testServer(t *testing.T) (*httptest.Server, *db.DB) {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	a := auth.New("test-secret", 60)
	publisher := gate.NewPublisher(d, "local", "local", gate.DefaultThresholds())
	handler := New(d, a, publisher, "local")

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, d
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response from %s %s: %v", method, path, err)
		}
	}
	return resp
}

func registerUser(t *testing.T, srv *httptest.Server, handle, role string) string {
	t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	resp := doJSON(t, srv, "POST", "/v1/register", "", map[string]string{
		"handle":   handle,
		"password": "longenoughpassword",
		"role":     role,
	}, &out)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", handle, resp.StatusCode)
	}
	return out.Token
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	var out map[string]any
	resp := doJSON(t, srv, "GET", "/v1/health", "", nil, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out["platform_id"] != "local" {
		t.Errorf("platform_id = %v, want local", out["platform_id"])
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv, _ := testServer(t)
	registerUser(t, srv, "casey", "reporter")

	var out struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	resp := doJSON(t, srv, "POST", "/v1/login", "", map[string]string{
		"handle":   "casey",
		"password": "longenoughpassword",
	}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}
	if out.Token == "" {
		t.Error("expected a token")
	}
	if out.User.Role != "reporter" {
		t.Errorf("role = %s, want reporter", out.User.Role)
	}

	resp = doJSON(t, srv, "POST", "/v1/login", "", map[string]string{
		"handle":   "casey",
		"password": "wrongpassword",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password: status %d, want 401", resp.StatusCode)
	}
}

func TestCreateStoryRequiresAuth(t *testing.T) {
	srv, _ := testServer(t)
	resp := doJSON(t, srv, "POST", "/v1/story", "", map[string]string{"title": "No token"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestPublishFlow(t *testing.T) {
	srv, d := testServer(t)
	editor := registerUser(t, srv, "editor_jo", "editor")
	reporter := registerUser(t, srv, "reporter_al", "reporter")

	var story struct {
		StoryID string `json:"story_id"`
		State   string `json:"state"`
	}
	resp := doJSON(t, srv, "POST", "/v1/story", reporter, map[string]string{
		"title": "Clinic reopens after renovation",
		"body":  "The clinic on Fifth Street reopened to patients on Monday morning.",
	}, &story)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create story: status %d", resp.StatusCode)
	}
	if story.State != "draft" {
		t.Errorf("state = %s, want draft", story.State)
	}

	// Extraction turns the body into claims.
	var extracted struct {
		JobID           string `json:"job_id"`
		ClaimsExtracted int    `json:"claims_extracted"`
	}
	resp = doJSON(t, srv, "POST", "/v1/story/"+story.StoryID+"/extract", reporter, map[string]any{}, &extracted)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("extract: status %d", resp.StatusCode)
	}
	if extracted.ClaimsExtracted != 1 {
		t.Fatalf("claims extracted = %d, want 1", extracted.ClaimsExtracted)
	}

	claims, err := d.ClaimsByStory(story.StoryID)
	if err != nil || len(claims) != 1 {
		t.Fatalf("claims = %v (%v)", claims, err)
	}
	claimID := claims[0].ClaimID

	// Publishing now fails the gate: the claim is unsupported.
	var gateFail struct {
		Code    string `json:"code"`
		Metrics struct {
			UnsupportedClaimShare float64 `json:"unsupported_claim_share"`
		} `json:"metrics"`
	}
	resp = doJSON(t, srv, "POST", "/v1/story/"+story.StoryID+"/publish", editor, nil, &gateFail)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("gated publish: status %d, want 409", resp.StatusCode)
	}
	if gateFail.Code != "publish_gate_failed" {
		t.Errorf("code = %s, want publish_gate_failed", gateFail.Code)
	}
	if gateFail.Metrics.UnsupportedClaimShare != 1.0 {
		t.Errorf("share = %f, want 1.0", gateFail.Metrics.UnsupportedClaimShare)
	}

	// Register primary evidence and link it.
	var evidence struct {
		EvidenceIDHash string `json:"evidence_id_hash"`
	}
	resp = doJSON(t, srv, "POST", "/v1/evidence", reporter, map[string]any{
		"blob_uri":   "blob://local/clinic/inspection.pdf",
		"media_type": "application/pdf",
		"provenance": map[string]string{"source": "health-dept", "source_class": "primary"},
	}, &evidence)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register evidence: status %d", resp.StatusCode)
	}

	resp = doJSON(t, srv, "POST", "/v1/claim/"+claimID+"/evidence", reporter, map[string]any{
		"evidence_id_hash": evidence.EvidenceIDHash,
		"relation":         "supports",
		"strength":         0.9,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("link evidence: status %d", resp.StatusCode)
	}

	resp = doJSON(t, srv, "POST", "/v1/claim/"+claimID+"/status", reporter, map[string]string{
		"support_status": "supported",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set status: status %d", resp.StatusCode)
	}

	// Reporters cannot publish.
	resp = doJSON(t, srv, "POST", "/v1/story/"+story.StoryID+"/publish", reporter, nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("reporter publish: status %d, want 403", resp.StatusCode)
	}

	// The editor can, and the gate now passes.
	var result struct {
		State   string `json:"state"`
		Metrics struct {
			PrimaryEvidenceRatio float64 `json:"primary_evidence_ratio"`
		} `json:"metrics"`
	}
	resp = doJSON(t, srv, "POST", "/v1/story/"+story.StoryID+"/publish", editor, nil, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish: status %d", resp.StatusCode)
	}
	if result.State != "published" {
		t.Errorf("state = %s, want published", result.State)
	}
	if result.Metrics.PrimaryEvidenceRatio != 1.0 {
		t.Errorf("ratio = %f, want 1.0", result.Metrics.PrimaryEvidenceRatio)
	}

	// A second publish is an idempotent conflict.
	var conflict struct {
		Code string `json:"code"`
	}
	resp = doJSON(t, srv, "POST", "/v1/story/"+story.StoryID+"/publish", editor, nil, &conflict)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("republish: status %d, want 409", resp.StatusCode)
	}
	if conflict.Code != "already_published" {
		t.Errorf("code = %s, want already_published", conflict.Code)
	}

	// Exactly one event in the outbox.
	var outbox struct {
		Items []struct {
			EventType string            `json:"event_type"`
			Payload   map[string]string `json:"payload"`
		} `json:"items"`
	}
	resp = doJSON(t, srv, "GET", "/v1/outbox", editor, nil, &outbox)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("outbox: status %d", resp.StatusCode)
	}
	if len(outbox.Items) != 1 {
		t.Fatalf("outbox items = %d, want 1", len(outbox.Items))
	}
	if outbox.Items[0].EventType != "story.published.v1" {
		t.Errorf("event type = %s", outbox.Items[0].EventType)
	}
	// Payload comes back as a JSON object, not an escaped string.
	if outbox.Items[0].Payload["story_id"] != story.StoryID {
		t.Errorf("payload = %v, want story_id %s", outbox.Items[0].Payload, story.StoryID)
	}
}

func TestPublishUnknownStory(t *testing.T) {
	srv, _ := testServer(t)
	editor := registerUser(t, srv, "ed", "editor")

	var out struct {
		Code string `json:"code"`
	}
	resp := doJSON(t, srv, "POST", "/v1/story/st_nope/publish", editor, nil, &out)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if out.Code != "not_found" {
		t.Errorf("code = %s, want not_found", out.Code)
	}
}
