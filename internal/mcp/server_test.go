package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/newsgate/internal/db"
	"github.com/hazyhaar/newsgate/internal/gate"
)

func testDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "mcp_test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestNewServer(t *testing.T) {
	d := testDB(t)
	p := gate.NewPublisher(d, "local", "local", gate.DefaultThresholds())
	if srv := NewServer(d, p, "local", nil); srv == nil {
		t.Fatal("expected a server")
	}
}

func TestAddVersionEndpoint(t *testing.T) {
	d := testDB(t)
	story, err := d.CreateStory("local", "Bridge inspection findings")
	if err != nil {
		t.Fatalf("creating story: %v", err)
	}
	_, err = d.CreateVersion(story.StoryID, "The initial draft filed before the inspection report arrived.")
	if err != nil {
		t.Fatalf("creating first version: %v", err)
	}

	endpoint := addVersionEndpoint(d)

	resp, err := endpoint(context.Background(), &addVersionReq{
		StoryID: story.StoryID,
		Body:    "The revised draft folding in the inspector's written findings.",
	})
	if err != nil {
		t.Fatalf("add version: %v", err)
	}
	version, ok := resp.(map[string]any)["version"].(*db.StoryVersion)
	if !ok {
		t.Fatalf("response = %#v, want a version", resp)
	}

	latest, err := d.LatestVersionID(story.StoryID)
	if err != nil {
		t.Fatalf("latest version: %v", err)
	}
	if latest != version.StoryVersionID {
		t.Errorf("latest = %s, want the appended version %s", latest, version.StoryVersionID)
	}
	versions, _ := d.ListVersions(story.StoryID)
	if len(versions) != 2 {
		t.Errorf("versions = %d, want 2", len(versions))
	}

	if _, err := endpoint(context.Background(), &addVersionReq{StoryID: "st_missing", Body: "text"}); err == nil {
		t.Error("missing story must error")
	}
	if _, err := endpoint(context.Background(), &addVersionReq{StoryID: story.StoryID}); err == nil {
		t.Error("empty body must error")
	}
}
