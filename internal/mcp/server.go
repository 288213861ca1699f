// Package mcp registers the core newsgate tools on an MCP server, giving
// tool clients the same story/claim/evidence/publish surface as the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/newsgate/internal/db"
	"github.com/hazyhaar/newsgate/internal/extract"
	"github.com/hazyhaar/newsgate/internal/gate"
	"github.com/hazyhaar/newsgate/pkg/audit"
	"github.com/hazyhaar/pkg/kit"
)

// NewServer creates an MCPServer with all core newsgate tools registered.
func NewServer(database *db.DB, publisher *gate.Publisher, platformID string, auditLog audit.Logger) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "newsgate", Version: "0.1.0"}, nil)

	registerSubmitStory(srv, database, platformID, auditLog)
	registerAddVersion(srv, database, auditLog)
	registerGetStory(srv, database)
	registerListFeed(srv, database, platformID)
	registerExtractClaims(srv, database, platformID, auditLog)
	registerLinkEvidence(srv, database, auditLog)
	registerEvaluatePublish(srv, publisher, auditLog)

	return srv
}

// audited wraps an endpoint with the audit middleware, tagging entries
// with the mcp transport.
func audited(auditLog audit.Logger, action string, endpoint kit.Endpoint) kit.Endpoint {
	if auditLog == nil {
		return endpoint
	}
	wrapped := audit.Middleware(auditLog, action)(endpoint)
	return func(ctx context.Context, request any) (any, error) {
		return wrapped(audit.WithTransport(ctx, "mcp"), request)
	}
}

// --- submit_story ---

func registerSubmitStory(srv *mcp.Server, database *db.DB, platformID string, auditLog audit.Logger) {
	var endpoint kit.Endpoint = func(ctx context.Context, request any) (any, error) {
		r := request.(*submitStoryReq)
		story, err := database.CreateStory(platformID, r.Title)
		if err != nil {
			return nil, err
		}
		var version *db.StoryVersion
		if r.Body != "" {
			version, err = database.CreateVersion(story.StoryID, r.Body)
			if err != nil {
				return nil, err
			}
		}
		return map[string]any{"story": story, "version": version}, nil
	}
	endpoint = audited(auditLog, "submit_story", endpoint)

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]string{"type": "string", "description": "Story title"},
			"body":  map[string]string{"type": "string", "description": "Optional initial version body"},
		},
		"required": []string{"title"},
	})
	tool := &mcp.Tool{Name: "submit_story", Description: "Create a draft story, optionally with a first version", InputSchema: json.RawMessage(schema)}

	kit.RegisterMCPTool(srv, tool, endpoint, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := getArguments(req)
		r := &submitStoryReq{
			Title: stringArg(args, "title"),
			Body:  stringArg(args, "body"),
		}
		return &kit.MCPDecodeResult{Request: r}, nil
	})
}

type submitStoryReq struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// --- add_version ---

func addVersionEndpoint(database *db.DB) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		r := request.(*addVersionReq)
		if r.Body == "" {
			return nil, errors.New("body is required")
		}
		if _, err := database.GetStory(r.StoryID); err != nil {
			return nil, errors.New("story not found")
		}
		version, err := database.CreateVersion(r.StoryID, r.Body)
		if err != nil {
			return nil, err
		}
		return map[string]any{"version": version}, nil
	}
}

func registerAddVersion(srv *mcp.Server, database *db.DB, auditLog audit.Logger) {
	endpoint := audited(auditLog, "add_version", addVersionEndpoint(database))

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"story_id": map[string]string{"type": "string", "description": "Story to append to"},
			"body":     map[string]string{"type": "string", "description": "Full prose of the new version"},
		},
		"required": []string{"story_id", "body"},
	})
	tool := &mcp.Tool{Name: "add_version", Description: "Append an immutable version to an existing story", InputSchema: json.RawMessage(schema)}

	kit.RegisterMCPTool(srv, tool, endpoint, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := getArguments(req)
		return &kit.MCPDecodeResult{Request: &addVersionReq{
			StoryID: stringArg(args, "story_id"),
			Body:    stringArg(args, "body"),
		}}, nil
	})
}

type addVersionReq struct {
	StoryID string `json:"story_id"`
	Body    string `json:"body"`
}

// --- get_story ---

func registerGetStory(srv *mcp.Server, database *db.DB) {
	var endpoint kit.Endpoint = func(ctx context.Context, request any) (any, error) {
		r := request.(*getStoryReq)
		story, err := database.GetStory(r.StoryID)
		if err != nil {
			return nil, errors.New("story not found")
		}
		versions, _ := database.ListVersions(r.StoryID)
		claims, _ := database.ClaimsByStory(r.StoryID)
		edges, _ := database.EdgesByStory(r.StoryID)
		return map[string]any{
			"story":          story,
			"versions":       versions,
			"claims":         claims,
			"evidence_edges": edges,
		}, nil
	}

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"story_id": map[string]string{"type": "string", "description": "Story ID"},
		},
		"required": []string{"story_id"},
	})
	tool := &mcp.Tool{Name: "get_story", Description: "Fetch a story with versions, claims and evidence edges", InputSchema: json.RawMessage(schema)}

	kit.RegisterMCPTool(srv, tool, endpoint, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := getArguments(req)
		return &kit.MCPDecodeResult{Request: &getStoryReq{StoryID: stringArg(args, "story_id")}}, nil
	})
}

type getStoryReq struct {
	StoryID string `json:"story_id"`
}

// --- list_feed ---

func registerListFeed(srv *mcp.Server, database *db.DB, platformID string) {
	var endpoint kit.Endpoint = func(ctx context.Context, request any) (any, error) {
		r := request.(*listFeedReq)
		stories, err := database.ListStories(platformID, r.State, r.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": stories}, nil
	}

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"state": map[string]string{"type": "string", "description": "Filter by state: draft, review, published"},
			"limit": map[string]any{"type": "integer", "description": "Max results", "default": 50},
		},
		"required": []string{},
	})
	tool := &mcp.Tool{Name: "list_feed", Description: "List stories for the platform, newest first", InputSchema: json.RawMessage(schema)}

	kit.RegisterMCPTool(srv, tool, endpoint, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := getArguments(req)
		return &kit.MCPDecodeResult{Request: &listFeedReq{
			State: stringArg(args, "state"),
			Limit: intArg(args, "limit"),
		}}, nil
	})
}

type listFeedReq struct {
	State string `json:"state"`
	Limit int    `json:"limit"`
}

// --- extract_claims ---

func registerExtractClaims(srv *mcp.Server, database *db.DB, platformID string, auditLog audit.Logger) {
	var endpoint kit.Endpoint = func(ctx context.Context, request any) (any, error) {
		r := request.(*extractClaimsReq)
		versionID := r.StoryVersionID
		if versionID == "" {
			var err error
			versionID, err = database.LatestVersionID(r.StoryID)
			if err != nil {
				return nil, errors.New("story has no versions")
			}
		}
		job, claims, err := extract.Run(database, gate.LexiconClassifier{}, platformID, r.StoryID, versionID, r.MaxClaims)
		if err != nil {
			return nil, err
		}
		return map[string]any{"job_id": job.JobID, "claims": claims}, nil
	}
	endpoint = audited(auditLog, "extract_claims", endpoint)

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"story_id":         map[string]string{"type": "string", "description": "Story ID"},
			"story_version_id": map[string]string{"type": "string", "description": "Version to extract from (default latest)"},
			"max_claims":       map[string]any{"type": "integer", "description": "Extraction cap", "default": 200},
		},
		"required": []string{"story_id"},
	})
	tool := &mcp.Tool{Name: "extract_claims", Description: "Extract claims from a story version's prose", InputSchema: json.RawMessage(schema)}

	kit.RegisterMCPTool(srv, tool, endpoint, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := getArguments(req)
		return &kit.MCPDecodeResult{Request: &extractClaimsReq{
			StoryID:        stringArg(args, "story_id"),
			StoryVersionID: stringArg(args, "story_version_id"),
			MaxClaims:      intArg(args, "max_claims"),
		}}, nil
	})
}

type extractClaimsReq struct {
	StoryID        string `json:"story_id"`
	StoryVersionID string `json:"story_version_id"`
	MaxClaims      int    `json:"max_claims"`
}

// --- link_evidence ---

func registerLinkEvidence(srv *mcp.Server, database *db.DB, auditLog audit.Logger) {
	var endpoint kit.Endpoint = func(ctx context.Context, request any) (any, error) {
		r := request.(*linkEvidenceReq)
		evidence, err := database.PutEvidence(r.BlobURI, r.MediaType, r.Provenance)
		if err != nil {
			return nil, err
		}
		edge, err := database.CreateEdge(r.ClaimID, evidence.EvidenceIDHash, r.Relation, r.Strength)
		if err != nil {
			return nil, err
		}
		return map[string]any{"evidence": evidence, "edge": edge}, nil
	}
	endpoint = audited(auditLog, "link_evidence", endpoint)

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"claim_id":   map[string]string{"type": "string", "description": "Claim to support"},
			"blob_uri":   map[string]string{"type": "string", "description": "Evidence blob location"},
			"media_type": map[string]string{"type": "string", "description": "Evidence media type"},
			"relation":   map[string]string{"type": "string", "description": "supports, contradicts, or context"},
			"strength":   map[string]any{"type": "number", "description": "Edge strength in [0,1]", "default": 0.5},
			"provenance": map[string]any{"type": "object", "description": "Provenance map: source, source_class, url, collected_at"},
		},
		"required": []string{"claim_id", "blob_uri", "relation"},
	})
	tool := &mcp.Tool{Name: "link_evidence", Description: "Register evidence and link it to a claim", InputSchema: json.RawMessage(schema)}

	kit.RegisterMCPTool(srv, tool, endpoint, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := getArguments(req)
		r := &linkEvidenceReq{
			ClaimID:   stringArg(args, "claim_id"),
			BlobURI:   stringArg(args, "blob_uri"),
			MediaType: stringArg(args, "media_type"),
			Relation:  stringArg(args, "relation"),
			Strength:  0.5,
		}
		if v, ok := args["strength"].(float64); ok {
			r.Strength = v
		}
		if prov, ok := args["provenance"].(map[string]any); ok {
			r.Provenance = make(map[string]string, len(prov))
			for k, v := range prov {
				if s, ok := v.(string); ok {
					r.Provenance[k] = s
				}
			}
		}
		return &kit.MCPDecodeResult{Request: r}, nil
	})
}

type linkEvidenceReq struct {
	ClaimID    string            `json:"claim_id"`
	BlobURI    string            `json:"blob_uri"`
	MediaType  string            `json:"media_type"`
	Relation   string            `json:"relation"`
	Strength   float64           `json:"strength"`
	Provenance map[string]string `json:"provenance"`
}

// --- evaluate_publish ---

func registerEvaluatePublish(srv *mcp.Server, publisher *gate.Publisher, auditLog audit.Logger) {
	var endpoint kit.Endpoint = func(ctx context.Context, request any) (any, error) {
		r := request.(*evaluatePublishReq)
		result, err := publisher.EvaluateAndPublish(ctx, r.StoryID, r.StoryVersionID)
		if err == nil {
			return result, nil
		}
		var gateErr *gate.GateFailedError
		if errors.As(err, &gateErr) {
			return map[string]any{
				"code":       "publish_gate_failed",
				"metrics":    gateErr.Metrics,
				"thresholds": gateErr.Thresholds,
			}, nil
		}
		return nil, err
	}
	endpoint = audited(auditLog, "evaluate_publish", endpoint)

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"story_id":         map[string]string{"type": "string", "description": "Story to publish"},
			"story_version_id": map[string]string{"type": "string", "description": "Version to evaluate (default latest)"},
		},
		"required": []string{"story_id"},
	})
	tool := &mcp.Tool{Name: "evaluate_publish", Description: "Run the publish gate; on pass, publish the story and enqueue the event", InputSchema: json.RawMessage(schema)}

	kit.RegisterMCPTool(srv, tool, endpoint, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := getArguments(req)
		return &kit.MCPDecodeResult{Request: &evaluatePublishReq{
			StoryID:        stringArg(args, "story_id"),
			StoryVersionID: stringArg(args, "story_version_id"),
		}}, nil
	})
}

type evaluatePublishReq struct {
	StoryID        string `json:"story_id"`
	StoryVersionID string `json:"story_version_id"`
}

// --- helpers ---

// getArguments decodes the raw tool arguments into a map, mirroring the
// lenient behavior of the previous SDK: malformed or absent arguments
// yield a nil map rather than an error.
func getArguments(req *mcp.CallToolRequest) map[string]any {
	var args map[string]any
	if len(req.Params.Arguments) > 0 {
		_ = json.Unmarshal(req.Params.Arguments, &args)
	}
	return args
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return 0
}
