// Core API struct and shared HTTP handlers — auth, health, feed, and the
// route registry for the newsgate publication service.
package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/hazyhaar/newsgate/internal/auth"
	"github.com/hazyhaar/newsgate/internal/db"
	"github.com/hazyhaar/newsgate/internal/gate"
)

// handleRe validates handle format: ASCII alphanumeric, underscore, hyphen only.
var handleRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// maxBodySize is the maximum HTTP body size for write endpoints.
const maxBodySize = 2 * 1024 * 1024 // 2MB

// PublishRateLimiter bounds publish attempts per IP (30 req/60s).
var PublishRateLimiter = NewRateLimiter(30, 60*time.Second)

type API struct {
	db         *db.DB
	auth       *auth.Auth
	publisher  *gate.Publisher
	classifier gate.Classifier
	platformID string
}

func New(database *db.DB, a *auth.Auth, publisher *gate.Publisher, platformID string) *API {
	return &API{
		db:         database,
		auth:       a,
		publisher:  publisher,
		classifier: gate.LexiconClassifier{},
		platformID: platformID,
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	// Health
	mux.HandleFunc("GET /v1/health", a.handleHealth)

	// Auth
	mux.HandleFunc("POST /v1/register", a.handleRegister)
	mux.HandleFunc("POST /v1/login", a.handleLogin)

	// Stories
	mux.HandleFunc("GET /v1/feed", a.handleFeed)
	mux.HandleFunc("POST /v1/story", a.handleCreateStory)
	mux.HandleFunc("GET /v1/story/{story_id}", a.handleGetStory)
	mux.HandleFunc("POST /v1/story/{story_id}/version", a.handleCreateVersion)

	// Publish gate
	mux.HandleFunc("POST /v1/story/{story_id}/publish",
		RateLimitMiddleware(PublishRateLimiter, a.handlePublish))

	// Claims
	mux.HandleFunc("POST /v1/story/{story_id}/extract", a.handleExtract)
	mux.HandleFunc("GET /v1/story/{story_id}/claims", a.handleListClaims)
	mux.HandleFunc("POST /v1/claim/{claim_id}/status", a.handleSetClaimStatus)
	mux.HandleFunc("POST /v1/claim/{claim_id}/correction", a.handleCreateCorrection)

	// Evidence
	mux.HandleFunc("POST /v1/evidence", a.handleRegisterEvidence)
	mux.HandleFunc("POST /v1/evidence/presign", a.handlePresignUpload)
	mux.HandleFunc("GET /v1/evidence/{evidence_id_hash}", a.handleGetEvidence)
	mux.HandleFunc("POST /v1/claim/{claim_id}/evidence", a.handleLinkEvidence)

	// Verification tasks
	mux.HandleFunc("POST /v1/task", a.handleCreateTask)
	mux.HandleFunc("GET /v1/tasks", a.handleListTasks)
	mux.HandleFunc("POST /v1/task/{task_id}/transition", a.handleTransitionTask)

	// Outbox inspection
	mux.HandleFunc("GET /v1/outbox", a.handleListOutbox)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]any{"ok": true, "platform_id": a.platformID})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle   string `json:"handle"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Handle == "" || req.Password == "" {
		jsonError(w, "handle and password are required", http.StatusBadRequest)
		return
	}
	if !handleRe.MatchString(req.Handle) {
		jsonError(w, "handle may only contain letters, digits, underscore, hyphen", http.StatusBadRequest)
		return
	}
	switch req.Role {
	case "", "reporter", "editor":
	default:
		jsonError(w, "invalid role", http.StatusBadRequest)
		return
	}

	hash, err := a.auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	user, err := a.db.CreateUser(db.CreateUserInput{
		Handle:       req.Handle,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	})
	if err != nil {
		jsonError(w, "handle already taken", http.StatusConflict)
		return
	}

	token, err := a.auth.GenerateToken(user.ID, user.Handle, user.Role)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusCreated, map[string]any{"user": user, "token": token})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, hash, err := a.db.GetUserByHandle(req.Handle)
	if err != nil || !a.auth.CheckPassword(hash, req.Password) {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := a.auth.GenerateToken(user.ID, user.Handle, user.Role)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

// --- Helpers ---

func jsonResp(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// jsonCoded writes the coded envelope used by the publish contract.
func jsonCoded(w http.ResponseWriter, status int, code, msg string, extra map[string]any) {
	body := map[string]any{"code": code, "message": msg}
	for k, v := range extra {
		body[k] = v
	}
	jsonResp(w, status, body)
}
