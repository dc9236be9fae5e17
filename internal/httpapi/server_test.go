package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vespid-ai/control-plane/internal/authn"
	"github.com/vespid-ai/control-plane/internal/billing"
	"github.com/vespid-ai/control-plane/internal/config"
	"github.com/vespid-ai/control-plane/internal/executor"
	"github.com/vespid-ai/control-plane/internal/gateway"
	"github.com/vespid-ai/control-plane/internal/llm"
	"github.com/vespid-ai/control-plane/internal/oauthcoord"
	"github.com/vespid-ai/control-plane/internal/orgctx"
	"github.com/vespid-ai/control-plane/internal/queue"
	"github.com/vespid-ai/control-plane/internal/secretvault"
	"github.com/vespid-ai/control-plane/internal/sessionrouter"
	"github.com/vespid-ai/control-plane/internal/store/memstore"
	"github.com/vespid-ai/control-plane/internal/toolset"
	"github.com/vespid-ai/control-plane/internal/toolsetbuilder"
	"github.com/vespid-ai/control-plane/internal/workflowrun"
)

// newTestServer builds a fully-wired *Server over the in-memory store, the
// same coordinator graph cmd/server/main.go assembles, minus any real
// external dependency (KEK bytes are supplied directly instead of fetched
// from S3, no OAuth providers are registered).
func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Config{
		AccessTokenTTL:     15 * time.Minute,
		SessionTTL:         30 * 24 * time.Hour,
		AuthTokenSecret:    "test-auth-secret",
		RefreshTokenSecret: "test-refresh-secret",
		OAuthStateSecret:   "test-state-secret",
	}

	st := memstore.New()
	kek := &secretvault.KEK{ID: "test-kek", Bytes: bytes.Repeat([]byte{0x42}, 32)}
	vault := secretvault.New(st, kek, secretvault.DefaultCatalog())

	authnCoord := authn.New(st, cfg)
	orgCtx := orgctx.New(st, cfg)
	providers := oauthcoord.NewProviders()
	oauthCoord := oauthcoord.New(providers, authnCoord, vault, cfg)

	gatewayClient := gateway.New("http://gateway.invalid", "test-gateway-token")
	sessionRouterCoord := sessionrouter.New(st, gatewayClient)
	workflowRunCoord := workflowrun.New(st, queue.NewMemory())
	toolsetBuilderCoord := toolsetbuilder.New(st, toolsetbuilder.DefaultCatalog(), vault, llm.NewDispatcher())
	toolsetCoord := toolset.New(st)
	billingCoord := billing.New(st, nil, "test-webhook-secret", "")
	executorCoord := executor.New(st)

	return &Server{
		Store: st,
		Cfg:   cfg,

		Authn:          authnCoord,
		OrgCtx:         orgCtx,
		OAuth:          oauthCoord,
		Vault:          vault,
		WorkflowRun:    workflowRunCoord,
		SessionRouter:  sessionRouterCoord,
		ToolsetBuilder: toolsetBuilderCoord,
		Toolset:        toolsetCoord,
		Billing:        billingCoord,
		Executor:       executorCoord,
	}
}

func doJSON(t *testing.T, router http.Handler, method, path, accessToken string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// signupAndCreateOrg drives the two bootstrap calls every org-scoped test
// needs: a fresh account, then a fresh organization the caller owns.
func signupAndCreateOrg(t *testing.T, router http.Handler, email string) (accessToken, orgID string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/v1/auth/signup", "", signupRequest{
		Email:       email,
		Password:    "correct horse battery staple",
		DisplayName: "Test User",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: got %d: %s", rec.Code, rec.Body.String())
	}
	var signup authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &signup); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/orgs", signup.AccessToken, createOrgRequest{
		Slug: "acme-" + email,
		Name: "Acme Inc",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create org: got %d: %s", rec.Code, rec.Body.String())
	}
	var org struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &org); err != nil {
		t.Fatalf("decode org response: %v", err)
	}
	return signup.AccessToken, org.ID
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Routes()

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSignupLoginMe(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Routes()

	accessToken, _ := signupAndCreateOrg(t, router, "alice@example.com")

	rec := doJSON(t, router, http.MethodGet, "/v1/me", accessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: got %d: %s", rec.Code, rec.Body.String())
	}

	// Wrong password must fail.
	rec = doJSON(t, router, http.MethodPost, "/v1/auth/login", "", loginRequest{
		Email:    "alice@example.com",
		Password: "wrong password entirely",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("login with wrong password: expected 401, got %d: %s", rec.Code, rec.Body.String())
	}

	// Correct password must succeed.
	rec = doJSON(t, router, http.MethodPost, "/v1/auth/login", "", loginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery staple",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMeWithoutAuthIsUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Routes()

	rec := doJSON(t, router, http.MethodGet, "/v1/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous /v1/me, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWorkflowCreateListGet(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Routes()

	accessToken, orgID := signupAndCreateOrg(t, router, "bob@example.com")

	req := httptest.NewRequest(http.MethodPost, "/v1/orgs/"+orgID+"/workflows", bytes.NewReader(mustJSON(t, createWorkflowRequest{
		Name: "My Workflow",
		DSL:  map[string]any{"steps": []any{}},
	})))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Org-Id", orgID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create workflow: got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created workflow: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created workflow has no id")
	}

	// Listing without X-Org-Id must fail closed in strict mode.
	req = httptest.NewRequest(http.MethodGet, "/v1/orgs/"+orgID+"/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusForbidden {
		t.Fatalf("list workflows without org header: expected a client error, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/orgs/"+orgID+"/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Org-Id", orgID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list workflows: got %d: %s", rec.Code, rec.Body.String())
	}
	var page pageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page response: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/orgs/"+orgID+"/workflows/"+created.ID, nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Org-Id", orgID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get workflow: got %d: %s", rec.Code, rec.Body.String())
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestInternalRouteRequiresServiceToken(t *testing.T) {
	srv := newTestServer(t)
	srv.Cfg.InternalAPIServiceToken = "the-service-token"
	router := srv.Routes()

	rec := doJSON(t, router, http.MethodPost, "/internal/v1/channels/trigger-run", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a service token, got %d: %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/internal/v1/channels/trigger-run", bytes.NewReader(mustJSON(t, map[string]any{})))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", "wrong-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a wrong service token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOrgScopedRouteRejectsNonMember(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Routes()

	_, orgID := signupAndCreateOrg(t, router, "owner@example.com")
	outsiderToken, _ := signupAndCreateOrg(t, router, "outsider@example.com")

	req := httptest.NewRequest(http.MethodGet, "/v1/orgs/"+orgID+"/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+outsiderToken)
	req.Header.Set("X-Org-Id", orgID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden && rec.Code != http.StatusNotFound {
		t.Fatalf("expected a non-member to be rejected, got %d: %s", rec.Code, rec.Body.String())
	}
}
