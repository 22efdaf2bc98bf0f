package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/service"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage/memory"
	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
	"github.com/sirosfoundation/go-workspace-backend/pkg/identity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	clock  *quartz.Mock
}

func setupTestAPI(t *testing.T, mutate ...func(*config.Config)) *testAPI {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Type = "memory"
	for _, m := range mutate {
		m(cfg)
	}

	clock := quartz.NewMock(t)
	logger := zap.NewNop()
	services := service.NewServices(memory.NewStore(), cfg, clock, logger)

	return &testAPI{
		t:      t,
		router: NewRouter(services, cfg, clock, logger),
		clock:  clock,
	}
}

// do sends a request. An empty workspace sends no Authorization header.
func (a *testAPI) do(method, path, workspace, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if workspace != "" {
		req.Header.Set("Authorization", identity.Encode(workspace))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeList[T any](t *testing.T, w *httptest.ResponseRecorder) []T {
	t.Helper()
	var resp struct {
		List []T `json:"list"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.NotNil(t, resp.List, "list must be an array, got %s", w.Body.String())
	return resp.List
}

func TestLogin_SignupThenLogin(t *testing.T) {
	api := setupTestAPI(t)

	w := api.do(http.MethodPost, "/login", "", `{"workspace":"acme","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, identity.Encode("acme"), w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	again := api.do(http.MethodPost, "/login", "", `{"workspace":"acme","password":"pw"}`)
	assert.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, w.Body.String(), again.Body.String())

	bad := api.do(http.MethodPost, "/login", "", `{"workspace":"acme","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
	assert.Empty(t, bad.Body.String())
}

func TestLogin_EmptyWorkspaceIsUnauthorized(t *testing.T) {
	api := setupTestAPI(t)

	for range 2 {
		w := api.do(http.MethodPost, "/login", "", `{"workspace":"","password":""}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Body.String())
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	api := setupTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"not json", "workspace=acme"},
		{"missing password", `{"workspace":"acme"}`},
		{"missing workspace", `{"password":"pw"}`},
		{"legacy id field", `{"id":"acme","password":"pw"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/login", "", tt.body)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Empty(t, w.Body.String())
		})
	}
}

func TestChat(t *testing.T) {
	api := setupTestAPI(t)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/chat", "a", "hello").Code)
	api.clock.Advance(time.Second).MustWait(context.Background())
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/chat", "a", `{"not":"parsed"}`).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/chat", "b", "elsewhere").Code)

	w := api.do(http.MethodGet, "/chat", "a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"hello", `{"not":"parsed"}`}, decodeList[string](t, w))

	// No header: empty workspace, empty list
	w = api.do(http.MethodGet, "/chat", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"list":[]}`, w.Body.String())
}

func TestChat_MalformedAuthorization(t *testing.T) {
	api := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.Header.Set("Authorization", "%%%")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Body.String())
}

type docSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestDocs_Lifecycle(t *testing.T) {
	api := setupTestAPI(t)

	w := api.do(http.MethodPost, "/docs", "w", `{"date":"2024-05-01","title":"Plan","content":"draft"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	list := decodeList[docSummary](t, api.do(http.MethodGet, "/docs", "w", ""))
	require.Len(t, list, 1)
	assert.Equal(t, "Plan", list[0].Title)
	id := list[0].ID

	w = api.do(http.MethodGet, "/docs/"+id, "w", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"title":"Plan","content":"draft"}`, w.Body.String())

	w = api.do(http.MethodPost, "/docs/"+id, "w", `{"title":"Plan v2","content":"final"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/docs/"+id, "w", "")
	assert.JSONEq(t, `{"title":"Plan v2","content":"final"}`, w.Body.String())

	w = api.do(http.MethodDelete, "/docs/"+id, "w", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/docs/"+id, "w", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, NotFoundBody, w.Body.String())
}

func TestDocs_DateFilter(t *testing.T) {
	api := setupTestAPI(t)

	api.do(http.MethodPost, "/docs", "w", `{"date":"mon","title":"a"}`)
	api.do(http.MethodPost, "/docs", "w", `{"date":"tue","title":"b"}`)
	api.do(http.MethodPost, "/docs", "other", `{"date":"mon","title":"c"}`)
	api.do(http.MethodPost, "/docs", "w", `{"date":"null","title":"d"}`)

	tests := []struct {
		name   string
		body   string
		titles []string
	}{
		{"no filter", "", []string{"a", "b", "d"}},
		{"json date", `{"date":"tue"}`, []string{"b"}},
		{"raw date", "mon\n", []string{"a"}},
		{"json without date", `{}`, []string{"a", "b", "d"}},
		{"unknown date", "sun", []string{}},
		{"json null is a literal date", "null", []string{"d"}},
		{"json string is a literal date", `"tue"`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := decodeList[docSummary](t, api.do(http.MethodGet, "/docs", "w", tt.body))
			titles := make([]string, 0, len(list))
			for _, d := range list {
				titles = append(titles, d.Title)
			}
			assert.Equal(t, tt.titles, titles)
		})
	}
}

func TestDocs_MalformedInput(t *testing.T) {
	api := setupTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"create with non-object body", http.MethodPost, "/docs", `"just a string"`},
		{"create with empty body", http.MethodPost, "/docs", ""},
		{"update with bad json", http.MethodPost, "/docs/1", "{"},
		{"get non-numeric id", http.MethodGet, "/docs/abc", ""},
		{"delete non-numeric id", http.MethodDelete, "/docs/abc", ""},
		{"update non-numeric id", http.MethodPost, "/docs/abc", `{"title":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(tt.method, tt.path, "w", tt.body)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Empty(t, w.Body.String())
		})
	}
}

func TestDocs_ItemRoutesIgnoreWorkspace(t *testing.T) {
	api := setupTestAPI(t)

	api.do(http.MethodPost, "/docs", "owner", `{"title":"private","content":"x"}`)
	id := decodeList[docSummary](t, api.do(http.MethodGet, "/docs", "owner", ""))[0].ID

	// Another workspace can read and delete by id
	w := api.do(http.MethodGet, "/docs/"+id, "intruder", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodDelete, "/docs/"+id, "intruder", "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Empty(t, decodeList[docSummary](t, api.do(http.MethodGet, "/docs", "owner", "")))
}

func TestPing(t *testing.T) {
	api := setupTestAPI(t)

	w := api.do(http.MethodPost, "/ping", "w", "alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	// Without a header the ping is dropped silently
	w = api.do(http.MethodPost, "/ping", "", "bob")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	users := decodeList[string](t, api.do(http.MethodPost, "/online_users", "w", ""))
	assert.Equal(t, []string{"alice"}, users)
	users = decodeList[string](t, api.do(http.MethodPost, "/online_users", "", ""))
	assert.Empty(t, users)
}

func TestOnlineUsers_TTL(t *testing.T) {
	api := setupTestAPI(t)
	ctx := context.Background()

	api.do(http.MethodPost, "/ping", "w", "alice")
	api.clock.Advance(100 * time.Second).MustWait(ctx)
	api.do(http.MethodPost, "/ping", "w", "bob")

	users := decodeList[string](t, api.do(http.MethodPost, "/online_users", "w", "carol"))
	assert.Equal(t, []string{"alice", "bob", "carol"}, users)

	// alice's ping is now exactly 300s old: still online
	api.clock.Advance(200 * time.Second).MustWait(ctx)
	users = decodeList[string](t, api.do(http.MethodPost, "/online_users", "w", "bob"))
	assert.Equal(t, []string{"alice", "bob"}, users)

	api.clock.Advance(time.Second).MustWait(ctx)
	users = decodeList[string](t, api.do(http.MethodPost, "/online_users", "w", "bob"))
	assert.Equal(t, []string{"bob"}, users)
}

func TestNotFound(t *testing.T) {
	api := setupTestAPI(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/login"},
		{http.MethodPut, "/chat"},
		{http.MethodDelete, "/chat"},
		{http.MethodDelete, "/docs"},
		{http.MethodGet, "/docs/"},
		{http.MethodGet, "/docs/1/extra"},
		{http.MethodGet, "/chat/"},
		{http.MethodGet, "/CHAT"},
		{http.MethodGet, "/ping"},
		{http.MethodGet, "/online_users"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := api.do(tt.method, tt.path, "w", `{"anything":1}`)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, NotFoundBody, w.Body.String())
			assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
		})
	}
}

func TestLogin_RateLimited(t *testing.T) {
	api := setupTestAPI(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, MaxAttempts: 2, WindowSeconds: 60, LockoutSeconds: 60}
	})

	w := api.do(http.MethodPost, "/login", "", `{"workspace":"acme","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/login", "", `{"workspace":"acme","password":"pw"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, w.Body.String())

	// Lockout is per workspace name
	w = api.do(http.MethodPost, "/login", "", `{"workspace":"other","password":"pw"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	api := setupTestAPI(t, func(c *config.Config) {
		c.Server.CORS.AllowOrigins = []string{"http://app.example"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_DisabledByDefault(t *testing.T) {
	api := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.Header.Set("Origin", "http://app.example")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
