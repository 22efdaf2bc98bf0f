package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sirosfoundation/go-workspace-backend/pkg/identity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWorkspaceMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		header      *string
		wantName    string
		wantPresent bool
		wantErr     bool
	}{
		{name: "missing header", header: nil, wantName: "", wantPresent: false},
		{name: "encoded name", header: ptr(identity.Encode("acme")), wantName: "acme", wantPresent: true},
		{name: "empty header", header: ptr(""), wantName: "", wantPresent: true},
		{name: "malformed header", header: ptr("!!not base64!!"), wantPresent: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(WorkspaceMiddleware())

			var gotName string
			var gotPresent bool
			var gotErr error
			r.GET("/", func(c *gin.Context) {
				gotName, gotPresent, gotErr = GetWorkspace(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != nil {
				req.Header["Authorization"] = []string{*tt.header}
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("middleware must not reject, got %d", w.Code)
			}
			if gotPresent != tt.wantPresent {
				t.Errorf("present = %v, want %v", gotPresent, tt.wantPresent)
			}
			if tt.wantErr {
				if !errors.Is(gotErr, identity.ErrMalformed) {
					t.Errorf("err = %v, want ErrMalformed", gotErr)
				}
				return
			}
			if gotErr != nil {
				t.Errorf("unexpected err %v", gotErr)
			}
			if gotName != tt.wantName {
				t.Errorf("name = %q, want %q", gotName, tt.wantName)
			}
		})
	}
}

func TestBodyCache(t *testing.T) {
	r := gin.New()
	r.Use(BodyCache(1 << 10))

	var raw string
	var bound struct {
		Title string `json:"title"`
	}
	r.POST("/", func(c *gin.Context) {
		raw = string(RawBody(c))
		_ = c.ShouldBindBodyWithJSON(&bound)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"hello"}`))
	r.ServeHTTP(httptest.NewRecorder(), req)

	if raw != `{"title":"hello"}` {
		t.Errorf("raw body = %q", raw)
	}
	if bound.Title != "hello" {
		t.Errorf("bound title = %q", bound.Title)
	}
}

func TestBodyCache_Truncates(t *testing.T) {
	r := gin.New()
	r.Use(BodyCache(4))

	var raw string
	r.POST("/", func(c *gin.Context) {
		raw = string(RawBody(c))
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	r.ServeHTTP(httptest.NewRecorder(), req)

	if raw != "0123" {
		t.Errorf("raw body = %q, want first 4 bytes", raw)
	}
}

func TestBodyCache_EmptyBody(t *testing.T) {
	r := gin.New()
	r.Use(BodyCache(1 << 10))

	var raw []byte
	r.GET("/", func(c *gin.Context) {
		raw = RawBody(c)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if raw == nil || len(raw) != 0 {
		t.Errorf("expected empty non-nil body, got %v", raw)
	}
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(WorkspaceMiddleware(), Logger(zap.New(core)))
	r.GET("/chat", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.Header.Set("Authorization", identity.Encode("acme"))
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("Request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status field = %v", fields["status"])
	}
	if fields["workspace"] != "acme" {
		t.Errorf("workspace field = %v", fields["workspace"])
	}
	if fields["path"] != "/chat" {
		t.Errorf("path field = %v", fields["path"])
	}
}

func ptr(s string) *string { return &s }
