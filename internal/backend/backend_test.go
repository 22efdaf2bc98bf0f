package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage/memory"
	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
)

func TestNew_MemoryBackend(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type: "memory",
		},
	}

	backend, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = backend.Close() }()

	if backend.Workspaces() == nil {
		t.Error("expected Workspaces() to return non-nil store")
	}
	if backend.Chats() == nil {
		t.Error("expected Chats() to return non-nil store")
	}
	if backend.Documents() == nil {
		t.Error("expected Documents() to return non-nil store")
	}
	if backend.Presence() == nil {
		t.Error("expected Presence() to return non-nil store")
	}
}

func TestNew_SQLiteBackendBootstrapsSchema(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "server.db")},
		},
	}
	ctx := context.Background()

	backend, err := New(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = backend.Close() }()

	// Tables exist, so writes succeed straight away
	msg := &domain.ChatMessage{Workspace: "w", Time: time.Unix(1, 0), Content: "hi"}
	if err := backend.Chats().Create(ctx, msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := backend.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNew_SQLiteReopenIsIdempotent(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "server.db")},
		},
	}

	for i := 0; i < 2; i++ {
		backend, err := New(context.Background(), cfg, zap.NewNop())
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		_ = backend.Close()
	}
}

func TestNew_UnsupportedType(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type: "unsupported",
		},
	}

	_, err := New(context.Background(), cfg, zap.NewNop())
	if err == nil {
		t.Error("expected error for unsupported storage type")
	}
}

func TestBootstrap_StopsOnFirstError(t *testing.T) {
	store := memory.NewStore()

	err := Bootstrap(context.Background(), store, []string{"anything"})
	if err == nil {
		t.Fatal("expected memory store to reject statements")
	}
	if err := Bootstrap(context.Background(), store, nil); err != nil {
		t.Errorf("empty schema should succeed, got %v", err)
	}
}
