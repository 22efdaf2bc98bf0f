package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage/memory"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage/mongodb"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage/sqlite"
	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
)

// Type defines the type of storage backend
type Type string

const (
	// TypeMemory uses in-memory storage (for testing/development)
	TypeMemory Type = "memory"
	// TypeSQLite uses a local SQLite file (the default)
	TypeSQLite Type = "sqlite"
	// TypeMongoDB uses MongoDB storage
	TypeMongoDB Type = "mongodb"
)

// New creates a storage backend based on the configuration and runs its
// startup schema statements. A failing statement aborts startup.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	storageType := Type(cfg.Storage.Type)

	var (
		store  storage.Store
		schema []string
	)

	switch storageType {
	case TypeMemory:
		store = memory.NewStore()

	case TypeSQLite, "":
		s, err := sqlite.NewStore(ctx, &cfg.Storage.SQLite, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		store, schema = s, sqlite.Schema

	case TypeMongoDB:
		s, err := mongodb.NewStore(ctx, &cfg.Storage.MongoDB, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create MongoDB backend: %w", err)
		}
		store, schema = s, mongodb.Schema

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}

	if err := Bootstrap(ctx, store, schema); err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("Storage backend ready",
		zap.String("type", string(storageType)),
		zap.Int("schema_statements", len(schema)),
	)
	return store, nil
}

// Bootstrap runs each statement through Store.Execute, in order
func Bootstrap(ctx context.Context, store storage.Store, statements []string) error {
	for i, stmt := range statements {
		if err := store.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
