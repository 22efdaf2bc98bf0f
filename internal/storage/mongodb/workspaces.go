package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
)

// WorkspaceStore implements MongoDB workspace storage
type WorkspaceStore struct {
	collection *mongo.Collection
	counter    *mongo.Collection
}

func (s *WorkspaceStore) GetByName(ctx context.Context, name string) (*domain.Workspace, error) {
	var ws domain.Workspace
	err := s.collection.FindOne(ctx, bson.M{"name": name}).Decode(&ws)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &ws, nil
}

func (s *WorkspaceStore) Create(ctx context.Context, workspace *domain.Workspace) error {
	id, err := nextID(ctx, s.counter, "workspace_id")
	if err != nil {
		return err
	}

	workspace.ID = id
	workspace.CreatedAt = time.Now().UTC()

	if _, err := s.collection.InsertOne(ctx, workspace); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}
