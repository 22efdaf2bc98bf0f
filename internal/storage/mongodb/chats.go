package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
)

// ChatStore implements MongoDB chat storage
type ChatStore struct {
	collection *mongo.Collection
	counter    *mongo.Collection
}

func (s *ChatStore) Create(ctx context.Context, msg *domain.ChatMessage) error {
	id, err := nextID(ctx, s.counter, "chat_id")
	if err != nil {
		return err
	}

	msg.ID = id
	if _, err := s.collection.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

func (s *ChatStore) ListByWorkspace(ctx context.Context, workspace string) ([]*domain.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{"workspace": workspace}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	msgs := make([]*domain.ChatMessage, 0)
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode chat messages: %w", err)
	}
	return msgs, nil
}
