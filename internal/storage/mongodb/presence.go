package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
)

// PresenceStore implements MongoDB presence storage
type PresenceStore struct {
	collection *mongo.Collection
}

func (s *PresenceStore) Upsert(ctx context.Context, entry *domain.PresenceEntry) error {
	filter := bson.M{"workspace": entry.Workspace, "user_id": entry.UserID}
	update := bson.M{"$max": bson.M{"last_ping": entry.LastPing}}
	opts := options.Update().SetUpsert(true)

	_, err := s.collection.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts inserted concurrently; the loser now matches the
		// winner's document.
		_, err = s.collection.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}
	return nil
}

func (s *PresenceStore) ListSince(ctx context.Context, workspace string, since time.Time) ([]string, error) {
	filter := bson.M{"workspace": workspace, "last_ping": bson.M{"$gte": since}}
	opts := options.Find().
		SetProjection(bson.M{"user_id": 1}).
		SetSort(bson.D{{Key: "user_id", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var rows []struct {
		UserID string `bson:"user_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode presence: %w", err)
	}

	users := make([]string, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.UserID)
	}
	return users, nil
}
