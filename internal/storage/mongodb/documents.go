package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
)

// DocumentStore implements MongoDB document storage
type DocumentStore struct {
	collection *mongo.Collection
	counter    *mongo.Collection // For auto-increment IDs
}

func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	id, err := nextID(ctx, s.counter, "doc_id")
	if err != nil {
		return err
	}

	doc.ID = id
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *DocumentStore) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	var doc domain.Document
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) List(ctx context.Context, workspace, date string) ([]*domain.Document, error) {
	filter := bson.M{"workspace": workspace}
	if date != "" {
		filter["date"] = date
	}
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	docs := make([]*domain.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentStore) Update(ctx context.Context, id int64, title, content string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"title": title, "content": content}},
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
