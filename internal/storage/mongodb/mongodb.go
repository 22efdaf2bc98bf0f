package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
)

// Schema lists the index commands, in extended JSON, that Execute runs at
// startup. createIndexes is a no-op for indexes that already exist.
var Schema = []string{
	`{"createIndexes": "workspaces", "indexes": [{"key": {"name": 1}, "name": "name_unique", "unique": true}]}`,
	`{"createIndexes": "chats", "indexes": [{"key": {"workspace": 1, "time": 1, "_id": 1}, "name": "workspace_time"}]}`,
	`{"createIndexes": "docs", "indexes": [{"key": {"workspace": 1, "date": 1, "time": 1}, "name": "workspace_date_time"}]}`,
	`{"createIndexes": "presence", "indexes": [{"key": {"workspace": 1, "user_id": 1}, "name": "workspace_user_unique", "unique": true}]}`,
}

// Store implements MongoDB storage
type Store struct {
	client   *mongo.Client
	database *mongo.Database
	cfg      *config.MongoDBConfig
	logger   *zap.Logger

	workspaces *WorkspaceStore
	chats      *ChatStore
	documents  *DocumentStore
	presence   *PresenceStore
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *config.MongoDBConfig, logger *zap.Logger) (*Store, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(time.Duration(cfg.Timeout) * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)
	counters := database.Collection("counters")

	s := &Store{
		client:   client,
		database: database,
		cfg:      cfg,
		logger:   logger.Named("mongodb"),
	}

	s.workspaces = &WorkspaceStore{collection: database.Collection("workspaces"), counter: counters}
	s.chats = &ChatStore{collection: database.Collection("chats"), counter: counters}
	s.documents = &DocumentStore{collection: database.Collection("docs"), counter: counters}
	s.presence = &PresenceStore{collection: database.Collection("presence")}

	s.logger.Info("MongoDB store connected", zap.String("database", cfg.Database))
	return s, nil
}

func (s *Store) Workspaces() storage.WorkspaceStore { return s.workspaces }
func (s *Store) Chats() storage.ChatStore           { return s.chats }
func (s *Store) Documents() storage.DocumentStore   { return s.documents }
func (s *Store) Presence() storage.PresenceStore    { return s.presence }

// Execute runs a database command written in extended JSON, for example
// {"createIndexes": "docs", "indexes": [...]}. The command name must be the
// first key.
func (s *Store) Execute(ctx context.Context, statement string) error {
	var cmd bson.D
	if err := bson.UnmarshalExtJSON([]byte(statement), false, &cmd); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if err := s.database.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("failed to run command: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// nextID returns the next value of an auto-increment counter document
func nextID(ctx context.Context, counters *mongo.Collection, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Value int64 `bson:"value"`
	}
	err := counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to get next %s: %w", name, err)
	}
	return doc.Value, nil
}
