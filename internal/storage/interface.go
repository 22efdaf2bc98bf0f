package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// WorkspaceStore defines the interface for workspace credential storage
type WorkspaceStore interface {
	// GetByName retrieves a workspace by its unique name
	GetByName(ctx context.Context, name string) (*domain.Workspace, error)

	// Create creates a new workspace. Returns ErrAlreadyExists if the name is taken.
	Create(ctx context.Context, workspace *domain.Workspace) error
}

// ChatStore defines the interface for chat message storage
type ChatStore interface {
	// Create appends a message
	Create(ctx context.Context, msg *domain.ChatMessage) error

	// ListByWorkspace returns all messages of a workspace, oldest first
	ListByWorkspace(ctx context.Context, workspace string) ([]*domain.ChatMessage, error)
}

// DocumentStore defines the interface for document storage
type DocumentStore interface {
	// Create stores a new document and assigns its ID
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document by ID
	GetByID(ctx context.Context, id int64) (*domain.Document, error)

	// List returns the documents of a workspace, oldest first. An empty date
	// disables the date filter.
	List(ctx context.Context, workspace, date string) ([]*domain.Document, error)

	// Update replaces title and content. Updating a missing ID is not an error.
	Update(ctx context.Context, id int64, title, content string) error

	// Delete removes a document. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id int64) error
}

// PresenceStore defines the interface for presence ping storage
type PresenceStore interface {
	// Upsert records a ping. Entries are unique per (workspace, user); an
	// existing entry keeps the later of the two ping times.
	Upsert(ctx context.Context, entry *domain.PresenceEntry) error

	// ListSince returns the user IDs of a workspace whose last ping is at or
	// after since
	ListSince(ctx context.Context, workspace string, since time.Time) ([]string, error)
}

// Store aggregates all storage interfaces
type Store interface {
	Workspaces() WorkspaceStore
	Chats() ChatStore
	Documents() DocumentStore
	Presence() PresenceStore

	// Execute runs a raw statement in the backend's native language. It is
	// only used to bootstrap the schema at startup.
	Execute(ctx context.Context, statement string) error

	// Close closes the storage connection
	Close() error

	// Ping checks if the storage is alive
	Ping(ctx context.Context) error
}
