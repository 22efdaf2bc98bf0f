package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
)

// Store implements an in-memory storage
type Store struct {
	workspaces *WorkspaceStore
	chats      *ChatStore
	documents  *DocumentStore
	presence   *PresenceStore
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		workspaces: &WorkspaceStore{data: make(map[string]*domain.Workspace)},
		chats:      &ChatStore{},
		documents:  &DocumentStore{data: make(map[int64]*domain.Document)},
		presence:   &PresenceStore{data: make(map[presenceKey]time.Time)},
	}
}

func (s *Store) Workspaces() storage.WorkspaceStore { return s.workspaces }
func (s *Store) Chats() storage.ChatStore           { return s.chats }
func (s *Store) Documents() storage.DocumentStore   { return s.documents }
func (s *Store) Presence() storage.PresenceStore    { return s.presence }
func (s *Store) Close() error                       { return nil }
func (s *Store) Ping(ctx context.Context) error     { return nil }

// Execute is not supported: the memory store has no statement language and
// needs no schema.
func (s *Store) Execute(ctx context.Context, statement string) error {
	return fmt.Errorf("%w: memory store cannot execute statements", storage.ErrInvalidInput)
}

// WorkspaceStore implements in-memory workspace storage
type WorkspaceStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Workspace // key: name
	nextID int64
}

func (s *WorkspaceStore) GetByName(ctx context.Context, name string) (*domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, exists := s.data[name]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (s *WorkspaceStore) Create(ctx context.Context, workspace *domain.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[workspace.Name]; exists {
		return storage.ErrAlreadyExists
	}

	s.nextID++
	workspace.ID = s.nextID
	workspace.CreatedAt = time.Now()
	cp := *workspace
	s.data[workspace.Name] = &cp
	return nil
}

// ChatStore implements in-memory chat storage. Messages are kept in
// insertion order, which is also ID order.
type ChatStore struct {
	mu     sync.RWMutex
	data   []domain.ChatMessage
	nextID int64
}

func (s *ChatStore) Create(ctx context.Context, msg *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg.ID = s.nextID
	s.data = append(s.data, *msg)
	return nil
}

func (s *ChatStore) ListByWorkspace(ctx context.Context, workspace string) ([]*domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]*domain.ChatMessage, 0)
	for i := range s.data {
		if s.data[i].Workspace == workspace {
			cp := s.data[i]
			msgs = append(msgs, &cp)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Time.Before(msgs[j].Time)
	})
	return msgs, nil
}

// DocumentStore implements in-memory document storage
type DocumentStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.Document
	nextID int64
}

func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	doc.ID = s.nextID
	cp := *doc
	s.data[doc.ID] = &cp
	return nil
}

func (s *DocumentStore) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *DocumentStore) List(ctx context.Context, workspace, date string) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*domain.Document, 0)
	for _, doc := range s.data {
		if doc.Workspace != workspace {
			continue
		}
		if date != "" && doc.Date != date {
			continue
		}
		cp := *doc
		docs = append(docs, &cp)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Time.Equal(docs[j].Time) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].Time.Before(docs[j].Time)
	})
	return docs, nil
}

func (s *DocumentStore) Update(ctx context.Context, id int64, title, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, exists := s.data[id]; exists {
		doc.Title = title
		doc.Content = content
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	return nil
}

type presenceKey struct {
	workspace string
	userID    string
}

// PresenceStore implements in-memory presence storage
type PresenceStore struct {
	mu   sync.RWMutex
	data map[presenceKey]time.Time
}

func (s *PresenceStore) Upsert(ctx context.Context, entry *domain.PresenceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := presenceKey{workspace: entry.Workspace, userID: entry.UserID}
	if last, exists := s.data[key]; exists && last.After(entry.LastPing) {
		return nil
	}
	s.data[key] = entry.LastPing
	return nil
}

func (s *PresenceStore) ListSince(ctx context.Context, workspace string, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0)
	for key, lastPing := range s.data {
		if key.workspace == workspace && !lastPing.Before(since) {
			users = append(users, key.userID)
		}
	}
	sort.Strings(users)
	return users, nil
}
