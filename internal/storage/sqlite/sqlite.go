// Package sqlite implements storage.Store on an SQLite database file using
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
)

// Schema lists the statements that create the tables. They are idempotent
// and are run through Store.Execute at startup.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS docs (
		id INTEGER PRIMARY KEY,
		workspace TEXT NOT NULL,
		time INTEGER NOT NULL,
		date TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_docs_workspace_time ON docs(workspace, time)`,
	`CREATE TABLE IF NOT EXISTS workspaces (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chat (
		id INTEGER PRIMARY KEY,
		time INTEGER NOT NULL,
		workspace TEXT NOT NULL,
		content TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_workspace_time ON chat(workspace, time)`,
	`CREATE TABLE IF NOT EXISTS online_users (
		workspace TEXT NOT NULL,
		user_id TEXT NOT NULL,
		last_ping INTEGER NOT NULL,
		UNIQUE(workspace, user_id)
	)`,
}

// Store implements SQLite storage
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	workspaces *WorkspaceStore
	chats      *ChatStore
	documents  *DocumentStore
	presence   *PresenceStore
}

// NewStore opens (creating if needed) the database file at cfg.Path. The
// schema is not created here; run Schema through Execute.
func NewStore(ctx context.Context, cfg *config.SQLiteConfig, logger *zap.Logger) (*Store, error) {
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: statements are serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger.Named("sqlite")}
	s.workspaces = &WorkspaceStore{db: db}
	s.chats = &ChatStore{db: db}
	s.documents = &DocumentStore{db: db}
	s.presence = &PresenceStore{db: db}

	s.logger.Info("SQLite store opened", zap.String("path", cfg.Path))
	return s, nil
}

func (s *Store) Workspaces() storage.WorkspaceStore { return s.workspaces }
func (s *Store) Chats() storage.ChatStore           { return s.chats }
func (s *Store) Documents() storage.DocumentStore   { return s.documents }
func (s *Store) Presence() storage.PresenceStore    { return s.presence }

func (s *Store) Execute(ctx context.Context, statement string) error {
	if _, err := s.db.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("SQL error: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	s.logger.Info("Closing SQLite store")
	return s.db.Close()
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
// SQLite reports it only through the message text.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// WorkspaceStore implements SQLite workspace storage
type WorkspaceStore struct {
	db *sql.DB
}

func (s *WorkspaceStore) GetByName(ctx context.Context, name string) (*domain.Workspace, error) {
	var (
		ws      domain.Workspace
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, password, created_at FROM workspaces WHERE name = ?", name,
	).Scan(&ws.ID, &ws.Name, &ws.Password, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	ws.CreatedAt = time.Unix(created, 0).UTC()
	return &ws, nil
}

func (s *WorkspaceStore) Create(ctx context.Context, workspace *domain.Workspace) error {
	workspace.CreatedAt = time.Now().UTC().Truncate(time.Second)

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO workspaces (name, password, created_at) VALUES (?, ?, ?)",
		workspace.Name, workspace.Password, workspace.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	if workspace.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read workspace id: %w", err)
	}
	return nil
}

// ChatStore implements SQLite chat storage
type ChatStore struct {
	db *sql.DB
}

func (s *ChatStore) Create(ctx context.Context, msg *domain.ChatMessage) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO chat (workspace, time, content) VALUES (?, ?, ?)",
		msg.Workspace, msg.Time.Unix(), msg.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	if msg.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read chat message id: %w", err)
	}
	return nil
}

func (s *ChatStore) ListByWorkspace(ctx context.Context, workspace string) ([]*domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, workspace, time, content FROM chat WHERE workspace = ? ORDER BY time ASC, id ASC",
		workspace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := make([]*domain.ChatMessage, 0)
	for rows.Next() {
		var (
			msg domain.ChatMessage
			ts  int64
		)
		if err := rows.Scan(&msg.ID, &msg.Workspace, &ts, &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg.Time = time.Unix(ts, 0).UTC()
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// DocumentStore implements SQLite document storage
type DocumentStore struct {
	db *sql.DB
}

func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO docs (workspace, time, date, title, content) VALUES (?, ?, ?, ?, ?)",
		doc.Workspace, doc.Time.Unix(), doc.Date, doc.Title, doc.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	if doc.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read document id: %w", err)
	}
	return nil
}

const documentColumns = "id, workspace, time, date, title, content"

func scanDocument(scan func(dest ...any) error) (*domain.Document, error) {
	var (
		doc domain.Document
		ts  int64
	)
	if err := scan(&doc.ID, &doc.Workspace, &ts, &doc.Date, &doc.Title, &doc.Content); err != nil {
		return nil, err
	}
	doc.Time = time.Unix(ts, 0).UTC()
	return &doc, nil
}

func (s *DocumentStore) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM docs WHERE id = ?", id)
	doc, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (s *DocumentStore) List(ctx context.Context, workspace, date string) ([]*domain.Document, error) {
	query := "SELECT " + documentColumns + " FROM docs WHERE workspace = ?"
	args := []any{workspace}
	if date != "" {
		query += " AND date = ?"
		args = append(args, date)
	}
	query += " ORDER BY time ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *DocumentStore) Update(ctx context.Context, id int64, title, content string) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE docs SET title = ?, content = ? WHERE id = ?", title, content, id,
	); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM docs WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// PresenceStore implements SQLite presence storage
type PresenceStore struct {
	db *sql.DB
}

func (s *PresenceStore) Upsert(ctx context.Context, entry *domain.PresenceEntry) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO online_users (workspace, user_id, last_ping) VALUES (?, ?, ?)
		ON CONFLICT(workspace, user_id) DO UPDATE SET last_ping = MAX(last_ping, excluded.last_ping)`,
		entry.Workspace, entry.UserID, entry.LastPing.Unix(),
	); err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}
	return nil
}

func (s *PresenceStore) ListSince(ctx context.Context, workspace string, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM online_users WHERE workspace = ? AND last_ping >= ? ORDER BY user_id",
		workspace, since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]string, 0)
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, fmt.Errorf("failed to scan presence: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
