package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidDocumentID is malformed input, not a missing document
	ErrInvalidDocumentID = fmt.Errorf("%w: document id", storage.ErrInvalidInput)
)

// DocumentService handles workspace documents.
//
// Get, Update and Delete address a document by id alone and do not check
// that it belongs to the caller's workspace. Any holder of an id can read,
// change or remove the document.
type DocumentService struct {
	store  storage.Store
	clock  quartz.Clock
	logger *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(store storage.Store, clock quartz.Clock, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		store:  store,
		clock:  clock,
		logger: logger.Named("document-service"),
	}
}

func parseID(id string) (int64, error) {
	n, err := domain.ParseDocumentID(id)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidDocumentID, id)
	}
	return n, nil
}

// Create stores a new document and returns it with its assigned id
func (s *DocumentService) Create(ctx context.Context, workspace string, req *domain.DocumentRequest) (*domain.Document, error) {
	doc := &domain.Document{
		Workspace: workspace,
		Time:      now(s.clock),
		Date:      req.Date,
		Title:     req.Title,
		Content:   req.Content,
	}
	if err := s.store.Documents().Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Debug("Created document",
		zap.String("workspace", workspace),
		zap.Int64("id", doc.ID))
	return doc, nil
}

// Update replaces title and content. The request date is ignored.
func (s *DocumentService) Update(ctx context.Context, id string, req *domain.DocumentRequest) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	return s.store.Documents().Update(ctx, n, req.Title, req.Content)
}

// Delete removes a document. Deleting an unknown id succeeds.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	return s.store.Documents().Delete(ctx, n)
}

// Get fetches a single document
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}

	doc, err := s.store.Documents().GetByID(ctx, n)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// List returns (id, title) pairs of a workspace, oldest first. An empty
// date lists every document.
func (s *DocumentService) List(ctx context.Context, workspace, date string) ([]domain.DocumentSummary, error) {
	docs, err := s.store.Documents().List(ctx, workspace, date)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, d.Summary())
	}
	return summaries, nil
}
