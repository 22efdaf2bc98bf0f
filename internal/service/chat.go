package service

import (
	"context"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
)

// ChatService handles workspace chat
type ChatService struct {
	store  storage.Store
	clock  quartz.Clock
	logger *zap.Logger
}

// NewChatService creates a new ChatService
func NewChatService(store storage.Store, clock quartz.Clock, logger *zap.Logger) *ChatService {
	return &ChatService{
		store:  store,
		clock:  clock,
		logger: logger.Named("chat-service"),
	}
}

// Post appends a message stamped with the current time
func (s *ChatService) Post(ctx context.Context, workspace, content string) error {
	msg := &domain.ChatMessage{
		Workspace: workspace,
		Time:      now(s.clock),
		Content:   content,
	}
	return s.store.Chats().Create(ctx, msg)
}

// List returns the message contents of a workspace, oldest first
func (s *ChatService) List(ctx context.Context, workspace string) ([]string, error) {
	msgs, err := s.store.Chats().ListByWorkspace(ctx, workspace)
	if err != nil {
		return nil, err
	}

	contents := make([]string, 0, len(msgs))
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}
	return contents, nil
}
