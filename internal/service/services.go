package service

import (
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
)

// Services aggregates all application services
type Services struct {
	Workspace *WorkspaceService
	Chat      *ChatService
	Document  *DocumentService
	Presence  *PresenceService
}

// NewServices creates a new Services instance. All services share the
// clock, so tests can drive timestamps and the presence window together.
func NewServices(store storage.Store, cfg *config.Config, clock quartz.Clock, logger *zap.Logger) *Services {
	return &Services{
		Workspace: NewWorkspaceService(store, logger),
		Chat:      NewChatService(store, clock, logger),
		Document:  NewDocumentService(store, clock, logger),
		Presence:  NewPresenceService(store, clock, cfg.Presence.TTL(), logger),
	}
}

// now returns the clock's time at the one-second resolution of the
// persisted timestamps
func now(clock quartz.Clock) time.Time {
	return clock.Now().UTC().Truncate(time.Second)
}
