package service

import (
	"context"
	"slices"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
)

// PresenceService tracks which users of a workspace pinged recently.
// Staleness is a read-time filter; entries are never removed.
type PresenceService struct {
	store  storage.Store
	clock  quartz.Clock
	ttl    time.Duration
	logger *zap.Logger
}

// NewPresenceService creates a new PresenceService. A non-positive ttl
// falls back to domain.PresenceTTL.
func NewPresenceService(store storage.Store, clock quartz.Clock, ttl time.Duration, logger *zap.Logger) *PresenceService {
	if ttl <= 0 {
		ttl = domain.PresenceTTL
	}
	return &PresenceService{
		store:  store,
		clock:  clock,
		ttl:    ttl,
		logger: logger.Named("presence-service"),
	}
}

// Ping records that userID is online now
func (s *PresenceService) Ping(ctx context.Context, workspace, userID string) error {
	return s.store.Presence().Upsert(ctx, &domain.PresenceEntry{
		Workspace: workspace,
		UserID:    userID,
		LastPing:  now(s.clock),
	})
}

// Online lists the users whose last ping is within the ttl window. The
// asking user is included even before their first ping.
func (s *PresenceService) Online(ctx context.Context, workspace, userID string) ([]string, error) {
	since := now(s.clock).Add(-s.ttl)

	users, err := s.store.Presence().ListSince(ctx, workspace, since)
	if err != nil {
		return nil, err
	}
	if userID != "" && !slices.Contains(users, userID) {
		users = append(users, userID)
	}
	return users, nil
}
