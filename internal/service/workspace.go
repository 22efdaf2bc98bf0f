package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
	"github.com/sirosfoundation/go-workspace-backend/pkg/identity"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// WorkspaceService handles login and implicit signup
type WorkspaceService struct {
	store  storage.Store
	logger *zap.Logger
}

// NewWorkspaceService creates a new WorkspaceService
func NewWorkspaceService(store storage.Store, logger *zap.Logger) *WorkspaceService {
	return &WorkspaceService{
		store:  store,
		logger: logger.Named("workspace-service"),
	}
}

// Login authenticates against an existing workspace or registers a new one
// under name. On success the token is the encoded workspace name, identical
// for first and later logins.
//
// The empty name registers like any other but never yields a token, since
// its encoding is the empty string that means "no workspace"; such logins
// fail with ErrInvalidCredentials.
//
// Two first logins for the same name are not serialized. The store's unique
// name constraint decides the winner and the loser gets
// storage.ErrAlreadyExists.
func (s *WorkspaceService) Login(ctx context.Context, name, password string) (string, error) {
	encoded := identity.Encode(password)

	ws, err := s.store.Workspaces().GetByName(ctx, name)
	switch {
	case err == nil:
		if ws.Password != encoded {
			s.logger.Debug("Login rejected", zap.String("workspace", name))
			return "", ErrInvalidCredentials
		}
		return issueToken(name)

	case errors.Is(err, storage.ErrNotFound):
		ws = &domain.Workspace{Name: name, Password: encoded}
		if err := s.store.Workspaces().Create(ctx, ws); err != nil {
			return "", err
		}
		s.logger.Info("Registered workspace", zap.String("workspace", name))
		return issueToken(name)

	default:
		return "", err
	}
}

func issueToken(name string) (string, error) {
	t := identity.Encode(name)
	if t == "" {
		return "", ErrInvalidCredentials
	}
	return t, nil
}
