package domain

import (
	"errors"
	"time"
)

// ErrMissingField is returned when a required request field is absent
var ErrMissingField = errors.New("missing required field")

// Workspace represents a tenant namespace. Chat messages, documents and
// presence entries are isolated per workspace name.
type Workspace struct {
	ID        int64     `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Password  string    `json:"-" bson:"password"` // identity-encoded
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// LoginRequest is the body of POST /login. Submitting an unknown workspace
// name registers it.
type LoginRequest struct {
	Workspace *string `json:"workspace"`
	Password  *string `json:"password"`
}

// Validate checks that both fields were supplied. Empty strings are allowed.
func (r *LoginRequest) Validate() error {
	if r.Workspace == nil {
		return errors.Join(ErrMissingField, errors.New("workspace"))
	}
	if r.Password == nil {
		return errors.Join(ErrMissingField, errors.New("password"))
	}
	return nil
}

// ListResponse wraps collection responses as {"list": [...]}
type ListResponse[T any] struct {
	List []T `json:"list"`
}

// NewListResponse returns a ListResponse that always encodes a JSON array
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{List: items}
}
