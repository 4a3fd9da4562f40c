package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nekonik/registry/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// DuplicateError reports which unique column an insert collided with.
// It matches ErrDuplicateKey under errors.Is.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return "duplicate " + e.Field
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, userName string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, profile map[string]any) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID, page, limit int) ([]*models.APIKey, int, error)
	UpdateAPIKey(ctx context.Context, id, userID uuid.UUID, name, description string) error
	DeleteAPIKey(ctx context.Context, id, userID uuid.UUID) error
}
