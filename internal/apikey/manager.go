// Package apikey issues and manages per-user API keys for programmatic access.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nekonik/registry/internal/apperr"
	"github.com/nekonik/registry/internal/metrics"
	"github.com/nekonik/registry/internal/store"
	"github.com/nekonik/registry/internal/validate"
	"github.com/nekonik/registry/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// Page size bounds for List.
const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxPage      = 100000
)

// lastUsedTimeout bounds the background last_used_at write.
const lastUsedTimeout = 5 * time.Second

// Input is the body of create and edit requests.
type Input struct {
	Name        string `json:"name"        validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// Created is returned once, at creation. Secret is never retrievable again.
type Created struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Secret      string    `json:"api_key"`
	CreatedAt   time.Time `json:"created_at"`
}

// Entry is the listed form of a key; the secret is redacted.
type Entry struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Key         string     `json:"api_key"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Principal is the identity an API key resolves to.
type Principal struct {
	User *models.User
	Key  *models.APIKey
}

// Manager owns API key lifecycle. Every operation is scoped to one user.
type Manager struct {
	store     store.Store
	cost      int
	metrics   metrics.Recorder
	validator *validate.Validator
	now       func() time.Time
}

type Option func(*Manager)

// WithCost sets the bcrypt cost for key hashes.
func WithCost(cost int) Option {
	return func(m *Manager) { m.cost = cost }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

func NewManager(s store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     s,
		cost:      bcrypt.DefaultCost,
		metrics:   metrics.Nop{},
		validator: validate.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create issues a key for userID and returns its secret.
func (m *Manager) Create(ctx context.Context, userID uuid.UUID, in Input) (*Created, error) {
	if err := m.validator.Struct(in); err != nil {
		return nil, err
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, apperr.Internal("generate api key", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), m.cost)
	if err != nil {
		return nil, apperr.Internal("hash api key", err)
	}

	now := m.now().UTC()
	key := &models.APIKey{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		KeyHash:     string(hash),
		KeyPrefix:   prefixOf(secret),
		KeySuffix:   suffixOf(secret),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.CreateAPIKey(ctx, key); err != nil {
		m.metrics.RecordAPIKeyOperation("create", "error")
		return nil, apperr.Internal("create api key", err)
	}

	slog.Info("api key created", "user_id", userID, "key_id", key.ID, "key_prefix", key.KeyPrefix)
	m.metrics.RecordAPIKeyOperation("create", "ok")
	return &Created{
		ID:          key.ID,
		Name:        key.Name,
		Description: key.Description,
		Secret:      secret,
		CreatedAt:   key.CreatedAt,
	}, nil
}

// List returns one page of userID's keys, newest first, with the total count.
// A user without keys gets an empty page, not an error.
func (m *Manager) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]Entry, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if page < 1 || page > MaxPage {
		return nil, 0, apperr.Validation(fmt.Sprintf("page must be between 1 and %d", MaxPage))
	}
	if limit < 1 || limit > MaxLimit {
		return nil, 0, apperr.Validation(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}

	keys, total, err := m.store.ListAPIKeys(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, apperr.Internal("list api keys", err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{
			ID:          k.ID,
			Name:        k.Name,
			Description: k.Description,
			Key:         k.Redacted(),
			LastUsedAt:  k.LastUsedAt,
			CreatedAt:   k.CreatedAt,
			UpdatedAt:   k.UpdatedAt,
		})
	}
	return entries, total, nil
}

// Edit renames or redescribes a key. It fails with NotFound unless a key with
// keyID owned by userID exists.
func (m *Manager) Edit(ctx context.Context, userID, keyID uuid.UUID, in Input) error {
	if err := m.validator.Struct(in); err != nil {
		return err
	}

	err := m.store.UpdateAPIKey(ctx, keyID, userID, in.Name, in.Description)
	if errors.Is(err, store.ErrNotFound) {
		m.metrics.RecordAPIKeyOperation("edit", "not_found")
		return apperr.NotFound("api key not found")
	}
	if err != nil {
		m.metrics.RecordAPIKeyOperation("edit", "error")
		return apperr.Internal("update api key", err)
	}

	m.metrics.RecordAPIKeyOperation("edit", "ok")
	return nil
}

// Delete removes a key under the same ownership rule as Edit.
func (m *Manager) Delete(ctx context.Context, userID, keyID uuid.UUID) error {
	err := m.store.DeleteAPIKey(ctx, keyID, userID)
	if errors.Is(err, store.ErrNotFound) {
		m.metrics.RecordAPIKeyOperation("delete", "not_found")
		return apperr.NotFound("api key not found")
	}
	if err != nil {
		m.metrics.RecordAPIKeyOperation("delete", "error")
		return apperr.Internal("delete api key", err)
	}

	slog.Info("api key deleted", "user_id", userID, "key_id", keyID)
	m.metrics.RecordAPIKeyOperation("delete", "ok")
	return nil
}

// Authenticate resolves a raw key to its owner. The key's last_used_at is
// updated in the background.
func (m *Manager) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	if !wellFormed(raw) {
		m.metrics.RecordAPIKeyOperation("authenticate", "invalid")
		return nil, apperr.Auth("invalid api key")
	}

	candidates, err := m.store.GetAPIKeyByPrefix(ctx, prefixOf(raw))
	if err != nil {
		return nil, apperr.Internal("look up api key", err)
	}

	var matched *models.APIKey
	for _, k := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(raw)) == nil {
			matched = k
			break
		}
	}
	if matched == nil {
		m.metrics.RecordAPIKeyOperation("authenticate", "invalid")
		return nil, apperr.Auth("invalid api key")
	}

	user, err := m.store.GetUserByID(ctx, matched.UserID)
	if errors.Is(err, store.ErrNotFound) {
		m.metrics.RecordAPIKeyOperation("authenticate", "invalid")
		return nil, apperr.Auth("invalid api key")
	}
	if err != nil {
		return nil, apperr.Internal("get api key owner", err)
	}
	if !user.IsActive {
		m.metrics.RecordAPIKeyOperation("authenticate", "inactive")
		return nil, apperr.Forbidden("account is inactive")
	}

	go func(id uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), lastUsedTimeout)
		defer cancel()
		if err := m.store.UpdateAPIKeyLastUsed(ctx, id); err != nil {
			slog.Warn("failed to record api key use", "key_id", id, "error", err)
		}
	}(matched.ID)

	m.metrics.RecordAPIKeyOperation("authenticate", "ok")
	return &Principal{User: user, Key: matched}, nil
}
