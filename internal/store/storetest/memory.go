// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nekonik/registry/internal/store"
	"github.com/nekonik/registry/pkg/models"
)

// Memory is a concurrency-safe in-memory store.Store. It enforces the same
// uniqueness and ownership rules as the Postgres schema. Set Err to make
// every call fail.
type Memory struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	keys  map[uuid.UUID]*models.APIKey

	Err error
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[uuid.UUID]*models.User),
		keys:  make(map[uuid.UUID]*models.APIKey),
	}
}

func (m *Memory) Ping(context.Context) error { return m.Err }

func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	for _, u := range m.users {
		if u.UserName == user.UserName {
			return &store.DuplicateError{Field: "user_name"}
		}
		if u.Email == user.Email {
			return &store.DuplicateError{Field: "email"}
		}
	}
	if _, ok := m.users[user.ID]; ok {
		return &store.DuplicateError{Field: "id"}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *Memory) GetUserByUsername(_ context.Context, userName string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	for _, u := range m.users {
		if u.UserName == userName {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) UpdateUserProfile(_ context.Context, id uuid.UUID, profile map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ProfileData = profile
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	for kid, k := range m.keys {
		if k.UserID == id {
			delete(m.keys, kid)
		}
	}
	return nil
}

// SetActive flips a user's active flag; there is no Store method for it.
func (m *Memory) SetActive(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsActive = active
	}
}

func (m *Memory) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, ok := m.keys[key.ID]; ok {
		return &store.DuplicateError{Field: "id"}
	}
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *Memory) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var out []*models.APIKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if k, ok := m.keys[id]; ok {
		now := time.Now().UTC()
		k.LastUsedAt = &now
	}
	return nil
}

func (m *Memory) ListAPIKeys(_ context.Context, userID uuid.UUID, page, limit int) ([]*models.APIKey, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, 0, m.Err
	}

	var owned []*models.APIKey
	for _, k := range m.keys {
		if k.UserID == userID {
			cp := *k
			owned = append(owned, &cp)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(owned) {
		return []*models.APIKey{}, len(owned), nil
	}
	end := min(start+limit, len(owned))
	return owned[start:end], len(owned), nil
}

func (m *Memory) UpdateAPIKey(_ context.Context, id, userID uuid.UUID, name, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	k, ok := m.keys[id]
	if !ok || k.UserID != userID {
		return store.ErrNotFound
	}
	k.Name = name
	k.Description = description
	k.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) DeleteAPIKey(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	k, ok := m.keys[id]
	if !ok || k.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.keys, id)
	return nil
}

// LastUsed returns the recorded last-use time of a key, or nil.
func (m *Memory) LastUsed(id uuid.UUID) *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[id]; ok {
		return k.LastUsedAt
	}
	return nil
}

var _ store.Store = (*Memory)(nil)
