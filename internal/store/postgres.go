package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nekonik/registry/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

const userColumns = `id, user_name, email, hashed_password, profile_data, is_active, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.HashedPassword, &u.ProfileData,
		&u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	if u.ProfileData == nil {
		u.ProfileData = map[string]any{}
	}
	return &u, nil
}

// CreateUser inserts a user. Username and email uniqueness is left to the
// table constraints so concurrent registrations cannot both succeed.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	profile := user.ProfileData
	if profile == nil {
		profile = map[string]any{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, user_name, email, hashed_password, profile_data, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.UserName, user.Email, user.HashedPassword, profile, user.IsActive, user.CreatedAt)
	if err != nil {
		if dup := duplicateKeyError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, userName string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_name = $1`, userName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id uuid.UUID, profile map[string]any) error {
	if profile == nil {
		profile = map[string]any{}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET profile_data = $2 WHERE id = $1`, id, profile)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the user; their API keys go with them via ON DELETE CASCADE.
func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- API Keys ---

const apiKeyColumns = `id, user_id, name, description, key_hash, key_prefix, key_suffix, last_used_at, created_at, updated_at`

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()

	keys := []*models.APIKey{}
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.Description, &k.KeyHash, &k.KeyPrefix,
			&k.KeySuffix, &k.LastUsedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, description, key_hash, key_prefix, key_suffix, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID, key.UserID, key.Name, key.Description, key.KeyHash, key.KeyPrefix, key.KeySuffix,
		key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if dup := duplicateKeyError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// ListAPIKeys returns one page of the user's keys, newest first, and the total count.
func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID uuid.UUID, page, limit int) ([]*models.APIKey, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM api_keys WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count api keys: %w", err)
	}

	// Normalize pagination
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1
		 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list api keys: %w", err)
	}
	keys, err := scanAPIKeys(rows)
	if err != nil {
		return nil, 0, err
	}
	return keys, total, nil
}

func (s *PostgresStore) UpdateAPIKey(ctx context.Context, id, userID uuid.UUID, name, description string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET name = $3, description = $4, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2`, id, userID, name, description)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteAPIKey(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// uniqueFields maps unique constraints to the column a caller should be told about.
var uniqueFields = map[string]string{
	"users_user_name_key": "user_name",
	"users_email_key":     "email",
	"api_keys_pkey":       "id",
	"users_pkey":          "id",
}

// duplicateKeyError returns a *DuplicateError if err is a unique constraint
// violation, nil otherwise.
func duplicateKeyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" { // unique_violation
		return nil
	}
	field, ok := uniqueFields[pgErr.ConstraintName]
	if !ok {
		field = pgErr.ConstraintName
	}
	return &DuplicateError{Field: field}
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
