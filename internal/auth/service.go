// Package auth implements account registration, password login, and the
// cache-backed session lifecycle with CSRF binding.
package auth

import (
	"context"
	"crypto/subtle"
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
)

// RegisterInput is the body of a registration request. Password is base64.
type RegisterInput struct {
	UserName string `json:"user_name" validate:"required,min=3,max=32,username"`
	Email    string `json:"email"     validate:"required,email,max=254"`
	Password string `json:"password"  validate:"required"`
	FullName string `json:"full_name" validate:"max=100"`
}

// LoginInput is the body of a login request plus the caller's address.
type LoginInput struct {
	UserName     string `json:"user_name"     validate:"required"`
	Password     string `json:"password"      validate:"required"`
	CaptchaToken string `json:"captcha_token"`
	RemoteIP     string `json:"-"`
}

// Service owns accounts and sessions.
type Service struct {
	store     store.Store
	sessions  *SessionStore
	hasher    *Hasher
	verifier  Verifier
	metrics   metrics.Recorder
	validator *validate.Validator
	now       func() time.Time
}

type Option func(*Service)

// WithVerifier requires a human-verification token on every login.
func WithVerifier(v Verifier) Option {
	return func(s *Service) { s.verifier = v }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, sessions *SessionStore, hasher *Hasher, opts ...Option) *Service {
	s := &Service{
		store:     st,
		sessions:  sessions,
		hasher:    hasher,
		metrics:   metrics.Nop{},
		validator: validate.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionTTL is the lifetime applied to new sessions and their cookies.
func (s *Service) SessionTTL() time.Duration {
	return s.sessions.TTL()
}

// --- Accounts ---

// Register creates an active account. Username and email collisions are
// reported as conflicts by the store's unique constraints.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		if apperr.IsKind(err, apperr.KindValidation) {
			return nil, err
		}
		return nil, apperr.Internal("hash password", err)
	}

	user := &models.User{
		ID:             uuid.New(),
		UserName:       in.UserName,
		Email:          in.Email,
		HashedPassword: hash,
		ProfileData:    map[string]any{"full_name": in.FullName},
		IsActive:       true,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		var dup *store.DuplicateError
		if errors.As(err, &dup) {
			switch dup.Field {
			case "email":
				return nil, apperr.Conflict(fmt.Sprintf("user with email %s already exists", in.Email))
			default:
				return nil, apperr.Conflict(fmt.Sprintf("user with username %s already exists", in.UserName))
			}
		}
		return nil, apperr.Internal("create user", err)
	}

	slog.Info("user registered", "user_id", user.ID, "user_name", user.UserName)
	return user, nil
}

// Profile returns the current stored account for userID.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("get user", err)
	}
	return user, nil
}

// UpdateProfile replaces the user's free-form profile data.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, profile map[string]any) (*models.User, error) {
	if profile == nil {
		return nil, apperr.Validation("profile_data is required")
	}
	err := s.store.UpdateUserProfile(ctx, userID, profile)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("update profile", err)
	}
	return s.Profile(ctx, userID)
}

// DeleteAccount removes the account along with its API keys, then ends the
// caller's session. A failed row delete leaves the session in place.
func (s *Service) DeleteAccount(ctx context.Context, userID uuid.UUID, sessionID string) error {
	err := s.store.DeleteUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("user not found")
	}
	if err != nil {
		return apperr.Internal("delete user", err)
	}

	// The account is gone either way; a stale session expires with its TTL.
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		slog.Warn("failed to delete session of deleted account", "user_id", userID, "error", err)
	}

	slog.Info("account deleted", "user_id", userID)
	return nil
}

// --- Sessions ---

// Login authenticates a user and stores a new session record.
//
// Unknown usernames and wrong passwords produce the same error after the same
// amount of bcrypt work. Inactive accounts are only reported once the password
// has been verified.
func (s *Service) Login(ctx context.Context, in LoginInput) (*models.Session, error) {
	if s.verifier != nil {
		if err := s.verifier.Verify(ctx, in.CaptchaToken, in.RemoteIP); err != nil {
			slog.Warn("login verification failed", "user_name", in.UserName, "remote_ip", in.RemoteIP, "error", err)
			s.metrics.RecordLogin("verification_failed")
			return nil, apperr.Auth("invalid verification")
		}
	}

	if err := s.validator.Struct(in); err != nil {
		s.metrics.RecordLogin("invalid_request")
		return nil, err
	}
	if _, err := DecodePassword(in.Password); err != nil {
		s.metrics.RecordLogin("invalid_request")
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, in.UserName)
	if errors.Is(err, store.ErrNotFound) {
		s.hasher.burnCompare(in.Password)
		slog.Warn("login failed", "user_name", in.UserName, "remote_ip", in.RemoteIP)
		s.metrics.RecordLogin("invalid_credentials")
		return nil, apperr.Auth("invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal("get user", err)
	}

	ok, err := s.hasher.VerifyPassword(in.Password, user.HashedPassword)
	if err != nil {
		return nil, apperr.Internal("verify password", err)
	}
	if !ok {
		slog.Warn("login failed", "user_name", in.UserName, "remote_ip", in.RemoteIP)
		s.metrics.RecordLogin("invalid_credentials")
		return nil, apperr.Auth("invalid credentials")
	}

	if !user.IsActive {
		s.metrics.RecordLogin("inactive")
		return nil, apperr.Forbidden("account is inactive")
	}

	sess, err := s.newSession(user)
	if err != nil {
		return nil, apperr.Internal("create session", err)
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.metrics.RecordLogin("unavailable")
		return nil, apperr.Unavailable("session store unavailable", err)
	}

	slog.Info("login succeeded", "user_id", user.ID, "remote_ip", in.RemoteIP)
	s.metrics.RecordLogin("success")
	return sess, nil
}

func (s *Service) newSession(user *models.User) (*models.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	csrf, err := newCSRFToken()
	if err != nil {
		return nil, err
	}
	return &models.Session{
		ID:            id,
		UserID:        user.ID,
		UserName:      user.UserName,
		Email:         user.Email,
		ProfileData:   user.ProfileData,
		CSRFToken:     csrf,
		IsActive:      user.IsActive,
		UserCreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:     s.now().Add(s.sessions.TTL()),
	}, nil
}

// ValidateSession returns the live session for sessionID if csrf matches its token.
func (s *Service) ValidateSession(ctx context.Context, sessionID, csrf string) (*models.Session, error) {
	if sessionID == "" {
		s.metrics.RecordSessionValidation("missing_session")
		return nil, apperr.NotAcceptable("session id not found")
	}
	if csrf == "" {
		s.metrics.RecordSessionValidation("missing_csrf")
		return nil, apperr.NotAcceptable("csrf token not found")
	}

	sess, found, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		s.metrics.RecordSessionValidation("unavailable")
		return nil, apperr.Unavailable("session store unavailable", err)
	}
	if !found {
		s.metrics.RecordSessionValidation("expired")
		return nil, apperr.Auth("session expired")
	}

	if subtle.ConstantTimeCompare([]byte(csrf), []byte(sess.CSRFToken)) != 1 {
		slog.Warn("csrf mismatch", "user_id", sess.UserID)
		s.metrics.RecordSessionValidation("csrf_mismatch")
		return nil, apperr.Auth("csrf mismatch")
	}

	s.metrics.RecordSessionValidation("ok")
	return sess, nil
}

// Logout destroys the session stored under sessionID. Other sessions of the
// same user are untouched.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperr.NotAcceptable("session id not found")
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperr.Unavailable("session store unavailable", err)
	}
	return nil
}
