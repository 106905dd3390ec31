// Package accounts implements registration, sign-in and the refresh token
// lifecycle.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/metrics"
	"github.com/Togather-Foundation/eventhub/internal/sanitize"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/rs/zerolog"
)

var (
	ErrEmailTaken          = errors.New("email is already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("token is not valid")
)

type PasswordHasher interface {
	HashContext(ctx context.Context, password string) (string, error)
	VerifyContext(ctx context.Context, password, stored string) (bool, error)
}

type TokenIssuer interface {
	CreateAccessToken(user *entities.User) (string, time.Time, error)
	CreateRefreshToken() (string, error)
}

type Service struct {
	uows       storage.Factory
	hasher     PasswordHasher
	tokens     TokenIssuer
	refreshTTL time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

func NewService(uows storage.Factory, hasher PasswordHasher, tokens TokenIssuer, refreshTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		uows:       uows,
		hasher:     hasher,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		now:        time.Now,
		logger:     logger.With().Str("component", "accounts").Logger(),
	}
}

type RegisterParams struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Email       string
	Password    string
}

type RegisterResult struct {
	IsEmailConfirmed bool
	UserID           int64
}

type LoginParams struct {
	Email    string
	Password string
}

// Tokens is an access/refresh pair with absolute UTC expiries.
type Tokens struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// Register creates a DefaultUser account with an unconfirmed email. Emails
// are matched exactly.
func (s *Service) Register(ctx context.Context, p RegisterParams) (result RegisterResult, err error) {
	defer func() { s.record("register", err) }()

	uow := s.uows.New()
	taken, err := uow.Users().Any(ctx, storage.Eq("email", p.Email))
	if err != nil {
		return RegisterResult{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return RegisterResult{}, ErrEmailTaken
	}

	hash, err := s.hasher.HashContext(ctx, p.Password)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}

	user := &entities.User{
		FirstName:        sanitize.Line(p.FirstName),
		LastName:         sanitize.Line(p.LastName),
		DateOfBirth:      p.DateOfBirth.UTC(),
		Email:            p.Email,
		PasswordHash:     hash,
		IsEmailConfirmed: false,
		Role:             entities.RoleDefaultUser,
	}
	if err := uow.Users().Add(ctx, user); err != nil {
		return RegisterResult{}, err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, storage.ErrDuplicate) {
			return RegisterResult{}, ErrEmailTaken
		}
		return RegisterResult{}, fmt.Errorf("save user: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	return RegisterResult{IsEmailConfirmed: user.IsEmailConfirmed, UserID: user.ID}, nil
}

// Login returns a fresh token pair. Unknown email and wrong password produce
// the same error.
func (s *Service) Login(ctx context.Context, p LoginParams) (tokens Tokens, err error) {
	defer func() { s.record("login", err) }()

	uow := s.uows.New()
	user, err := uow.Users().FirstOrDefault(ctx, storage.Filter(storage.Eq("email", p.Email)))
	if err != nil {
		return Tokens{}, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return Tokens{}, ErrInvalidCredentials
	}

	ok, err := s.hasher.VerifyContext(ctx, p.Password, user.PasswordHash)
	if err != nil {
		if ctx.Err() != nil {
			return Tokens{}, err
		}
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("stored password hash is unreadable")
		return Tokens{}, ErrInvalidCredentials
	}
	if !ok {
		return Tokens{}, ErrInvalidCredentials
	}

	access, accessExpires, err := s.tokens.CreateAccessToken(user)
	if err != nil {
		return Tokens{}, fmt.Errorf("create access token: %w", err)
	}
	refresh, err := s.tokens.CreateRefreshToken()
	if err != nil {
		return Tokens{}, fmt.Errorf("create refresh token: %w", err)
	}
	refreshExpires := s.now().UTC().Add(s.refreshTTL)

	if err := uow.RefreshTokens().Add(ctx, &entities.RefreshToken{
		Token:     refresh,
		ExpiresAt: refreshExpires,
		UserID:    user.ID,
	}); err != nil {
		return Tokens{}, err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		return Tokens{}, fmt.Errorf("save refresh token: %w", err)
	}

	return Tokens{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExpires,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshExpires,
	}, nil
}

// Refresh rotates a refresh token and issues a new access token. Presenting
// an expired token revokes every refresh token of its user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (tokens Tokens, err error) {
	defer func() { s.record("refresh", err) }()

	uow := s.uows.New()
	stored, err := uow.RefreshTokens().FirstOrDefault(ctx,
		storage.Filter(storage.Eq("token", refreshToken)).Including("User"))
	if err != nil {
		return Tokens{}, fmt.Errorf("find refresh token: %w", err)
	}
	if stored == nil || stored.User == nil {
		return Tokens{}, ErrInvalidRefreshToken
	}

	now := s.now().UTC()
	if stored.Expired(now) {
		n, err := uow.RefreshTokens().DeleteWhere(ctx, storage.Eq("user_id", stored.UserID))
		if err != nil {
			return Tokens{}, fmt.Errorf("revoke refresh tokens: %w", err)
		}
		s.logger.Info().Int64("user_id", stored.UserID).Int64("revoked", n).Msg("expired refresh token presented")
		return Tokens{}, ErrInvalidRefreshToken
	}

	rotated, err := s.tokens.CreateRefreshToken()
	if err != nil {
		return Tokens{}, fmt.Errorf("create refresh token: %w", err)
	}
	access, accessExpires, err := s.tokens.CreateAccessToken(stored.User)
	if err != nil {
		return Tokens{}, fmt.Errorf("create access token: %w", err)
	}

	stored.Token = rotated
	stored.ExpiresAt = now.Add(s.refreshTTL)
	stored.User = nil
	if err := uow.RefreshTokens().Update(ctx, stored); err != nil {
		return Tokens{}, err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		return Tokens{}, fmt.Errorf("save refresh token: %w", err)
	}

	return Tokens{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExpires,
		RefreshToken:          rotated,
		RefreshTokenExpiresAt: stored.ExpiresAt,
	}, nil
}

// Logout revokes every refresh token of the user. Logging out twice is not an
// error.
func (s *Service) Logout(ctx context.Context, userID int64) (err error) {
	defer func() { s.record("logout", err) }()

	n, err := s.uows.New().RefreshTokens().DeleteWhere(ctx, storage.Eq("user_id", userID))
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.logger.Debug().Int64("user_id", userID).Int64("revoked", n).Msg("user signed out")
	return nil
}

// AdminParams describes the administrator created at startup.
type AdminParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// EnsureAdmin creates an Admin account unless a user with the email exists.
// It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, p AdminParams) (bool, error) {
	uow := s.uows.New()
	exists, err := uow.Users().Any(ctx, storage.Eq("email", p.Email))
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	if exists {
		return false, nil
	}

	hash, err := s.hasher.HashContext(ctx, p.Password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	admin := &entities.User{
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		DateOfBirth:      time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		Email:            p.Email,
		PasswordHash:     hash,
		IsEmailConfirmed: true,
		Role:             entities.RoleAdmin,
	}
	if err := uow.Users().Add(ctx, admin); err != nil {
		return false, err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		return false, fmt.Errorf("save admin: %w", err)
	}
	s.logger.Info().Int64("user_id", admin.ID).Msg("admin user bootstrapped")
	return true, nil
}

func (s *Service) record(operation string, err error) {
	result := metrics.Result(err)
	if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInvalidRefreshToken) {
		result = "rejected"
	}
	metrics.AuthOperationsTotal.WithLabelValues(operation, result).Inc()
}
