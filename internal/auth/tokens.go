package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carried by an access token. Subject holds the user id.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// TokenProvider issues HS256 access tokens and opaque refresh tokens.
type TokenProvider struct {
	key          []byte
	issuer       string
	audience     string
	accessTTL    time.Duration
	refreshBytes int
	now          func() time.Time
}

func NewTokenProvider(cfg config.TokensConfig) (*TokenProvider, error) {
	key, err := DeriveAccessTokenKey([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("derive access token key: %w", err)
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive")
	}
	refreshBytes := cfg.RefreshTokenBytes
	if refreshBytes <= 0 {
		refreshBytes = 64
	}
	return &TokenProvider{
		key:          key,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		accessTTL:    cfg.AccessTTL,
		refreshBytes: refreshBytes,
		now:          time.Now,
	}, nil
}

// CreateAccessToken signs a token for user and returns it with its UTC
// expiry.
func (p *TokenProvider) CreateAccessToken(user *entities.User) (string, time.Time, error) {
	if user == nil || user.ID <= 0 || user.Email == "" {
		return "", time.Time{}, ErrInvalidToken
	}

	now := p.now().UTC()
	expires := now.Add(p.accessTTL)
	claims := &Claims{
		Name: user.Email,
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// CreateRefreshToken returns a random opaque token.
func (p *TokenProvider) CreateRefreshToken() (string, error) {
	buf := make([]byte, p.refreshBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Validate checks signature, algorithm, issuer, audience and expiry.
func (p *TokenProvider) Validate(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return p.key, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func TokenFromHeader(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}
