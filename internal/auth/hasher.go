package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash is returned by Verify for a stored value that is not
// "base64(hash)-base64(salt)".
var ErrMalformedHash = errors.New("malformed password hash")

const hashSeparator = "-"

// PasswordHasher hashes passwords with Argon2id and a random salt.
type PasswordHasher struct {
	saltSize    int
	hashSize    uint32
	iterations  uint32
	memoryKiB   uint32
	parallelism uint8
}

func NewPasswordHasher(cfg config.HashConfig) *PasswordHasher {
	return &PasswordHasher{
		saltSize:    cfg.SaltSize,
		hashSize:    uint32(cfg.HashSize),
		iterations:  uint32(cfg.Iterations),
		memoryKiB:   uint32(cfg.MemoryKiB),
		parallelism: uint8(cfg.Parallelism),
	}
}

// Hash returns base64(hash) + "-" + base64(salt). The standard base64
// alphabet has no '-', so the separator is unambiguous.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := h.derive(password, salt, h.hashSize)
	return base64.StdEncoding.EncodeToString(key) + hashSeparator + base64.StdEncoding.EncodeToString(salt), nil
}

// Verify recomputes the hash with the stored salt and compares in constant
// time.
func (h *PasswordHasher) Verify(password, stored string) (bool, error) {
	hashPart, saltPart, ok := strings.Cut(stored, hashSeparator)
	if !ok || hashPart == "" || saltPart == "" || strings.Contains(saltPart, hashSeparator) {
		return false, ErrMalformedHash
	}
	expected, err := base64.StdEncoding.DecodeString(hashPart)
	if err != nil {
		return false, ErrMalformedHash
	}
	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil {
		return false, ErrMalformedHash
	}

	actual := h.derive(password, salt, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

// HashContext is Hash run off the calling goroutine; it returns early with
// ctx.Err() when ctx ends first.
func (h *PasswordHasher) HashContext(ctx context.Context, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	type result struct {
		hash string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		hash, err := h.Hash(password)
		done <- result{hash, err}
	}()
	select {
	case r := <-done:
		return r.hash, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// VerifyContext is the context-aware form of Verify.
func (h *PasswordHasher) VerifyContext(ctx context.Context, password, stored string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := h.Verify(password, stored)
		done <- result{ok, err}
	}()
	select {
	case r := <-done:
		return r.ok, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (h *PasswordHasher) derive(password string, salt []byte, size uint32) []byte {
	return argon2.IDKey([]byte(password), salt, h.iterations, h.memoryKiB, h.parallelism, size)
}
