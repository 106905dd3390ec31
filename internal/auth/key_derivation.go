package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// DerivedKeyLength is the length of derived keys in bytes (HMAC-SHA256).
	DerivedKeyLength = 32

	purposeAccessToken = "eventhub-access-jwt-v1"
)

// ErrInvalidMasterSecret is returned when the master secret is empty.
var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey derives a 32-byte key from masterSecret with HKDF-SHA256. Keys
// derived for different purposes are independent of each other and of the
// master secret.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}

	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	derivedKey := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(reader, derivedKey); err != nil {
		return nil, err
	}
	return derivedKey, nil
}

// DeriveAccessTokenKey derives the HS256 key for access tokens.
func DeriveAccessTokenKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeAccessToken)
}
