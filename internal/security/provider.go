package security

import (
	"context"
	"crypto"
	"crypto/rsa"
	"errors"
)

var (
	// ErrKeyNotFound is returned when no key material exists (or can be read) for a merchant.
	ErrKeyNotFound = errors.New("merchant key not found")
	// ErrInvalidKey is returned when key material is not an RSA private key.
	ErrInvalidKey = errors.New("invalid merchant key")
	// ErrSigning is returned when the signing primitive itself fails.
	ErrSigning = errors.New("signing failed")
)

// KeyProvider looks up a merchant's RSA private key by reference (usually the merchant id).
type KeyProvider interface {
	PrivateKey(ctx context.Context, keyRef string) (*rsa.PrivateKey, error)
}

// Signer produces an RSA PKCS#1 v1.5 signature over data hashed with hash.
// Implementations: FileKeyStore (PEM files) and hsm.SoftHSMProvider (PKCS#11).
type Signer interface {
	Sign(ctx context.Context, keyRef string, hash crypto.Hash, data []byte) ([]byte, error)
}
