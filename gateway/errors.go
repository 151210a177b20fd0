package gateway

import (
	"errors"
	"fmt"

	"github.com/alovak/cardflow-merchant/internal/security"
)

var (
	// ErrKeyNotFound: the merchant's key file is absent or unreadable.
	ErrKeyNotFound = security.ErrKeyNotFound
	// ErrInvalidKey: the key material is not an RSA private key.
	ErrInvalidKey = security.ErrInvalidKey
	// ErrSigningFailed: the signature could not be computed.
	ErrSigningFailed = security.ErrSigning

	ErrInvalidPurchaseTime = errors.New("invalid purchase time")
	ErrMissingCredentials  = errors.New("merchant and terminal id are required")
	ErrInvalidAmount       = errors.New("invalid total amount")
	ErrMissingOrigin       = errors.New("GATEWAY_ORIGIN is required")

	// ErrMissingField: a callback payload lacks a field needed for the acknowledgment.
	ErrMissingField = errors.New("missing notification field")
)

// MissingFieldError names the absent callback field. It matches ErrMissingField with errors.Is.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }
