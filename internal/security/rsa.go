package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
)

// ParsePrivateKey decodes the first PEM block of data as an RSA private key,
// either "RSA PRIVATE KEY" (PKCS#1) or "PRIVATE KEY" (PKCS#8).
// Encrypted keys are not supported.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block: %w", ErrInvalidKey)
	}
	if _, encrypted := block.Headers["DEK-Info"]; encrypted || block.Type == "ENCRYPTED PRIVATE KEY" {
		return nil, fmt.Errorf("encrypted private keys are not supported: %w", ErrInvalidKey)
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("pkcs1: %v: %w", err, ErrInvalidKey)
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("pkcs8: %v: %w", err, ErrInvalidKey)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("pkcs8 key is %T, want RSA: %w", parsed, ErrInvalidKey)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block %q: %w", block.Type, ErrInvalidKey)
	}
}

// ParsePublicKey decodes an RSA public key from a PEM "CERTIFICATE", "PUBLIC KEY" or "RSA PUBLIC KEY" block.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block: %w", ErrInvalidKey)
	}
	var pub any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("certificate: %v: %w", err, ErrInvalidKey)
		}
		pub = cert.PublicKey
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("pkix: %v: %w", err, ErrInvalidKey)
		}
		pub = parsed
	case "RSA PUBLIC KEY":
		parsed, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("pkcs1: %v: %w", err, ErrInvalidKey)
		}
		pub = parsed
	default:
		return nil, fmt.Errorf("unexpected PEM block %q: %w", block.Type, ErrInvalidKey)
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want RSA: %w", pub, ErrInvalidKey)
	}
	return key, nil
}

// SignPKCS1v15 hashes data with hash and signs the digest. hash 0 means SHA-1,
// the digest the bank's verifier expects.
func SignPKCS1v15(key *rsa.PrivateKey, hash crypto.Hash, data []byte) ([]byte, error) {
	digest, hash, err := sum(hash, data)
	if err != nil {
		return nil, err
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, hash, digest)
	if err != nil {
		return nil, fmt.Errorf("rsa: %v: %w", err, ErrSigning)
	}
	return sig, nil
}

// VerifyPKCS1v15 reports whether sig is a valid signature of data under pub.
func VerifyPKCS1v15(pub *rsa.PublicKey, hash crypto.Hash, data, sig []byte) error {
	digest, hash, err := sum(hash, data)
	if err != nil {
		return err
	}
	return rsa.VerifyPKCS1v15(pub, hash, digest, sig)
}

func sum(hash crypto.Hash, data []byte) ([]byte, crypto.Hash, error) {
	if hash == 0 {
		hash = crypto.SHA1
	}
	if !hash.Available() {
		return nil, 0, fmt.Errorf("digest %v not available: %w", hash, ErrSigning)
	}
	h := hash.New()
	h.Write(data)
	return h.Sum(nil), hash, nil
}

// ParseHash maps a digest name ("sha1", "SHA-256", ...) to a crypto.Hash. Empty means SHA-1.
func ParseHash(name string) (crypto.Hash, error) {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	switch n {
	case "", "sha1":
		return crypto.SHA1, nil
	case "sha256":
		return crypto.SHA256, nil
	case "sha384":
		return crypto.SHA384, nil
	case "sha512":
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("unsupported digest %q", name)
	}
}
