package security

import (
	"context"
	"crypto"
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultCertDir is the key lookup root used when none is configured.
const DefaultCertDir = "cert"

// FileKeyStore reads PEM encoded private keys from <dir>/<keyRef>.pem.
// Keys are read on every call; the store holds no mutable state and is safe for concurrent use.
type FileKeyStore struct {
	dir string
}

// NewFileKeyStore returns a store rooted at dir. Trailing path separators are stripped;
// an empty dir means DefaultCertDir.
func NewFileKeyStore(dir string) *FileKeyStore {
	return &FileKeyStore{dir: CleanDir(dir)}
}

// CleanDir strips trailing '/' and '\' from dir. Empty input yields DefaultCertDir,
// a dir made only of separators yields the filesystem root.
func CleanDir(dir string) string {
	if dir == "" {
		return DefaultCertDir
	}
	trimmed := strings.TrimRight(dir, `/\`)
	if trimmed == "" {
		return string(filepath.Separator)
	}
	return trimmed
}

// Dir returns the lookup root.
func (s *FileKeyStore) Dir() string { return s.dir }

// Path returns the key file location for keyRef.
func (s *FileKeyStore) Path(keyRef string) string {
	return filepath.Join(s.dir, keyRef+".pem")
}

// PrivateKey implements KeyProvider.
func (s *FileKeyStore) PrivateKey(ctx context.Context, keyRef string) (*rsa.PrivateKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if keyRef == "" || strings.ContainsAny(keyRef, `/\`) || keyRef == "." || keyRef == ".." {
		return nil, fmt.Errorf("key reference %q: %w", keyRef, ErrKeyNotFound)
	}
	path := s.Path(keyRef)
	data, err := os.ReadFile(path)
	if err != nil {
		// absent and unreadable are the same failure for the caller
		return nil, fmt.Errorf("reading %s: %v: %w", path, err, ErrKeyNotFound)
	}
	key, err := ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return key, nil
}

// Sign implements Signer with the key found at Path(keyRef).
func (s *FileKeyStore) Sign(ctx context.Context, keyRef string, hash crypto.Hash, data []byte) ([]byte, error) {
	key, err := s.PrivateKey(ctx, keyRef)
	if err != nil {
		return nil, err
	}
	return SignPKCS1v15(key, hash, data)
}
