//go:build !softhsm

package main

import (
	"github.com/alovak/cardflow-merchant/gateway"
	"github.com/alovak/cardflow-merchant/internal/security"
)

// newSigner reads merchant keys from PEM files under CERT_DIR.
func newSigner(cfg *gateway.Config) (gateway.Signer, func(), error) {
	return security.NewFileKeyStore(cfg.CertDir), func() {}, nil
}
