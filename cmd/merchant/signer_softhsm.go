//go:build softhsm

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alovak/cardflow-merchant/gateway"
	"github.com/alovak/cardflow-merchant/internal/security"
	"github.com/alovak/cardflow-merchant/internal/security/hsm"
)

// newSigner uses the PKCS#11 token at HSM_LIB when set, PEM files otherwise.
func newSigner(cfg *gateway.Config) (gateway.Signer, func(), error) {
	lib := os.Getenv("HSM_LIB")
	if lib == "" {
		return security.NewFileKeyStore(cfg.CertDir), func() {}, nil
	}
	slot, err := strconv.ParseUint(os.Getenv("HSM_SLOT"), 10, 32)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid HSM_SLOT: %w", err)
	}
	p := hsm.NewSoftHSMProvider(lib, uint(slot), os.Getenv("HSM_PIN"))
	if err := p.Open(); err != nil {
		return nil, nil, fmt.Errorf("opening hsm: %w", err)
	}
	return p, p.Close, nil
}
