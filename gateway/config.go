package gateway

import (
	"crypto"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alovak/cardflow-merchant/gateway/models"
	"github.com/alovak/cardflow-merchant/internal/security"
)

// Config is a configuration for the merchant application
type Config struct {
	HTTPAddr   string
	MerchantID string
	TerminalID string
	// CertDir holds <MerchantID>.pem private keys.
	CertDir string
	// Digest names the signature hash ("sha1", "sha256", ...). The bank verifies sha1.
	Digest string
	// Timezone is an IANA name for purchase timestamps (e.g., "Europe/Tirane"); empty means local time.
	Timezone string
	// SuccessURL and ErrorURL are where the gateway forwards the customer after a callback.
	SuccessURL string
	ErrorURL   string
	// GatewayOrigin is the Referer (or remote address) callbacks must come from.
	GatewayOrigin string
	// OriginPolicy is "referer-or-remote" (default) or "referer".
	OriginPolicy string
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:     "localhost:8080",
		CertDir:      security.DefaultCertDir,
		Digest:       "sha1",
		OriginPolicy: "referer-or-remote",
	}
}

// ConfigFromEnv overlays environment variables on DefaultConfig.
func ConfigFromEnv() *Config {
	def := DefaultConfig()
	return &Config{
		HTTPAddr:      getenv("HTTP_ADDR", def.HTTPAddr),
		MerchantID:    getenv("MERCHANT_ID", def.MerchantID),
		TerminalID:    getenv("TERMINAL_ID", def.TerminalID),
		CertDir:       getenv("CERT_DIR", def.CertDir),
		Digest:        getenv("SIGN_DIGEST", def.Digest),
		Timezone:      getenv("PURCHASE_TZ", def.Timezone),
		SuccessURL:    getenv("SUCCESS_URL", def.SuccessURL),
		ErrorURL:      getenv("ERROR_URL", def.ErrorURL),
		GatewayOrigin: getenv("GATEWAY_ORIGIN", def.GatewayOrigin),
		OriginPolicy:  getenv("ORIGIN_POLICY", def.OriginPolicy),
	}
}

// Validate reports the first missing or malformed setting.
func (c *Config) Validate() error {
	required := []struct{ name, v string }{
		{"MERCHANT_ID", c.MerchantID},
		{"TERMINAL_ID", c.TerminalID},
		{"SUCCESS_URL", c.SuccessURL},
		{"ERROR_URL", c.ErrorURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.v) == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	if strings.TrimSpace(c.GatewayOrigin) == "" {
		return ErrMissingOrigin
	}
	if _, err := c.Hash(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Credentials() models.MerchantCredentials {
	return models.MerchantCredentials{MerchantID: c.MerchantID, TerminalID: c.TerminalID}
}

func (c *Config) Hash() (crypto.Hash, error) {
	return security.ParseHash(c.Digest)
}

func (c *Config) Policy() (OriginPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(c.OriginPolicy)) {
	case "", "referer-or-remote":
		return OriginRefererOrRemoteAddr, nil
	case "referer":
		return OriginRefererOnly, nil
	default:
		return 0, fmt.Errorf("unsupported ORIGIN_POLICY=%s", c.OriginPolicy)
	}
}

// Location returns the purchase time zone; nil means process local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid PURCHASE_TZ=%s: %w", c.Timezone, err)
	}
	return loc, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
