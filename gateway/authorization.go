package gateway

import (
	"context"
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alovak/cardflow-merchant/gateway/models"
	"github.com/alovak/cardflow-merchant/internal/currency"
	"github.com/alovak/cardflow-merchant/internal/purchase"
	"github.com/alovak/cardflow-merchant/internal/security"
)

// Signer signs data with the private key identified by keyRef (RSA PKCS#1 v1.5).
// security.FileKeyStore reads <certDir>/<keyRef>.pem; hsm.SoftHSMProvider uses a PKCS#11 token.
type Signer = security.Signer

// Options tune a single authorization. Zero values select the defaults.
type Options struct {
	// PurchaseTime in yyMMddHHmmss; default is the current time in Location.
	// Unlike the legacy integration, which signed any explicit value as given, a value
	// that is not a valid yyMMddHHmmss timestamp is rejected with ErrInvalidPurchaseTime.
	PurchaseTime string
	// Location renders the default purchase time; nil means process local time.
	Location *time.Location
	// OrderID wins over OrderIDFunc; with neither (or an empty result) a unique id is generated.
	OrderID     string
	OrderIDFunc func() string
	// Currency is a symbolic code (ALL, USD, EUR); anything else resolves to ALL ("008").
	Currency    string
	SessionData string
	// CertDir is the key lookup root used when Signer is nil; trailing separators are stripped.
	CertDir string
	// Digest defaults to SHA-1, which is what the bank verifies against.
	Digest crypto.Hash
	Signer Signer
}

// Authorization is one purchase attempt with all options resolved.
// It is immutable after NewAuthorization.
type Authorization struct {
	creds        models.MerchantCredentials
	totalAmount  string
	purchaseTime string
	orderID      string
	currencyID   string
	sessionData  string
	certDir      string
	digest       crypto.Hash
	signer       Signer
}

// NewAuthorization resolves opts for a purchase of totalAmount. totalAmount is used
// verbatim in the canonical string, so "100.00" and "100" sign differently.
func NewAuthorization(creds models.MerchantCredentials, totalAmount string, opts Options) (*Authorization, error) {
	if creds.MerchantID == "" || creds.TerminalID == "" {
		return nil, ErrMissingCredentials
	}

	a := &Authorization{
		creds:        creds,
		totalAmount:  totalAmount,
		purchaseTime: opts.PurchaseTime,
		orderID:      opts.OrderID,
		currencyID:   currency.Resolve(opts.Currency),
		sessionData:  opts.SessionData,
		certDir:      security.CleanDir(opts.CertDir),
		digest:       opts.Digest,
		signer:       opts.Signer,
	}

	if a.purchaseTime == "" {
		a.purchaseTime = purchase.Now(opts.Location)
	} else if err := purchase.ValidateTime(a.purchaseTime); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPurchaseTime, err)
	}

	if a.orderID == "" && opts.OrderIDFunc != nil {
		a.orderID = opts.OrderIDFunc()
	}
	if a.orderID == "" {
		a.orderID = purchase.NewOrderID()
	}

	if a.digest == 0 {
		a.digest = crypto.SHA1
	}
	if a.signer == nil {
		a.signer = security.NewFileKeyStore(a.certDir)
	}
	return a, nil
}

func (a *Authorization) MerchantID() string   { return a.creds.MerchantID }
func (a *Authorization) TerminalID() string   { return a.creds.TerminalID }
func (a *Authorization) TotalAmount() string  { return a.totalAmount }
func (a *Authorization) PurchaseTime() string { return a.purchaseTime }
func (a *Authorization) OrderID() string      { return a.orderID }
func (a *Authorization) CurrencyID() string   { return a.currencyID }
func (a *Authorization) SessionData() string  { return a.sessionData }
func (a *Authorization) CertDir() string      { return a.certDir }
func (a *Authorization) Digest() crypto.Hash  { return a.digest }

// FormatData returns the canonical string the bank verifies:
//
//	merchantId;terminalId;purchaseTime;orderId;currencyId;totalAmount;sessionData;
//
// The field order and trailing semicolon are part of the bank contract.
func (a *Authorization) FormatData() string {
	var sb strings.Builder
	for _, f := range []string{
		a.creds.MerchantID,
		a.creds.TerminalID,
		a.purchaseTime,
		a.orderID,
		a.currencyID,
		a.totalAmount,
		a.sessionData,
	} {
		sb.WriteString(f)
		sb.WriteByte(';')
	}
	return sb.String()
}

// Generate signs the canonical string and returns the request ready for the gateway.
func (a *Authorization) Generate(ctx context.Context) (models.AuthorizationRequest, error) {
	raw, err := a.signer.Sign(ctx, a.creds.Ref(), a.digest, []byte(a.FormatData()))
	if err != nil {
		return models.AuthorizationRequest{}, a.signError(err)
	}

	return models.AuthorizationRequest{
		MerchantID:   a.creds.MerchantID,
		TerminalID:   a.creds.TerminalID,
		TotalAmount:  a.totalAmount,
		CurrencyID:   a.currencyID,
		PurchaseTime: a.purchaseTime,
		OrderID:      a.orderID,
		SessionData:  a.sessionData,
		Signature:    base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func (a *Authorization) signError(err error) error {
	switch {
	case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrInvalidKey), errors.Is(err, ErrSigningFailed),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("signing order %s for merchant %s: %w", a.orderID, a.creds.MerchantID, err)
	default:
		return fmt.Errorf("signing order %s for merchant %s: %v: %w", a.orderID, a.creds.MerchantID, err, ErrSigningFailed)
	}
}

// Verify checks a base64 signature against the canonical string with the merchant's public key.
func (a *Authorization) Verify(pub *rsa.PublicKey, signature string) error {
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}
	return security.VerifyPKCS1v15(pub, a.digest, []byte(a.FormatData()), raw)
}
