package gateway_test

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alovak/cardflow-merchant/gateway"
	"github.com/alovak/cardflow-merchant/gateway/models"
	"github.com/alovak/cardflow-merchant/internal/purchase"
)

var testCreds = models.MerchantCredentials{MerchantID: "M1", TerminalID: "T1"}

func TestFormatData(t *testing.T) {
	auth, err := gateway.NewAuthorization(testCreds, "100.00", gateway.Options{
		PurchaseTime: "230101120000",
		OrderID:      "O1",
		Currency:     "ALL",
	})
	require.NoError(t, err)

	require.Equal(t, "M1;T1;230101120000;O1;008;100.00;;", auth.FormatData())
	// deterministic for identical inputs
	require.Equal(t, auth.FormatData(), auth.FormatData())

	auth, err = gateway.NewAuthorization(testCreds, "5", gateway.Options{
		PurchaseTime: "230101120000",
		OrderID:      "O2",
		Currency:     "usd",
		SessionData:  "sess-42",
	})
	require.NoError(t, err)
	require.Equal(t, "M1;T1;230101120000;O2;840;5;sess-42;", auth.FormatData())
}

func TestNewAuthorization_Defaults(t *testing.T) {
	t.Run("unknown currency falls back to ALL", func(t *testing.T) {
		for _, cur := range []string{"GBP", "", "978"} {
			auth, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{Currency: cur})
			require.NoError(t, err)
			require.Equal(t, "008", auth.CurrencyID(), cur)
		}
		auth, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{Currency: "EUR"})
		require.NoError(t, err)
		require.Equal(t, "978", auth.CurrencyID())
	})

	t.Run("purchase time defaults to now", func(t *testing.T) {
		auth, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{})
		require.NoError(t, err)
		require.NoError(t, purchase.ValidateTime(auth.PurchaseTime()))
	})

	t.Run("purchase time rendered in location", func(t *testing.T) {
		kiritimati := time.FixedZone("UTC+14", 14*60*60)
		auth, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{Location: kiritimati})
		require.NoError(t, err)

		ts, err := purchase.ParseTime(auth.PurchaseTime(), kiritimati)
		require.NoError(t, err)
		require.WithinDuration(t, time.Now(), ts, time.Minute)
	})

	t.Run("invalid explicit purchase time", func(t *testing.T) {
		_, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{PurchaseTime: "2023-01-01"})
		require.ErrorIs(t, err, gateway.ErrInvalidPurchaseTime)
	})

	t.Run("generated order ids differ", func(t *testing.T) {
		a, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{})
		require.NoError(t, err)
		b, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{})
		require.NoError(t, err)
		require.NotEmpty(t, a.OrderID())
		require.NotEqual(t, a.OrderID(), b.OrderID())
	})

	t.Run("order id generator", func(t *testing.T) {
		calls := 0
		gen := func() string { calls++; return "GEN-1" }

		auth, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{OrderIDFunc: gen})
		require.NoError(t, err)
		require.Equal(t, "GEN-1", auth.OrderID())
		require.Equal(t, 1, calls)

		auth, err = gateway.NewAuthorization(testCreds, "1", gateway.Options{OrderID: "EXPLICIT", OrderIDFunc: gen})
		require.NoError(t, err)
		require.Equal(t, "EXPLICIT", auth.OrderID())
		require.Equal(t, 1, calls)

		auth, err = gateway.NewAuthorization(testCreds, "1", gateway.Options{OrderIDFunc: func() string { return "" }})
		require.NoError(t, err)
		require.NotEmpty(t, auth.OrderID())
	})

	t.Run("cert dir", func(t *testing.T) {
		auth, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{})
		require.NoError(t, err)
		require.Equal(t, "cert", auth.CertDir())

		auth, err = gateway.NewAuthorization(testCreds, "1", gateway.Options{CertDir: `keys/\/`})
		require.NoError(t, err)
		require.Equal(t, "keys", auth.CertDir())
	})

	t.Run("digest defaults to sha1", func(t *testing.T) {
		auth, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{})
		require.NoError(t, err)
		require.Equal(t, crypto.SHA1, auth.Digest())
	})

	t.Run("credentials required", func(t *testing.T) {
		_, err := gateway.NewAuthorization(models.MerchantCredentials{MerchantID: "M1"}, "1", gateway.Options{})
		require.ErrorIs(t, err, gateway.ErrMissingCredentials)
	})
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	key := writeMerchantKey(t, dir, "M1")

	opts := gateway.Options{
		PurchaseTime: "230101120000",
		OrderID:      "O1",
		Currency:     "EUR",
		SessionData:  "s",
		CertDir:      dir + "/",
	}
	auth, err := gateway.NewAuthorization(testCreds, "100.00", opts)
	require.NoError(t, err)

	req, err := auth.Generate(context.Background())
	require.NoError(t, err)

	require.Equal(t, models.AuthorizationRequest{
		MerchantID:   "M1",
		TerminalID:   "T1",
		TotalAmount:  "100.00",
		CurrencyID:   "978",
		PurchaseTime: "230101120000",
		OrderID:      "O1",
		SessionData:  "s",
		Signature:    req.Signature,
	}, req)
	require.NotContains(t, req.Signature, "\n")
	raw, err := base64.StdEncoding.DecodeString(req.Signature)
	require.NoError(t, err)
	require.Len(t, raw, key.Size())

	require.NoError(t, auth.Verify(&key.PublicKey, req.Signature))

	// any single altered field breaks the signature
	alter := []struct {
		name  string
		creds models.MerchantCredentials
		total string
		opts  func(o *gateway.Options)
	}{
		{"merchant", models.MerchantCredentials{MerchantID: "M2", TerminalID: "T1"}, "100.00", nil},
		{"terminal", models.MerchantCredentials{MerchantID: "M1", TerminalID: "T2"}, "100.00", nil},
		{"amount", testCreds, "100.0", nil},
		{"time", testCreds, "100.00", func(o *gateway.Options) { o.PurchaseTime = "230101120001" }},
		{"order", testCreds, "100.00", func(o *gateway.Options) { o.OrderID = "O2" }},
		{"currency", testCreds, "100.00", func(o *gateway.Options) { o.Currency = "USD" }},
		{"session", testCreds, "100.00", func(o *gateway.Options) { o.SessionData = "" }},
	}
	for _, c := range alter {
		o := opts
		if c.opts != nil {
			c.opts(&o)
		}
		altered, err := gateway.NewAuthorization(c.creds, c.total, o)
		require.NoError(t, err, c.name)
		require.Error(t, altered.Verify(&key.PublicKey, req.Signature), c.name)
	}
}

func TestGenerate_ConfigurableDigest(t *testing.T) {
	dir := t.TempDir()
	key := writeMerchantKey(t, dir, "M1")

	auth, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{CertDir: dir, Digest: crypto.SHA256})
	require.NoError(t, err)
	req, err := auth.Generate(context.Background())
	require.NoError(t, err)
	require.NoError(t, auth.Verify(&key.PublicKey, req.Signature))

	sha1Auth, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{
		CertDir:      dir,
		PurchaseTime: auth.PurchaseTime(),
		OrderID:      auth.OrderID(),
	})
	require.NoError(t, err)
	require.Error(t, sha1Auth.Verify(&key.PublicKey, req.Signature))
}

func TestGenerate_KeyErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("key not found", func(t *testing.T) {
		auth, err := gateway.NewAuthorization(testCreds, "1", gateway.Options{CertDir: dir})
		require.NoError(t, err)
		_, err = auth.Generate(context.Background())
		require.ErrorIs(t, err, gateway.ErrKeyNotFound)
		require.False(t, errors.Is(err, gateway.ErrSigningFailed))
	})

	t.Run("invalid key", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "BAD.pem"), []byte("-----BEGIN NOTHING-----\n"), 0o600))
		auth, err := gateway.NewAuthorization(models.MerchantCredentials{MerchantID: "BAD", TerminalID: "T1"}, "1", gateway.Options{CertDir: dir})
		require.NoError(t, err)
		_, err = auth.Generate(context.Background())
		require.ErrorIs(t, err, gateway.ErrInvalidKey)
	})

	t.Run("key ref overrides merchant id", func(t *testing.T) {
		key := writeMerchantKey(t, dir, "shared")
		creds := models.MerchantCredentials{MerchantID: "M9", TerminalID: "T1", KeyRef: "shared"}
		auth, err := gateway.NewAuthorization(creds, "1", gateway.Options{CertDir: dir})
		require.NoError(t, err)
		req, err := auth.Generate(context.Background())
		require.NoError(t, err)
		require.NoError(t, auth.Verify(&key.PublicKey, req.Signature))
	})
}

type signerFunc func(ctx context.Context, keyRef string, hash crypto.Hash, data []byte) ([]byte, error)

func (f signerFunc) Sign(ctx context.Context, keyRef string, hash crypto.Hash, data []byte) ([]byte, error) {
	return f(ctx, keyRef, hash, data)
}

func TestGenerate_CustomSigner(t *testing.T) {
	var gotRef, gotData string
	var gotHash crypto.Hash
	signer := signerFunc(func(ctx context.Context, keyRef string, hash crypto.Hash, data []byte) ([]byte, error) {
		gotRef, gotHash, gotData = keyRef, hash, string(data)
		return []byte{0xde, 0xad, 0xbe, 0xef}, nil
	})

	auth, err := gateway.NewAuthorization(testCreds, "100.00", gateway.Options{
		PurchaseTime: "230101120000",
		OrderID:      "O1",
		Signer:       signer,
	})
	require.NoError(t, err)
	req, err := auth.Generate(context.Background())
	require.NoError(t, err)

	require.Equal(t, "M1", gotRef)
	require.Equal(t, crypto.SHA1, gotHash)
	require.Equal(t, "M1;T1;230101120000;O1;008;100.00;;", gotData)
	require.Equal(t, "3q2+7w==", req.Signature)

	failing := signerFunc(func(context.Context, string, crypto.Hash, []byte) ([]byte, error) {
		return nil, errors.New("token removed")
	})
	auth, err = gateway.NewAuthorization(testCreds, "1", gateway.Options{Signer: failing})
	require.NoError(t, err)
	_, err = auth.Generate(context.Background())
	require.ErrorIs(t, err, gateway.ErrSigningFailed)
	require.True(t, strings.Contains(err.Error(), "token removed"))
}

func TestAuthorizationRequest_Form(t *testing.T) {
	req := models.AuthorizationRequest{
		MerchantID: "M1", TerminalID: "T1", TotalAmount: "100.00", CurrencyID: "008",
		PurchaseTime: "230101120000", OrderID: "O1", SessionData: "", Signature: "c2ln",
	}
	form := req.Form()
	require.Len(t, form, len(req.Fields()))
	for _, f := range req.Fields() {
		require.Contains(t, form, f)
	}
	require.Equal(t, "100.00", form.Get("total_amount"))
	require.Equal(t, "c2ln", form.Get("signature"))
	require.Equal(t, "", form.Get("session_data"))
}
