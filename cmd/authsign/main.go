package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alovak/cardflow-merchant/gateway"
	"github.com/alovak/cardflow-merchant/gateway/models"
	"github.com/alovak/cardflow-merchant/internal/currency"
	"github.com/alovak/cardflow-merchant/internal/purchase"
	"github.com/alovak/cardflow-merchant/internal/security"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fail("%v", err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("authsign", flag.ContinueOnError)
	var (
		flagMerchant  = fs.String("merchant", os.Getenv("MERCHANT_ID"), "bank-issued merchant id")
		flagTerminal  = fs.String("terminal", os.Getenv("TERMINAL_ID"), "bank-issued terminal id")
		flagAmount    = fs.String("amount", "", "total amount, signed exactly as written (e.g. 100.00)")
		flagCurrency  = fs.String("currency", "ALL", "currency: "+strings.Join(currency.Symbols(), "|"))
		flagOrder     = fs.String("order", "", "order id (generated when empty)")
		flagNumeric   = fs.Int("numeric-order", 0, "generate a numeric order id of this many digits")
		flagTime      = fs.String("time", "", "purchase time yyMMddHHmmss (now when empty)")
		flagTZ        = fs.String("tz", os.Getenv("PURCHASE_TZ"), "IANA zone for the purchase time (local when empty)")
		flagSession   = fs.String("session", "", "opaque session data")
		flagCertDir   = fs.String("cert-dir", security.DefaultCertDir, "directory holding <merchant>.pem")
		flagDigest    = fs.String("digest", "sha1", "signature digest: sha1|sha256|sha384|sha512")
		flagCanonical = fs.Bool("canonical", false, "print the canonical string only, do not sign")
		flagVerify    = fs.String("verify", "", "PEM public key or certificate to check the fresh signature against")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *flagMerchant == "" || *flagTerminal == "" {
		return fmt.Errorf("-merchant and -terminal are required")
	}
	if err := gateway.ValidateAmount(*flagAmount); err != nil {
		return err
	}
	digest, err := security.ParseHash(*flagDigest)
	if err != nil {
		return err
	}
	var loc *time.Location
	if *flagTZ != "" {
		if loc, err = time.LoadLocation(*flagTZ); err != nil {
			return fmt.Errorf("invalid -tz: %w", err)
		}
	}

	opts := gateway.Options{
		PurchaseTime: *flagTime,
		Location:     loc,
		OrderID:      *flagOrder,
		Currency:     *flagCurrency,
		SessionData:  *flagSession,
		CertDir:      *flagCertDir,
		Digest:       digest,
	}
	if *flagNumeric > 0 {
		opts.OrderIDFunc = purchase.NumericOrderID(*flagNumeric)
	}

	creds := models.MerchantCredentials{MerchantID: *flagMerchant, TerminalID: *flagTerminal}
	auth, err := gateway.NewAuthorization(creds, *flagAmount, opts)
	if err != nil {
		return err
	}

	if *flagCanonical {
		fmt.Fprintln(out, auth.FormatData())
		return nil
	}

	req, err := auth.Generate(context.Background())
	if err != nil {
		return err
	}

	if *flagVerify != "" {
		return verify(out, auth, req, *flagVerify, loc)
	}

	enc, _ := json.MarshalIndent(req, "", "  ")
	fmt.Fprintln(out, string(enc))
	return nil
}

// verify checks the signature with the bank-side public key before anything is sent.
func verify(out io.Writer, auth *gateway.Authorization, req models.AuthorizationRequest, pubPath string, loc *time.Location) error {
	data, err := os.ReadFile(pubPath)
	if err != nil {
		return fmt.Errorf("reading public key: %w", err)
	}
	pub, err := security.ParsePublicKey(data)
	if err != nil {
		return err
	}
	if err := auth.Verify(pub, req.Signature); err != nil {
		return fmt.Errorf("signature does not verify against %s: %w", pubPath, err)
	}
	ts, err := purchase.ParseTime(req.PurchaseTime, loc)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signature ok: order %s, purchase time %s\n", req.OrderID, ts.Format(time.RFC3339))
	return nil
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
