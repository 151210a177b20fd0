package gateway

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"

	"github.com/alovak/cardflow-merchant/gateway/models"
)

// OrderConfirmer records a purchase the gateway reported as approved. A non-nil error
// makes the merchant answer "reverse" so the bank voids the payment.
type OrderConfirmer interface {
	ConfirmOrder(ctx context.Context, payload models.NotificationPayload) error
}

// OrderConfirmerFunc adapts a function to OrderConfirmer.
type OrderConfirmerFunc func(ctx context.Context, payload models.NotificationPayload) error

func (f OrderConfirmerFunc) ConfirmOrder(ctx context.Context, payload models.NotificationPayload) error {
	return f(ctx, payload)
}

// API is a HTTP API exposing authorization signing and the gateway callback endpoint
type API struct {
	cfg       *Config
	signer    Signer
	confirmer OrderConfirmer
	logger    *slog.Logger
	digest    crypto.Hash
	policy    OriginPolicy
	loc       *time.Location
}

// NewAPI refuses a config without GatewayOrigin: an empty expectation would accept
// any callback that carries no Referer.
func NewAPI(cfg *Config, signer Signer, confirmer OrderConfirmer, logger *slog.Logger) (*API, error) {
	if strings.TrimSpace(cfg.GatewayOrigin) == "" {
		return nil, ErrMissingOrigin
	}
	digest, err := cfg.Hash()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		cfg:       cfg,
		signer:    signer,
		confirmer: confirmer,
		logger:    logger,
		digest:    digest,
		policy:    policy,
		loc:       loc,
	}, nil
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Post("/authorizations", a.authorize)
	r.Post("/notify", a.notify)
}

// amount keeps the caller's text for a JSON string or number, so 100.00 stays "100.00".
type amount string

func (m *amount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = amount(s)
		return nil
	}
	*m = amount(b)
	return nil
}

type authorizeRequest struct {
	TotalAmount  amount `json:"total_amount"`
	Currency     string `json:"currency"`
	OrderID      string `json:"order_id"`
	SessionData  string `json:"session_data"`
	PurchaseTime string `json:"purchase_time"`
}

// ValidateAmount checks s is a positive decimal. The string itself is what gets signed.
func ValidateAmount(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, s)
	}
	return nil
}

func (a *API) authorize(w http.ResponseWriter, r *http.Request) {
	req := authorizeRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	total := string(req.TotalAmount)
	if err := ValidateAmount(total); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	auth, err := NewAuthorization(a.cfg.Credentials(), total, Options{
		PurchaseTime: req.PurchaseTime,
		OrderID:      req.OrderID,
		Currency:     req.Currency,
		SessionData:  req.SessionData,
		Location:     a.loc,
		Digest:       a.digest,
		Signer:       a.signer,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidPurchaseTime) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	signed, err := auth.Generate(r.Context())
	if err != nil {
		a.logger.Error("signing authorization", "err", err, slog.String("order_id", auth.OrderID()))
		http.Error(w, "authorization could not be signed", http.StatusInternalServerError)
		return
	}
	a.logger.Info("authorization signed",
		slog.String("order_id", signed.OrderID),
		slog.String("currency_id", signed.CurrencyID),
		slog.String("total_amount", signed.TotalAmount),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(signed)
}

func (a *API) notify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload := models.NotificationFromForm(r.PostForm)
	n := NewNotification(a.cfg.SuccessURL, a.cfg.ErrorURL, payload).WithPolicy(a.policy)
	logger := a.logger.With(
		slog.String("order_id", payload[models.FieldOrderID]),
		slog.String("tran_code", n.TranCode()),
	)

	if err := n.Validate(); err != nil {
		logger.Info("malformed notification", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	origin := Origin{Referer: r.Referer(), RemoteAddr: remoteHost(r.RemoteAddr)}

	var body string
	var err error
	switch {
	case n.TranCode() != models.TranCodeApproved:
		logger.Info("transaction not approved by bank")
		body, err = n.Error("transaction declined")
	case !n.IsValid(a.cfg.GatewayOrigin, origin):
		logger.Info("notification from unexpected origin",
			slog.String("referer", origin.Referer),
			slog.String("remote", origin.RemoteAddr),
		)
		body, err = n.Error("untrusted origin")
	default:
		if cerr := a.confirmer.ConfirmOrder(r.Context(), payload); cerr != nil {
			logger.Error("confirming order", "err", cerr)
			body, err = n.Error("order not recorded")
		} else {
			logger.Info("order confirmed")
			body, err = n.Success()
		}
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
