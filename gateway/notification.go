package gateway

import (
	"strings"

	"github.com/alovak/cardflow-merchant/gateway/models"
)

// OriginPolicy selects which observed request attributes may prove the callback came from the gateway.
type OriginPolicy int

const (
	// OriginRefererOrRemoteAddr accepts a matching Referer header or a matching remote address.
	OriginRefererOrRemoteAddr OriginPolicy = iota
	// OriginRefererOnly accepts only a matching Referer header.
	OriginRefererOnly
)

// Origin is what the HTTP layer observed about an inbound callback.
type Origin struct {
	Referer    string
	RemoteAddr string // host only, no port
}

// Notification validates one gateway callback and renders the acknowledgment the gateway expects.
//
// Origin matching is plain string equality on values the client controls (Referer) or that a
// proxy may rewrite (remote address). It keeps compatibility with the bank's integration and is
// not a substitute for network level allow-listing.
type Notification struct {
	successURL string
	errorURL   string
	payload    models.NotificationPayload
	policy     OriginPolicy
}

func NewNotification(successURL, errorURL string, payload models.NotificationPayload) *Notification {
	return &Notification{
		successURL: successURL,
		errorURL:   errorURL,
		payload:    payload,
	}
}

// WithPolicy returns a copy of n that checks origin with policy.
func (n *Notification) WithPolicy(policy OriginPolicy) *Notification {
	c := *n
	c.policy = policy
	return &c
}

// Payload returns the inbound fields.
func (n *Notification) Payload() models.NotificationPayload { return n.payload }

// TranCode returns the gateway's transaction result code ("" when absent).
func (n *Notification) TranCode() string { return n.payload[models.FieldTranCode] }

// IsValid reports whether the bank approved the transaction (TranCode "000") and the
// request came from expectedOrigin. Comparison is exact and case-sensitive.
func (n *Notification) IsValid(expectedOrigin string, origin Origin) bool {
	if n.TranCode() != models.TranCodeApproved {
		return false
	}
	if origin.Referer == expectedOrigin {
		return true
	}
	return n.policy == OriginRefererOrRemoteAddr && origin.RemoteAddr == expectedOrigin
}

// Validate returns a *MissingFieldError for the first echo field absent from the payload.
func (n *Notification) Validate() error {
	for _, f := range models.EchoFields {
		if _, ok := n.payload.Get(f); !ok {
			return &MissingFieldError{Field: f}
		}
	}
	return nil
}

// SuccessResult confirms the purchase and forwards the customer to the success URL.
func (n *Notification) SuccessResult() models.NotificationResult {
	return models.NotificationResult{Action: models.ActionSuccess, ForwardURL: n.successURL}
}

// ErrorResult asks the gateway to reverse the purchase and forwards the customer to the error URL.
func (n *Notification) ErrorResult(reason string) models.NotificationResult {
	return models.NotificationResult{Action: models.ActionReverse, Reason: reason, ForwardURL: n.errorURL}
}

// Success renders the acknowledgment for a purchase the merchant has recorded.
// Call it only after the order was persisted.
func (n *Notification) Success() (string, error) {
	return n.Render(n.SuccessResult())
}

// Error renders a reversal acknowledgment.
func (n *Notification) Error(reason string) (string, error) {
	return n.Render(n.ErrorResult(reason))
}

// Render writes the acknowledgment: one Key=Value per line, "\n" terminated, fixed order.
// Payload values are copied verbatim; a missing echo field fails the render.
func (n *Notification) Render(res models.NotificationResult) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	var sb strings.Builder
	line := func(k, v string) {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v)
		sb.WriteByte('\n')
	}
	for _, f := range models.EchoFields {
		line(f, n.payload[f])
	}
	line("Response.action", string(res.Action))
	line("Response.reason", res.Reason)
	line("Response.forwardUrl", res.ForwardURL)
	return sb.String(), nil
}
