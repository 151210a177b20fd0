package models

import "net/url"

// MerchantCredentials are issued by the bank and supplied by configuration.
type MerchantCredentials struct {
	MerchantID string
	TerminalID string
	// KeyRef identifies the merchant's private key for the key provider
	// (file <certDir>/<KeyRef>.pem, or a token label). Empty means MerchantID.
	KeyRef string
}

// Ref returns the key lookup reference.
func (c MerchantCredentials) Ref() string {
	if c.KeyRef != "" {
		return c.KeyRef
	}
	return c.MerchantID
}

// AuthorizationRequest is the signed payload POSTed to the gateway to start a card purchase.
type AuthorizationRequest struct {
	MerchantID   string `json:"merchant_id"`
	TerminalID   string `json:"terminal_id"`
	TotalAmount  string `json:"total_amount"`
	CurrencyID   string `json:"currency_id"`
	PurchaseTime string `json:"purchase_time"`
	OrderID      string `json:"order_id"`
	SessionData  string `json:"session_data"`
	Signature    string `json:"signature"`
}

// Fields returns the form field names in the order they are emitted.
func (r AuthorizationRequest) Fields() []string {
	return []string{
		"merchant_id",
		"terminal_id",
		"total_amount",
		"currency_id",
		"purchase_time",
		"order_id",
		"session_data",
		"signature",
	}
}

// Form encodes the request as gateway form fields.
func (r AuthorizationRequest) Form() url.Values {
	return url.Values{
		"merchant_id":   {r.MerchantID},
		"terminal_id":   {r.TerminalID},
		"total_amount":  {r.TotalAmount},
		"currency_id":   {r.CurrencyID},
		"purchase_time": {r.PurchaseTime},
		"order_id":      {r.OrderID},
		"session_data":  {r.SessionData},
		"signature":     {r.Signature},
	}
}
