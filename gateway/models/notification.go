package models

import "net/url"

// Callback field names sent by the gateway.
const (
	FieldTranCode     = "TranCode"
	FieldMerchantID   = "MerchantID"
	FieldTerminalID   = "TerminalID"
	FieldOrderID      = "OrderID"
	FieldCurrency     = "Currency"
	FieldTotalAmount  = "TotalAmount"
	FieldXID          = "XID"
	FieldPurchaseTime = "PurchaseTime"
)

// TranCodeApproved is the TranCode of a transaction the bank approved.
const TranCodeApproved = "000"

// EchoFields are copied verbatim, in this order, into the acknowledgment.
var EchoFields = []string{
	FieldMerchantID,
	FieldTerminalID,
	FieldOrderID,
	FieldCurrency,
	FieldTotalAmount,
	FieldXID,
	FieldPurchaseTime,
}

// NotificationPayload holds the gateway's callback fields. It is untrusted input.
type NotificationPayload map[string]string

// NotificationFromForm takes the first value of every form field.
func NotificationFromForm(form url.Values) NotificationPayload {
	p := make(NotificationPayload, len(form))
	for k, v := range form {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p
}

// Get returns the value of key and whether it was present.
func (p NotificationPayload) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// Action is the merchant's decision sent back to the gateway.
type Action string

const (
	ActionSuccess Action = "success"
	ActionReverse Action = "reverse"
)

// NotificationResult is the per-callback decision rendered into the acknowledgment.
type NotificationResult struct {
	Action     Action
	Reason     string
	ForwardURL string
}
