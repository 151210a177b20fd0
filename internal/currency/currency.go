package currency

import "strings"

// Default is the numeric code used when no currency, or an unknown one, is requested (ALL, Albanian lek).
const Default = "008"

// codes maps symbolic ISO 4217 codes accepted by the gateway to their numeric form.
// The set is closed; the bank only settles in these currencies.
var codes = map[string]string{
	"all": "008",
	"usd": "840",
	"eur": "978",
}

// Lookup returns the numeric code for a symbolic one and whether it is supported.
// Symbols are matched case-insensitively ("USD", "usd").
func Lookup(symbol string) (string, bool) {
	code, ok := codes[strings.ToLower(strings.TrimSpace(symbol))]
	return code, ok
}

// Resolve returns the numeric code for symbol, falling back to Default.
func Resolve(symbol string) string {
	if code, ok := Lookup(symbol); ok {
		return code
	}
	return Default
}

// Symbols lists the supported symbolic codes in upper case.
func Symbols() []string {
	return []string{"ALL", "USD", "EUR"}
}
