package symbol

import (
	"regexp"
	"strings"
)

// aliasTable maps common shorthand tickers to the identifiers the price
// source understands. Static configuration data, not derived at runtime.
var aliasTable = map[string]string{
	"BTC":    "BTC-USD",
	"BTCUSD": "BTC-USD",
	"ETH":    "ETH-USD",
	"ETHUSD": "ETH-USD",
	"TSMC":   "2330.TW",
}

// fxPairPattern matches ISO-style currency pairs like USD/TWD.
var fxPairPattern = regexp.MustCompile(`^([A-Z]{3})/([A-Z]{3})$`)

// Normalize rewrites a user-entered symbol into a canonical instrument
// identifier: currency pairs become the XXXYYY=X convention, known aliases
// are resolved, and anything else passes through trimmed and upper-cased.
// It is deterministic and total; empty input is a caller-side validation
// error and must be rejected before normalization.
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if m := fxPairPattern.FindStringSubmatch(s); m != nil {
		return m[1] + m[2] + "=X"
	}
	if id, ok := aliasTable[s]; ok {
		return id
	}
	return s
}
