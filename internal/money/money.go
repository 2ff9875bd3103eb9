// Package money converts the strategy's integer kuruş P&L into a
// major-currency (TL) figure for the final report line, using
// shopspring/decimal rather than a hand-rolled float divide so the
// conversion is exact regardless of the magnitude involved.
package money

import "github.com/shopspring/decimal"

const minorUnitsPerMajor = 1000

// KurusToTL converts a signed kuruş amount to its TL decimal.Decimal
// equivalent.
func KurusToTL(kurus int64) decimal.Decimal {
	return decimal.NewFromInt(kurus).DivRound(decimal.NewFromInt(minorUnitsPerMajor), 2)
}

// FormatTL renders a kuruş amount as a fixed 2-decimal TL string, e.g.
// "-11.00".
func FormatTL(kurus int64) string {
	return KurusToTL(kurus).StringFixed(2)
}
