package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no minor unit; amounts are already whole units.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
}

// MinorUnitExponent returns how many decimal places currency uses.
func MinorUnitExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// DisplayAmount converts a minor-unit amount to a major-unit decimal.
func DisplayAmount(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -MinorUnitExponent(currency))
}

// FormatAmount renders an amount as "19.99 USD".
func FormatAmount(amount int64, currency string) string {
	exp := MinorUnitExponent(currency)
	return DisplayAmount(amount, currency).StringFixed(exp) + " " + strings.ToUpper(currency)
}
