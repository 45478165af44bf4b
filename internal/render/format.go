package render

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var billion = decimal.NewFromInt(1_000_000_000)

// currencySymbols lists quote currencies written with a leading symbol.
// Any other currency is written as "1,234.56 CHF".
var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
}

// amount attaches the currency to a formatted absolute value.
func amount(num string, negative bool, currency string) string {
	sign := ""
	if negative {
		sign = "-"
	}
	if currency == "" {
		currency = "usd"
	}
	if sym, ok := currencySymbols[strings.ToLower(currency)]; ok {
		return sign + sym + num
	}
	return sign + num + " " + CurrencyCode(currency)
}

// Money formats v as "$1,234.56" in the given quote currency.
func Money(v decimal.Decimal, currency string) string {
	return amount(humanize.FormatFloat("#,###.##", v.Abs().InexactFloat64()), v.IsNegative(), currency)
}

// Price formats a unit price with six decimals, enough for sub-cent assets.
func Price(v decimal.Decimal, currency string) string {
	return amount(humanize.FormatFloat("#,###.######", v.Abs().InexactFloat64()), v.IsNegative(), currency)
}

// Percent formats v as "12.34%".
func Percent(v decimal.Decimal) string {
	return v.StringFixed(2) + "%"
}

// SignedPercent is Percent with an explicit "+" for non-negative values.
func SignedPercent(v decimal.Decimal) string {
	if v.IsNegative() {
		return Percent(v)
	}
	return "+" + Percent(v)
}

// Billions formats v as "$1.23B".
func Billions(v decimal.Decimal, currency string) string {
	return amount(v.Abs().Div(billion).StringFixed(2)+"B", v.IsNegative(), currency)
}

// CurrencyCode upper-cases a quote currency for column headers.
func CurrencyCode(c string) string {
	if c == "" {
		return "USD"
	}
	return strings.ToUpper(c)
}
