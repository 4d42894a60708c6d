package merger

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var decimalRun = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ExtractNumeric parses the first decimal run of s, so "US$29.99" gives
// 29.99. Thousands separators are dropped first. Empty or garbled input
// gives 0.
func ExtractNumeric(s string) float64 {
	m := decimalRun.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func roundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
