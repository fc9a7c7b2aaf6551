package margin

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// formatUSD renders an amount as "$1,234.50" for alert messages.
func formatUSD(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	f, _ := d.Round(2).Float64()
	return sign + "$" + humanize.FormatFloat("#,###.##", f)
}

// formatPercent renders a ratio as "12.5%".
func formatPercent(r decimal.Decimal) string {
	return r.Mul(hundred).StringFixed(1) + "%"
}
