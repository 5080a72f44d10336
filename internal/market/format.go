package market

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/alanjade/growthctl/internal/api"
)

const nairaSign = "₦"

var printer = message.NewPrinter(language.English)

// FormatNaira renders kobo as grouped naira with two decimals, e.g. ₦1,500.00.
func FormatNaira(k api.Kobo) string {
	return nairaSign + printer.Sprintf("%.2f", k.Naira())
}

// FormatCompact renders a naira amount the way the dashboard cards do:
// millions as ₦1.5M, thousands as ₦2.3K, smaller values grouped.
func FormatCompact(naira float64) string {
	sign := ""
	if naira < 0 {
		sign = "-"
	}
	v := math.Abs(naira)
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%s%s%.1fM", sign, nairaSign, v/1_000_000)
	case v >= 1000:
		return fmt.Sprintf("%s%s%.1fK", sign, nairaSign, v/1000)
	default:
		s := printer.Sprintf("%.2f", v)
		s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
		return sign + nairaSign + s
	}
}

// FormatPercent renders a profit/loss percentage with an explicit sign.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%+.2f%%", p)
}

// TransactionSign is "+" for money coming in, "−" for money going out and
// empty for anything else.
func TransactionSign(kind string) string {
	k := strings.ToLower(kind)
	switch {
	case strings.Contains(k, "deposit"), strings.Contains(k, "sale"), strings.Contains(k, "sell"):
		return "+"
	case strings.Contains(k, "withdraw"), strings.Contains(k, "purchase"), strings.Contains(k, "invest"):
		return "−"
	}
	return ""
}
