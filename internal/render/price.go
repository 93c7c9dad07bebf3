package render

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLocale drives digit grouping when no locale is configured.
const DefaultLocale = "es"

const pricePrefix = "$ "

// NewPrinter returns a message printer for locale, falling back to the
// default locale when it cannot be parsed.
func NewPrinter(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	return message.NewPrinter(tag)
}

var defaultPrinter = NewPrinter(DefaultLocale)

// FormatPrice renders a raw price with the default locale, e.g.
// "2500000" -> "$ 2.500.000". Non-numeric input is passed through.
func FormatPrice(raw string) string {
	return formatPrice(defaultPrinter, raw)
}

func formatPrice(p *message.Printer, raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(s, "$")), 64)
	// Values past int64 are shown as written.
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= math.MaxInt64 {
		return pricePrefix + s
	}
	return pricePrefix + p.Sprintf("%d", int64(math.Round(v)))
}
