package tui

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer is the locale-aware message printer for number formatting.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

// FormatCount formats an integer with thousand separators.
// Example: FormatCount(18248) returns "18,248".
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatPercent renders a 0-100 percentage with one decimal.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// FormatRate renders a tasks-per-second rate.
func FormatRate(perSecond float64) string {
	switch {
	case perSecond <= 0:
		return "-"
	case perSecond < 1:
		return fmt.Sprintf("%.1f/min", perSecond*60)
	default:
		return printer.Sprintf("%.1f/s", perSecond)
	}
}

// FormatDuration rounds d for display; zero renders as "-".
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
