package http

import (
	"strconv"
	"strings"

	"tally/internal/core"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	// Remove control characters except tab, newline, carriage return
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func cacheKey(year, month int) string {
	return strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

func formatPounds(cents int64) string {
	if cents < 0 {
		return "-£" + core.Money{Cents: -cents}.FormatDecimal()
	}
	return "£" + core.Money{Cents: cents}.FormatDecimal()
}
