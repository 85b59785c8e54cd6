package omero

import (
	"strconv"
	"strings"

	humanize "github.com/dustin/go-humanize"
)

// SanitizeField replaces commas so a value can sit in an unescaped CSV field.
func SanitizeField(s string) string {
	return strings.ReplaceAll(s, ",", ".")
}

// QuoteField sanitizes a value and wraps it in double quotes.
func QuoteField(s string) string {
	return `"` + SanitizeField(s) + `"`
}

// ByteSize returns a human readable size for logging, e.g. "12 kB".
func ByteSize(n int) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// UserName returns the conventional training account name, e.g. "user-3".
func UserName(prefix string, i int) string {
	return prefix + "-" + strconv.Itoa(i)
}
