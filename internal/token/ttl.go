package token

import (
	"regexp"
	"strconv"
	"time"
)

// DefaultTTL applies when the configured lifetime cannot be parsed.
const DefaultTTL = 7 * 24 * time.Hour

var compactDuration = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTTL reads a compact "<int><unit>" lifetime such as "15m" or "7d".
// Anything else yields DefaultTTL rather than an error.
func ParseTTL(s string) time.Duration {
	m := compactDuration.FindStringSubmatch(s)
	if m == nil {
		return DefaultTTL
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return DefaultTTL
	}

	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit
}
