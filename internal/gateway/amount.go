package gateway

import (
	"fmt"
	"strconv"
	"strings"
)

// AmountTolerance is the accepted absolute difference, in minor units, between
// a callback amount and the stored order total. Gateways occasionally round
// the last kopeck.
const AmountTolerance int64 = 1

// FormatAmount renders minor currency units as the gateway's 2-decimal wire
// string, e.g. 250000 -> "2500.00". The same formatting is used for redirect
// initiation and checksum verification so the bytes always agree.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ParseAmount converts a gateway wire amount into minor units. At most two
// decimal places are accepted.
func ParseAmount(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("gateway: empty amount")
	}

	negative := false
	if strings.HasPrefix(trimmed, "-") {
		negative = true
		trimmed = trimmed[1:]
	}

	wholePart := trimmed
	fracPart := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		wholePart = trimmed[:idx]
		fracPart = trimmed[idx+1:]
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if len(fracPart) > 2 {
		return 0, fmt.Errorf("gateway: amount %q has more than two decimal places", value)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("gateway: invalid amount %q", value)
	}
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("gateway: invalid amount %q", value)
	}

	minor := whole*100 + frac
	if negative {
		minor = -minor
	}
	return minor, nil
}

// AmountMatches reports whether the received amount equals the stored total
// within AmountTolerance.
func AmountMatches(received, total int64) bool {
	diff := received - total
	if diff < 0 {
		diff = -diff
	}
	return diff <= AmountTolerance
}
