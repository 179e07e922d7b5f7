package observability

import "unicode"

const defaultStringLimit = 256

// sanitizeString strips control characters and caps length to keep log fields safe.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}

	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		cleaned = append(cleaned, r)
	}
	if len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return string(cleaned)
}

// SanitizeRoute removes control characters and enforces length constraints on routes.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod removes control characters in HTTP methods.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeBillNumber caps the order/bill identifiers echoed into logs from
// gateway callbacks, which arrive unauthenticated.
func SanitizeBillNumber(bill string) string {
	if bill == "" {
		return ""
	}
	return sanitizeString(bill, 64)
}
