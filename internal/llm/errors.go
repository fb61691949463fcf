package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQuotaExceeded indicates the provider reported quota or rate-limit
// exhaustion (HTTP 429 / resource-exhausted). The batch scheduler treats it
// as sticky: once seen, no further calls are issued in that invocation.
var ErrQuotaExceeded = errors.New("embedding provider quota exceeded")

// IsQuotaExceeded reports whether err carries a quota-exhaustion signal.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// classifyStatusError converts a non-200 provider response into an error,
// wrapping ErrQuotaExceeded for rate-limit responses so they stay
// distinguishable after the usual fmt.Errorf wrapping upstream.
func classifyStatusError(provider string, status int, body []byte) error {
	if status == 429 || looksLikeQuotaBody(body) {
		return fmt.Errorf("%w: %s returned status %d: %s", ErrQuotaExceeded, provider, status, string(body))
	}
	return fmt.Errorf("%s returned status %d: %s", provider, status, string(body))
}

// looksLikeQuotaBody catches providers that report quota exhaustion with a
// non-429 status but an explicit error body.
func looksLikeQuotaBody(body []byte) bool {
	s := strings.ToLower(string(body))
	return strings.Contains(s, "rate limit") ||
		strings.Contains(s, "rate_limit") ||
		strings.Contains(s, "insufficient_quota") ||
		strings.Contains(s, "resource_exhausted") ||
		strings.Contains(s, "resource exhausted")
}
