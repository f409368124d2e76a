package providers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vitaehq/vitae/internal/correction"
)

// Backends classify failures with the correction package's sentinels so
// the correction loop reacts correctly without inspecting transport
// details: unavailability aborts a session, a malformed response only
// consumes an iteration. Aliased here so backend code and callers can
// stay within this package.
var (
	ErrBackendUnavailable = correction.ErrBackendUnavailable
	ErrMalformedResponse  = correction.ErrMalformedResponse
)

// RateLimitError reports a 429 with an optional server-provided
// Retry-After hint. Transport retry loops honor the hint before the
// error ever escapes a client.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// IsRateLimitError unwraps err looking for a RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
