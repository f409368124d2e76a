package providers

import (
	"fmt"
	"testing"
	"time"
)

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"0", 0},
		{"-5", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}

	// HTTP-date form.
	future := time.Now().Add(30 * time.Second).UTC().Format(time.RFC1123)
	if got := parseRetryAfter(future); got <= 0 || got > 30*time.Second {
		t.Errorf("parseRetryAfter(http-date) = %v, want ~30s", got)
	}
	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC1123)
	if got := parseRetryAfter(past); got != 0 {
		t.Errorf("parseRetryAfter(past http-date) = %v, want 0", got)
	}
}

func TestIsRateLimitErrorUnwraps(t *testing.T) {
	rle := &RateLimitError{Message: "slow down", RetryAfter: 2 * time.Second, StatusCode: 429}
	wrapped := fmt.Errorf("generate failed: %w", rle)

	got, ok := IsRateLimitError(wrapped)
	if !ok {
		t.Fatal("expected wrapped RateLimitError to be found")
	}
	if got.RetryAfter != 2*time.Second || got.StatusCode != 429 {
		t.Fatalf("unexpected fields: %+v", got)
	}

	if _, ok := IsRateLimitError(fmt.Errorf("plain error")); ok {
		t.Fatal("plain error must not match")
	}
}
