package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig contains the tiered lockout ladder for login throttling
// and the fixed-window limits for OTP dispatch.
type RateLimitConfig struct {
	// LoginThresholds is an ascending ladder of "attempts:lock" pairs,
	// e.g. "3:15m,6:30m,10:60m".
	LoginThresholds string `env:"LOGIN_RATE_LIMIT_THRESHOLDS" env-default:"3:15m,6:30m,10:60m"`

	// OTP dispatch limits: at most OtpSendLimit sends per OtpSendWindow,
	// keyed by user, purpose and channel.
	OtpSendLimit  int    `env:"OTP_SEND_LIMIT" env-default:"5"`
	OtpSendWindow string `env:"OTP_SEND_WINDOW" env-default:"15m"`
}

// Threshold is one rung of the lockout ladder.
type Threshold struct {
	Attempts int
	Lock     time.Duration
}

// ParseLoginThresholds parses the configured ladder. Entries must be sorted
// ascending by attempt count.
func (c RateLimitConfig) ParseLoginThresholds() ([]Threshold, error) {
	parts := strings.Split(c.LoginThresholds, ",")
	thresholds := make([]Threshold, 0, len(parts))

	prev := 0
	for _, part := range parts {
		pair := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(pair) != 2 {
			return nil, fmt.Errorf("invalid threshold entry: %q", part)
		}

		attempts, err := strconv.Atoi(pair[0])
		if err != nil || attempts <= 0 {
			return nil, fmt.Errorf("invalid threshold attempts: %q", pair[0])
		}
		if attempts <= prev {
			return nil, fmt.Errorf("thresholds must be ascending by attempts, got %d after %d", attempts, prev)
		}
		prev = attempts

		lock, err := time.ParseDuration(pair[1])
		if err != nil {
			return nil, fmt.Errorf("invalid threshold lock duration %q: %w", pair[1], err)
		}

		thresholds = append(thresholds, Threshold{Attempts: attempts, Lock: lock})
	}

	if len(thresholds) == 0 {
		return nil, fmt.Errorf("at least one threshold is required")
	}
	return thresholds, nil
}

// ParseOtpSendWindow parses the OTP dispatch window duration
func (c RateLimitConfig) ParseOtpSendWindow() (time.Duration, error) {
	return time.ParseDuration(c.OtpSendWindow)
}
