package service

import "time"

// ExpiryPolicy computes and validates time-bounded artifact validity.
// Defaults come from configuration: eulogies 3 days, reset codes 24h.
type ExpiryPolicy struct {
	EulogyTTL    time.Duration
	ResetCodeTTL time.Duration
}

// NewExpiryPolicy builds a policy from configured durations.
func NewExpiryPolicy(eulogyExpiryDays int, resetCodeTTL time.Duration) ExpiryPolicy {
	if eulogyExpiryDays <= 0 {
		eulogyExpiryDays = 3
	}
	if resetCodeTTL <= 0 {
		resetCodeTTL = 24 * time.Hour
	}
	return ExpiryPolicy{
		EulogyTTL:    time.Duration(eulogyExpiryDays) * 24 * time.Hour,
		ResetCodeTTL: resetCodeTTL,
	}
}

// ComputeExpiry returns createdAt plus the given lifetime.
func ComputeExpiry(createdAt time.Time, ttl time.Duration) time.Time {
	return createdAt.Add(ttl)
}

// IsExpired reports whether now is strictly after expiresAt. The
// boundary instant itself is still valid.
func IsExpired(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}
