package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpiredBoundaryInstantIsValid(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsExpired(now, now))
}

func TestIsExpiredJustAfterBoundary(t *testing.T) {
	expiresAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsExpired(expiresAt, expiresAt.Add(time.Millisecond)))
	assert.True(t, IsExpired(expiresAt, expiresAt.Add(time.Second)))
}

func TestIsExpiredBeforeBoundary(t *testing.T) {
	expiresAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsExpired(expiresAt, expiresAt.Add(-time.Second)))
}

func TestComputeExpiry(t *testing.T) {
	createdAt := time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC)

	expiresAt := ComputeExpiry(createdAt, 3*24*time.Hour)

	assert.Equal(t, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), expiresAt)
}

func TestNewExpiryPolicyDefaults(t *testing.T) {
	policy := NewExpiryPolicy(0, 0)

	assert.Equal(t, 3*24*time.Hour, policy.EulogyTTL)
	assert.Equal(t, 24*time.Hour, policy.ResetCodeTTL)
}

func TestNewExpiryPolicyConfigured(t *testing.T) {
	policy := NewExpiryPolicy(7, 6*time.Hour)

	assert.Equal(t, 7*24*time.Hour, policy.EulogyTTL)
	assert.Equal(t, 6*time.Hour, policy.ResetCodeTTL)
}
