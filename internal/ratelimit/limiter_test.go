package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsUpToBurstThenRejects(t *testing.T) {
	l := NewLimiter(2, 2)

	assert.True(t, l.AllowDrive())
	assert.True(t, l.AllowDrive())
	assert.False(t, l.AllowDrive(), "third call within the same instant should exceed burst")
}

func TestLimiter_DriveAndKVMAreIndependent(t *testing.T) {
	l := NewLimiter(1, 1)

	assert.True(t, l.AllowDrive())
	assert.False(t, l.AllowDrive())
	assert.True(t, l.AllowKVM(), "kvm bucket must not be exhausted by drive calls")
}

func TestLimiter_DefaultsAppliedForNonPositiveHz(t *testing.T) {
	l := NewLimiter(0, -5)

	for i := 0; i < 50; i++ {
		assert.True(t, l.AllowDrive())
	}
	for i := 0; i < 100; i++ {
		assert.True(t, l.AllowKVM())
	}
}

func TestLimiter_StatsReportsTokens(t *testing.T) {
	l := NewLimiter(10, 20)
	stats := l.Stats()
	assert.Greater(t, stats.DriveTokens, 0.0)
	assert.Greater(t, stats.KVMTokens, 0.0)
}
