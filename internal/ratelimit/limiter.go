// Package ratelimit implements the Robot Agent's per-channel token
// bucket: one bucket for drive commands, one for KVM inputs (§4.11).
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter wraps two independent token buckets. Capacity equals the
// configured Hz (burst = 1 second's worth); refill happens at the same
// Hz, matching "Capacity = configured Hz × 1 second; refill at
// configured Hz."
type Limiter struct {
	mu    sync.Mutex
	drive *rate.Limiter
	kvm   *rate.Limiter
}

func NewLimiter(driveHz, kvmHz int) *Limiter {
	if driveHz <= 0 {
		driveHz = 50
	}
	if kvmHz <= 0 {
		kvmHz = 100
	}
	return &Limiter{
		drive: rate.NewLimiter(rate.Limit(driveHz), driveHz),
		kvm:   rate.NewLimiter(rate.Limit(kvmHz), kvmHz),
	}
}

// AllowDrive reports whether a drive command may be admitted now.
// Repeated rejections are NOT invalid commands — a distinct signal
// handled by the safety monitor separately.
func (l *Limiter) AllowDrive() bool {
	return l.drive.Allow()
}

func (l *Limiter) AllowKVM() bool {
	return l.kvm.Allow()
}

type Stats struct {
	DriveTokens float64
	KVMTokens   float64
}

func (l *Limiter) Stats() Stats {
	return Stats{DriveTokens: l.drive.Tokens(), KVMTokens: l.kvm.Tokens()}
}
