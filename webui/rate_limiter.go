package webui

import (
	"sync"
	"time"
)

// attemptRecord tracks failed authentication attempts inside one window.
type attemptRecord struct {
	count   int
	resetAt time.Time
}

func (a attemptRecord) expired() bool {
	return time.Now().After(a.resetAt)
}

// RateLimiter protects the ops surface against brute force password
// guessing by tracking failed attempts per remote address.
//
// Sliding window: each failed attempt increments the counter; at
// maxAttempts the address is blocked until the block duration elapses; a
// successful authentication clears the record.
//
// Thread-Safety: all methods are safe for concurrent use.
type RateLimiter struct {
	mu          sync.RWMutex
	attempts    map[string]attemptRecord
	maxAttempts int
	window      time.Duration
	block       time.Duration
}

// NewRateLimiter creates a RateLimiter allowing maxAttempts failures per
// window before blocking for the block duration.
func NewRateLimiter(maxAttempts int, window, block time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts:    make(map[string]attemptRecord),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
	}
}

// Allow reports whether the address may attempt authentication, and the
// remaining block time when it may not.
func (r *RateLimiter) Allow(addr string) (bool, time.Duration) {
	r.mu.RLock()
	record, exists := r.attempts[addr]
	r.mu.RUnlock()

	if !exists || record.expired() {
		return true, 0
	}
	if record.count >= r.maxAttempts {
		return false, time.Until(record.resetAt)
	}
	return true, 0
}

// RecordFailure counts one failed attempt for the address. Hitting the
// attempt limit extends the record into a block.
func (r *RateLimiter) RecordFailure(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.attempts[addr]
	if !exists || record.expired() {
		r.attempts[addr] = attemptRecord{count: 1, resetAt: time.Now().Add(r.window)}
		return
	}

	record.count++
	if record.count >= r.maxAttempts {
		record.resetAt = time.Now().Add(r.block)
	}
	r.attempts[addr] = record
}

// Reset clears the record for an address after a successful authentication.
func (r *RateLimiter) Reset(addr string) {
	r.mu.Lock()
	delete(r.attempts, addr)
	r.mu.Unlock()
}

// Cleanup drops expired records and returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for addr, record := range r.attempts {
		if record.expired() {
			delete(r.attempts, addr)
			removed++
		}
	}
	return removed
}
