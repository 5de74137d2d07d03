// Package ratelimit slows down password guessing on the admin login.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type attemptRecord struct {
	count        int
	lastAttempt  time.Time
	blockedUntil time.Time
}

// LoginRateLimiter allows maxAttempts per client within window and then
// blocks the client for block.
type LoginRateLimiter struct {
	mu          sync.Mutex
	attempts    map[string]*attemptRecord
	maxAttempts int
	window      time.Duration
	block       time.Duration
	now         func() time.Time
}

func NewLoginRateLimiter(maxAttempts int, window, block time.Duration) *LoginRateLimiter {
	return &LoginRateLimiter{
		attempts:    make(map[string]*attemptRecord),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
		now:         time.Now,
	}
}

// Check counts one attempt and reports whether it may proceed. When it may
// not, the remaining block time is returned.
func (l *LoginRateLimiter) Check(clientID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	record, ok := l.attempts[clientID]
	if !ok {
		record = &attemptRecord{lastAttempt: now}
		l.attempts[clientID] = record
	}

	if now.Before(record.blockedUntil) {
		return false, record.blockedUntil.Sub(now)
	}

	if now.Sub(record.lastAttempt) > l.window {
		record.count = 0
	}
	record.count++
	record.lastAttempt = now

	if record.count > l.maxAttempts {
		record.blockedUntil = now.Add(l.block)
		return false, l.block
	}
	return true, 0
}

func (l *LoginRateLimiter) Reset(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, clientID)
}

// Run drops idle records every interval until ctx is done.
func (l *LoginRateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *LoginRateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for clientID, record := range l.attempts {
		if now.Sub(record.lastAttempt) > l.window*2 && now.After(record.blockedUntil) {
			delete(l.attempts, clientID)
		}
	}
}

func (l *LoginRateLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}
