package auth

import (
	"context"
	"sync"
	"time"
)

// LockoutStore tracks failed login attempts per key (the login email).
type LockoutStore interface {
	// RecordFailure counts a failed attempt and reports whether the key is now locked.
	RecordFailure(ctx context.Context, key string) (bool, error)
	IsLocked(ctx context.Context, key string) (bool, error)
	RemainingLockoutTime(ctx context.Context, key string) (time.Duration, error)
	ClearFailures(ctx context.Context, key string) error
}

// lockoutEntry tracks failed login attempts for an account.
type lockoutEntry struct {
	failures  int
	lockedAt  time.Time
	expiresAt time.Time
}

var (
	_ LockoutStore = (*LockoutTracker)(nil)
	_ LockoutStore = (*RedisLockoutStore)(nil)
)

// LockoutTracker is the in-memory LockoutStore.
//
// State is lost on restart and is not shared between instances; deployments
// running more than one server should configure Redis instead.
type LockoutTracker struct {
	mu              sync.RWMutex
	entries         map[string]*lockoutEntry
	threshold       int
	lockoutDuration time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

// NewLockoutTracker creates a new lockout tracker.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	tracker := &LockoutTracker{
		entries:         make(map[string]*lockoutEntry),
		threshold:       threshold,
		lockoutDuration: duration,
		done:            make(chan struct{}),
	}

	go tracker.cleanupLoop()

	return tracker
}

// RecordFailure records a failed login attempt.
func (t *LockoutTracker) RecordFailure(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.entries[key]
	if !exists {
		entry = &lockoutEntry{}
		t.entries[key] = entry
	}

	now := time.Now()

	// Already locked: don't extend.
	if !entry.lockedAt.IsZero() && now.Before(entry.expiresAt) {
		return true, nil
	}

	// Lockout expired: start over.
	if !entry.lockedAt.IsZero() && !now.Before(entry.expiresAt) {
		*entry = lockoutEntry{}
	}

	entry.failures++

	if entry.failures >= t.threshold {
		entry.lockedAt = now
		entry.expiresAt = now.Add(t.lockoutDuration)
		return true, nil
	}

	return false, nil
}

// IsLocked returns true if the account is currently locked.
func (t *LockoutTracker) IsLocked(_ context.Context, key string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, exists := t.entries[key]
	if !exists || entry.lockedAt.IsZero() {
		return false, nil
	}
	return time.Now().Before(entry.expiresAt), nil
}

// RemainingLockoutTime returns how long until the lockout expires.
func (t *LockoutTracker) RemainingLockoutTime(_ context.Context, key string) (time.Duration, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, exists := t.entries[key]
	if !exists || entry.lockedAt.IsZero() {
		return 0, nil
	}

	remaining := time.Until(entry.expiresAt)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// ClearFailures clears failed attempts on successful login.
func (t *LockoutTracker) ClearFailures(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, key)
	return nil
}

// Close stops the cleanup goroutine.
func (t *LockoutTracker) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

func (t *LockoutTracker) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup()
		case <-t.done:
			return
		}
	}
}

// cleanup removes expired entries.
func (t *LockoutTracker) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for key, entry := range t.entries {
		if entry.failures == 0 || (!entry.lockedAt.IsZero() && now.After(entry.expiresAt)) {
			delete(t.entries, key)
		}
	}
}
