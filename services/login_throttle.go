package services

import (
	"context"
	"math"
	"sync"
	"time"

	"campus-cafe/store"

	"go.uber.org/zap"
)

const ThrottleCooldownCapSeconds = 30

type throttleEntry struct {
	FailCount     int       `json:"failCount"`
	LastFailedAt  time.Time `json:"lastFailedAt"`
	CooldownUntil time.Time `json:"cooldownUntil"`
}

// LoginThrottle slows down password guessing per admin email.
// State lives under campus_cafe_login_throttle.
type LoginThrottle struct {
	kv  store.Store
	log *zap.Logger
	now func() time.Time
	mu  sync.Mutex
}

func NewLoginThrottle(kv store.Store, log *zap.Logger, now func() time.Time) *LoginThrottle {
	return &LoginThrottle{kv: kv, log: log, now: now}
}

func (t *LoginThrottle) load(ctx context.Context) (map[string]throttleEntry, error) {
	return store.LoadJSON(ctx, t.kv, KeyLoginThrottle, map[string]throttleEntry{}, t.log)
}

// WaitSeconds returns how many seconds the user must wait before trying again (0 if no cooldown).
func (t *LoginThrottle) WaitSeconds(ctx context.Context, email string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries, err := t.load(ctx)
	if err != nil {
		return 0, err
	}
	e, ok := entries[email]
	if !ok {
		return 0, nil
	}
	if now := t.now(); now.Before(e.CooldownUntil) {
		return int(math.Ceil(e.CooldownUntil.Sub(now).Seconds())), nil
	}
	return 0, nil
}

// RecordFailed increments the fail count and sets cooldown = now + min(30, 2^failCount) seconds.
func (t *LoginThrottle) RecordFailed(ctx context.Context, email string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries, err := t.load(ctx)
	if err != nil {
		return err
	}
	e := entries[email]
	e.FailCount++
	now := t.now()
	e.LastFailedAt = now
	e.CooldownUntil = now.Add(time.Duration(CooldownSecondsForFailCount(e.FailCount)) * time.Second)
	entries[email] = e
	return store.SaveJSON(ctx, t.kv, KeyLoginThrottle, entries)
}

// RecordSuccess resets the fail count and cooldown for the email.
func (t *LoginThrottle) RecordSuccess(ctx context.Context, email string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries, err := t.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := entries[email]; !ok {
		return nil
	}
	delete(entries, email)
	return store.SaveJSON(ctx, t.kv, KeyLoginThrottle, entries)
}

// CooldownSecondsForFailCount returns min(30, 2^failCount).
func CooldownSecondsForFailCount(failCount int) int {
	s := int(math.Pow(2, float64(failCount)))
	if s > ThrottleCooldownCapSeconds {
		return ThrottleCooldownCapSeconds
	}
	return s
}
