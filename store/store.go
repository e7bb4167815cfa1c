// Package store is the key-value layer every collection is persisted in.
// Values are JSON text, one key per collection, the same layout the café
// website keeps in browser storage.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Store is a flat string key-value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Prefixed namespaces every key of the wrapped store, e.g. one customer's cart.
type Prefixed struct {
	inner  Store
	prefix string
}

func NewPrefixed(inner Store, prefix string) *Prefixed {
	return &Prefixed{inner: inner, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key, value string) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (p *Prefixed) Remove(ctx context.Context, key string) error {
	return p.inner.Remove(ctx, p.prefix+key)
}

// LoadJSON decodes the value at key into T. A missing key yields def. A value
// that does not decode is treated as missing and logged, so one corrupted
// collection never takes the service down.
func LoadJSON[T any](ctx context.Context, s Store, key string, def T, log *zap.Logger) (T, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || raw == "" {
		return def, nil
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		if log != nil {
			log.Warn("corrupted value, using default", zap.String("key", key), zap.Error(err))
		}
		return def, nil
	}
	return v, nil
}

func SaveJSON[T any](ctx context.Context, s Store, key string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
