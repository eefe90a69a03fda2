package cache

import (
	"context"
	"time"
)

// Tiered combines an in-process store and a Redis store. Reads check L1
// first, then L2. Writes and deletes go to both.
type Tiered struct {
	l1 *L1
	l2 *L2
}

// NewTiered creates a two-level store.
func NewTiered(l1 *L1, l2 *L2) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

// Get checks L1, then L2. An L2 hit is promoted into L1 with a short TTL
// since the remaining Redis TTL is unknown.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.l1.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	v, ok, err := t.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.l1.Set(ctx, key, v, promoteTTL)
	return v, true, nil
}

const promoteTTL = 5 * time.Second

// Set writes the value to L2, then L1.
func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_ = t.l2.Set(ctx, key, val, ttl)
	return t.l1.Set(ctx, key, val, ttl)
}

// Delete removes key from both layers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.l2.Delete(ctx, key)
	return t.l1.Delete(ctx, key)
}
