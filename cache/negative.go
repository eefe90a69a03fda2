package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Keksclan/goRawrRemote/failure"
)

// NegativeEntry records a recent failed lookup.
type NegativeEntry struct {
	ID        string           `json:"id"`
	Category  failure.Category `json:"category"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Expired reports whether the entry no longer blocks lookups at now.
func (e NegativeEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TTLPolicy decides how long a failure keeps an ID out of the network.
type TTLPolicy struct {
	ByCategory map[failure.Category]time.Duration
	Default    time.Duration
}

// DefaultTTLPolicy keeps permanent-looking failures for minutes to an hour
// and transient ones for seconds.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		ByCategory: map[failure.Category]time.Duration{
			failure.NotFound:        time.Hour,
			failure.AuthError:       15 * time.Minute,
			failure.ClientError:     30 * time.Minute,
			failure.RateLimited:     30 * time.Second,
			failure.ServerError:     30 * time.Second,
			failure.Timeout:         10 * time.Second,
			failure.ConnectionError: 10 * time.Second,
		},
		Default: time.Minute,
	}
}

// TTL returns the duration for c, falling back to Default.
func (p TTLPolicy) TTL(c failure.Category) time.Duration {
	if d, ok := p.ByCategory[c]; ok {
		return d
	}
	return p.Default
}

// Negative maps IDs to recent failures. Expiry is checked lazily on Lookup;
// there is no background eviction.
type Negative struct {
	entries map[string]NegativeEntry
	policy  TTLPolicy
	shared  *Shared
	nowFunc func() time.Time // for testing; defaults to time.Now
}

// NewNegative returns an empty cache. shared may be nil.
func NewNegative(policy TTLPolicy, shared *Shared) *Negative {
	return &Negative{
		entries: make(map[string]NegativeEntry),
		policy:  policy,
		shared:  shared,
		nowFunc: time.Now,
	}
}

// Lookup returns the live entry for id. An expired entry is removed and
// reported as absent.
func (n *Negative) Lookup(ctx context.Context, id string) (NegativeEntry, bool) {
	now := n.now()

	if e, ok := n.entries[id]; ok {
		if !e.Expired(now) {
			return e, true
		}
		delete(n.entries, id)
	}
	if !n.shared.enabled() {
		return NegativeEntry{}, false
	}

	raw, ok, err := n.shared.Store.Get(ctx, n.shared.key("neg", id))
	if err != nil || !ok {
		return NegativeEntry{}, false
	}
	var e NegativeEntry
	if err := json.Unmarshal(raw, &e); err != nil || e.ID != id || e.Expired(now) {
		return NegativeEntry{}, false
	}
	n.entries[id] = e
	return e, true
}

// Record stores a failure for id with the TTL of its category, replacing any
// previous entry. A non-positive TTL disables negative caching for that
// category; the returned entry is then already expired and nothing is stored.
func (n *Negative) Record(ctx context.Context, id string, c failure.Category) NegativeEntry {
	now := n.now()
	ttl := n.policy.TTL(c)
	e := NegativeEntry{ID: id, Category: c, ExpiresAt: now.Add(max(ttl, 0))}
	if ttl <= 0 {
		return e
	}
	n.entries[id] = e

	if n.shared.enabled() {
		if raw, err := json.Marshal(e); err == nil {
			_ = n.shared.Store.Set(ctx, n.shared.key("neg", id), raw, ttl)
		}
	}
	return e
}

// Forget drops id locally and from the shared store.
func (n *Negative) Forget(ctx context.Context, id string) {
	delete(n.entries, id)
	if n.shared.enabled() {
		_ = n.shared.Store.Delete(ctx, n.shared.key("neg", id))
	}
}

// Len returns the number of locally held entries, including expired ones
// not yet looked up.
func (n *Negative) Len() int {
	return len(n.entries)
}

// SetClock replaces the time source used for expiry.
func (n *Negative) SetClock(now func() time.Time) {
	n.nowFunc = now
}

func (n *Negative) now() time.Time {
	if n.nowFunc != nil {
		return n.nowFunc()
	}
	return time.Now()
}
