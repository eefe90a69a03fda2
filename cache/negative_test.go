package cache

import (
	"testing"
	"time"

	"github.com/Keksclan/goRawrRemote/failure"
)

func newTestNegative(policy TTLPolicy, shared *Shared) (*Negative, *time.Time) {
	n := NewNegative(policy, shared)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	n.nowFunc = func() time.Time { return now }
	return n, &now
}

func TestNegative_RecordAndLookup(t *testing.T) {
	n, _ := newTestNegative(DefaultTTLPolicy(), nil)
	ctx := t.Context()

	if _, ok := n.Lookup(ctx, "a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	e := n.Record(ctx, "a", failure.NotFound)
	if e.Category != failure.NotFound {
		t.Fatalf("unexpected category %v", e.Category)
	}

	got, ok := n.Lookup(ctx, "a")
	if !ok || got != e {
		t.Fatalf("Lookup = %+v (ok=%v), want %+v", got, ok, e)
	}
	if n.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", n.Len())
	}
}

func TestNegative_CategoryTTL(t *testing.T) {
	n, now := newTestNegative(DefaultTTLPolicy(), nil)
	ctx := t.Context()

	n.Record(ctx, "slow", failure.Timeout)
	n.Record(ctx, "gone", failure.NotFound)

	*now = now.Add(11 * time.Second)

	if _, ok := n.Lookup(ctx, "slow"); ok {
		t.Fatal("timeout entry should expire after its short TTL")
	}
	if _, ok := n.Lookup(ctx, "gone"); !ok {
		t.Fatal("not-found entry should outlive the timeout TTL")
	}
	if n.Len() != 1 {
		t.Fatalf("expired entry must be removed on lookup, len=%d", n.Len())
	}
}

func TestNegative_ExpiresExactlyAtDeadline(t *testing.T) {
	policy := TTLPolicy{Default: time.Minute}
	n, now := newTestNegative(policy, nil)
	ctx := t.Context()

	n.Record(ctx, "a", failure.Unknown)

	*now = now.Add(time.Minute - time.Nanosecond)
	if _, ok := n.Lookup(ctx, "a"); !ok {
		t.Fatal("expected hit just before the deadline")
	}

	*now = now.Add(time.Nanosecond)
	if _, ok := n.Lookup(ctx, "a"); ok {
		t.Fatal("expected miss at the deadline")
	}
}

func TestNegative_RecordOverwrites(t *testing.T) {
	n, now := newTestNegative(DefaultTTLPolicy(), nil)
	ctx := t.Context()

	n.Record(ctx, "a", failure.Timeout)
	*now = now.Add(time.Second)
	n.Record(ctx, "a", failure.NotFound)

	e, ok := n.Lookup(ctx, "a")
	if !ok || e.Category != failure.NotFound {
		t.Fatalf("expected overwritten entry, got %+v", e)
	}
}

func TestNegative_ZeroTTLDisablesCategory(t *testing.T) {
	policy := DefaultTTLPolicy()
	policy.ByCategory[failure.RateLimited] = 0
	n, _ := newTestNegative(policy, nil)
	ctx := t.Context()

	n.Record(ctx, "a", failure.RateLimited)
	if _, ok := n.Lookup(ctx, "a"); ok {
		t.Fatal("zero TTL must not block lookups")
	}
	if n.Len() != 0 {
		t.Fatalf("expected nothing stored, len=%d", n.Len())
	}
}

func TestNegative_Forget(t *testing.T) {
	n, _ := newTestNegative(DefaultTTLPolicy(), nil)
	ctx := t.Context()

	n.Record(ctx, "a", failure.AuthError)
	n.Forget(ctx, "a")
	if _, ok := n.Lookup(ctx, "a"); ok {
		t.Fatal("expected miss after Forget")
	}
}

func TestNegative_SharedAcrossInstances(t *testing.T) {
	l1 := mustNewL1(t)
	shared := &Shared{Store: l1, Namespace: "users"}
	ctx := t.Context()

	first, _ := newTestNegative(DefaultTTLPolicy(), shared)
	first.Record(ctx, "a", failure.NotFound)

	second, now := newTestNegative(DefaultTTLPolicy(), shared)
	e, ok := second.Lookup(ctx, "a")
	if !ok || e.Category != failure.NotFound {
		t.Fatalf("expected shared entry, got %+v (ok=%v)", e, ok)
	}

	*now = now.Add(2 * time.Hour)
	if _, ok := second.Lookup(ctx, "a"); ok {
		t.Fatal("shared entry must honour its expiry")
	}

	first.Forget(ctx, "a")
	third, _ := newTestNegative(DefaultTTLPolicy(), shared)
	if _, ok := third.Lookup(ctx, "a"); ok {
		t.Fatal("Forget must remove the shared entry")
	}
}

func TestTTLPolicyFallback(t *testing.T) {
	p := DefaultTTLPolicy()
	if got := p.TTL(failure.Unknown); got != time.Minute {
		t.Fatalf("Unknown TTL = %v, want default", got)
	}
	for _, c := range []failure.Category{failure.Timeout, failure.ConnectionError, failure.RateLimited} {
		if p.TTL(c) >= p.TTL(failure.NotFound) {
			t.Fatalf("transient category %v must have a shorter TTL than not_found", c)
		}
	}
}
