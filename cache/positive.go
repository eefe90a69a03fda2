package cache

import (
	"context"
	"encoding/json"

	"github.com/Keksclan/goRawrRemote/document"
)

// Positive maps IDs to previously fetched entities. Entities are stored as
// copies, and a Put replaces the previous entity instead of changing it.
type Positive struct {
	entries map[string]document.Entity
	shared  *Shared
}

// NewPositive returns an empty cache. shared may be nil.
func NewPositive(shared *Shared) *Positive {
	return &Positive{
		entries: make(map[string]document.Entity),
		shared:  shared,
	}
}

// Get returns the entity for id. Local entries win; a shared hit is copied
// into the local map.
func (p *Positive) Get(ctx context.Context, id string) (document.Entity, bool) {
	if e, ok := p.entries[id]; ok {
		return e.Clone(), true
	}
	if !p.shared.enabled() {
		return document.Entity{}, false
	}

	raw, ok, err := p.shared.Store.Get(ctx, p.shared.key("pos", id))
	if err != nil || !ok {
		return document.Entity{}, false
	}
	var e document.Entity
	if err := json.Unmarshal(raw, &e); err != nil || e.ID != id {
		return document.Entity{}, false
	}
	p.entries[id] = e
	return e.Clone(), true
}

// Put stores e under its ID.
func (p *Positive) Put(ctx context.Context, e document.Entity) {
	if e.ID == "" {
		return
	}
	p.entries[e.ID] = e.Clone()

	if p.shared.enabled() {
		if raw, err := json.Marshal(e); err == nil {
			_ = p.shared.Store.Set(ctx, p.shared.key("pos", e.ID), raw, p.shared.TTL)
		}
	}
}

// Delete drops id locally and from the shared store.
func (p *Positive) Delete(ctx context.Context, id string) {
	delete(p.entries, id)
	if p.shared.enabled() {
		_ = p.shared.Store.Delete(ctx, p.shared.key("pos", id))
	}
}

// Len returns the number of locally held entities.
func (p *Positive) Len() int {
	return len(p.entries)
}
