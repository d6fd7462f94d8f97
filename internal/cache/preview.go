package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const previewKey = "woosync:preview:latest"

// PreviewStore holds the last sync preview snapshot fetched from the
// backend. It is an explicit injected store rather than ambient
// package state: loaded once at startup, refreshed on demand, and
// invalidated whenever a sync run mutates the catalogs.
//
// With redis configured the snapshot survives restarts and is shared
// between replicas; otherwise a process-local copy is kept.
type PreviewStore struct {
	rdb *redis.Client
	ttl time.Duration

	mu    sync.RWMutex
	local json.RawMessage
	since time.Time
}

// NewPreviewStore builds a PreviewStore. rdb may be nil.
func NewPreviewStore(rdb *redis.Client, ttl time.Duration) *PreviewStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &PreviewStore{rdb: rdb, ttl: ttl}
}

// Get returns the cached snapshot, or ok=false when nothing usable is
// cached. Redis errors degrade to a cache miss.
func (p *PreviewStore) Get(ctx context.Context) (json.RawMessage, bool) {
	if p.rdb != nil {
		raw, err := p.rdb.Get(ctx, previewKey).Bytes()
		if err == nil && len(raw) > 0 {
			return raw, true
		}
		if err != nil && err != redis.Nil {
			// Fall through to the local copy on a redis outage.
			return p.getLocal()
		}
		return nil, false
	}
	return p.getLocal()
}

func (p *PreviewStore) getLocal() (json.RawMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.local == nil || time.Since(p.since) > p.ttl {
		return nil, false
	}
	return p.local, true
}

// Set stores a fresh snapshot.
func (p *PreviewStore) Set(ctx context.Context, snapshot json.RawMessage) {
	p.mu.Lock()
	p.local = snapshot
	p.since = time.Now()
	p.mu.Unlock()

	if p.rdb != nil {
		_ = p.rdb.Set(ctx, previewKey, []byte(snapshot), p.ttl).Err()
	}
}

// Invalidate discards the snapshot. Called after any sync run that
// actually wrote to the catalogs, so the next read refetches.
func (p *PreviewStore) Invalidate(ctx context.Context) {
	p.mu.Lock()
	p.local = nil
	p.mu.Unlock()

	if p.rdb != nil {
		_ = p.rdb.Del(ctx, previewKey).Err()
	}
}
