package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestPreviewStore_LocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewPreviewStore(nil, time.Minute)

	if _, ok := p.Get(ctx); ok {
		t.Fatalf("empty store should miss")
	}

	snapshot := json.RawMessage(`{"products":{"create":3}}`)
	p.Set(ctx, snapshot)

	got, ok := p.Get(ctx)
	if !ok {
		t.Fatalf("expected hit after Set")
	}
	if string(got) != string(snapshot) {
		t.Fatalf("got %s", got)
	}
}

func TestPreviewStore_Invalidate(t *testing.T) {
	ctx := context.Background()
	p := NewPreviewStore(nil, time.Minute)

	p.Set(ctx, json.RawMessage(`{"orders":{"skip":1}}`))
	p.Invalidate(ctx)

	if _, ok := p.Get(ctx); ok {
		t.Fatalf("expected miss after Invalidate")
	}
}

func TestPreviewStore_LocalTTLExpiry(t *testing.T) {
	ctx := context.Background()
	p := NewPreviewStore(nil, time.Minute)

	p.Set(ctx, json.RawMessage(`{}`))
	p.mu.Lock()
	p.since = time.Now().Add(-2 * time.Minute)
	p.mu.Unlock()

	if _, ok := p.Get(ctx); ok {
		t.Fatalf("stale snapshot should miss")
	}
}

func TestNewPreviewStore_DefaultTTL(t *testing.T) {
	p := NewPreviewStore(nil, 0)
	if p.ttl != 30*time.Minute {
		t.Fatalf("ttl = %v", p.ttl)
	}
}
