//go:build integration

package sysconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/solution25com/fraudshield/internal/testutil"
)

func TestPostgresConfigRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if _, err := store.Get(ctx, KeyAccountID, GlobalScope); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}

	if err := store.Set(ctx, KeyAccountID, GlobalScope, "12345"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get(ctx, KeyAccountID, GlobalScope)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "12345" {
		t.Errorf("expected 12345, got %q", got)
	}

	// Writing the same key again updates in place.
	if err := store.Set(ctx, KeyAccountID, GlobalScope, "67890"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = store.Get(ctx, KeyAccountID, GlobalScope)
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if got != "67890" {
		t.Errorf("expected 67890 after overwrite, got %q", got)
	}

	if err := store.Delete(ctx, KeyAccountID, GlobalScope); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, KeyAccountID, GlobalScope); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresConfigChannelFallback(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	svc := NewService(NewPostgresStore(db))
	ctx := context.Background()

	if err := svc.SetString(ctx, KeyRiskThreshold, GlobalScope, "50"); err != nil {
		t.Fatalf("set global: %v", err)
	}
	if err := svc.SetString(ctx, KeyRiskThreshold, "channel-1", "30"); err != nil {
		t.Fatalf("set channel: %v", err)
	}

	// The channel's own value wins over the global one.
	v, ok, err := svc.GetFloat(ctx, KeyRiskThreshold, "channel-1")
	if err != nil || !ok {
		t.Fatalf("channel read: v=%v ok=%v err=%v", v, ok, err)
	}
	if v != 30 {
		t.Errorf("expected channel threshold 30, got %v", v)
	}

	// A channel without its own value falls back to the global scope.
	v, ok, err = svc.GetFloat(ctx, KeyRiskThreshold, "channel-2")
	if err != nil || !ok {
		t.Fatalf("fallback read: v=%v ok=%v err=%v", v, ok, err)
	}
	if v != 50 {
		t.Errorf("expected global threshold 50, got %v", v)
	}
}
