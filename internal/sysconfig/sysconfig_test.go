package sysconfig

import (
	"context"
	"testing"
)

func TestService_ChannelFallback(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	if err := svc.SetString(ctx, KeyRiskThreshold, GlobalScope, "50"); err != nil {
		t.Fatalf("set global: %v", err)
	}
	if err := svc.SetString(ctx, KeyRiskThreshold, "channel-a", "75"); err != nil {
		t.Fatalf("set channel: %v", err)
	}

	// Channel with its own value wins.
	v, ok, err := svc.GetFloat(ctx, KeyRiskThreshold, "channel-a")
	if err != nil || !ok {
		t.Fatalf("get channel-a: ok=%v err=%v", ok, err)
	}
	if v != 75 {
		t.Errorf("expected channel override 75, got %v", v)
	}

	// Channel without a value falls back to global.
	v, ok, err = svc.GetFloat(ctx, KeyRiskThreshold, "channel-b")
	if err != nil || !ok {
		t.Fatalf("get channel-b: ok=%v err=%v", ok, err)
	}
	if v != 50 {
		t.Errorf("expected global fallback 50, got %v", v)
	}

	// Global scope read.
	v, ok, err = svc.GetFloat(ctx, KeyRiskThreshold, GlobalScope)
	if err != nil || !ok || v != 50 {
		t.Errorf("global read: got v=%v ok=%v err=%v", v, ok, err)
	}
}

func TestService_MissingKey(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	_, ok, err := svc.GetString(ctx, KeyLicenseKey, "channel-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing key")
	}
}

func TestService_IntRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	if err := svc.SetInt64(ctx, KeyLastCalculationTime, "ch", 1735689600); err != nil {
		t.Fatalf("set: %v", err)
	}
	n, ok, err := svc.GetInt64(ctx, KeyLastCalculationTime, "ch")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if n != 1735689600 {
		t.Errorf("expected 1735689600, got %d", n)
	}
}

func TestService_MalformedNumber(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	if err := svc.SetString(ctx, KeyRiskThreshold, GlobalScope, "not-a-number"); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, ok, err := svc.GetFloat(ctx, KeyRiskThreshold, GlobalScope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for malformed float")
	}
}
