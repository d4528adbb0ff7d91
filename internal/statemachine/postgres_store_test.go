//go:build integration

package statemachine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/solution25com/fraudshield/internal/testutil"
)

func TestPostgresInstallAndTransition(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.EnsureOrderStateMachine(ctx); err != nil {
		t.Fatalf("ensure order state machine: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	installer := NewInstaller(store, DefaultCatalog(), logger)
	if err := installer.Install(ctx); err != nil {
		t.Fatalf("install: %v", err)
	}
	// Second run must be a no-op.
	if err := installer.Install(ctx); err != nil {
		t.Fatalf("reinstall: %v", err)
	}

	if err := store.SetEntityState(ctx, EntityTypeOrder, "order-1", StateOpen); err != nil {
		t.Fatalf("set entity state: %v", err)
	}

	tr, err := store.ExecuteTransition(ctx, EntityTypeOrder, "order-1", ActionMarkAsFraudReview)
	if err != nil {
		t.Fatalf("execute transition: %v", err)
	}
	if tr.ActionName != ActionMarkAsFraudReview {
		t.Errorf("unexpected transition action %q", tr.ActionName)
	}

	state, err := store.EntityState(ctx, EntityTypeOrder, "order-1")
	if err != nil {
		t.Fatalf("entity state: %v", err)
	}
	if state.TechnicalName != StateFraudReview {
		t.Errorf("expected state %q, got %q", StateFraudReview, state.TechnicalName)
	}

	// One history row per executed transition.
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM state_machine_history WHERE entity_id = 'order-1'`,
	).Scan(&count); err != nil {
		t.Fatalf("count history: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 history row, got %d", count)
	}
}

func TestPostgresInvalidTransition(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.EnsureOrderStateMachine(ctx); err != nil {
		t.Fatalf("ensure order state machine: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := NewInstaller(store, DefaultCatalog(), logger).Install(ctx); err != nil {
		t.Fatalf("install: %v", err)
	}

	if err := store.SetEntityState(ctx, EntityTypeOrder, "order-2", StateCancelled); err != nil {
		t.Fatalf("set entity state: %v", err)
	}

	_, err := store.ExecuteTransition(ctx, EntityTypeOrder, "order-2", ActionMarkAsFraudReview)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
