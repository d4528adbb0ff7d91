package order

import (
	"context"
	"testing"
	"time"
)

func TestFraudMetadataFields(t *testing.T) {
	md := &FraudMetadata{
		RiskScore:        72.5,
		OverallRiskScore: 40.0,
		IPRiskScore:      12.3,
		TransactionID:    "txn-1",
		TransactionURL:   "https://example.com/txn-1",
		WarningsFactors:  []string{"BILLING_POSTAL_NOT_FOUND"},
	}

	fields := md.Fields()
	want := []string{
		FieldFraudRisk, FieldOverallRiskScore, FieldIPRiskScore,
		FieldTransactionID, FieldTransactionURL, FieldWarningsFactors,
	}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d: %v", len(want), len(fields), fields)
	}
	for _, k := range want {
		if _, ok := fields[k]; !ok {
			t.Errorf("missing field %q", k)
		}
	}
	if fields[FieldFraudRisk] != 72.5 {
		t.Errorf("expected fraud_risk 72.5, got %v", fields[FieldFraudRisk])
	}
}

func TestFraudMetadataFieldsNilWarnings(t *testing.T) {
	md := &FraudMetadata{RiskScore: 1}
	fields := md.Fields()
	ws, ok := fields[FieldWarningsFactors].([]string)
	if !ok {
		t.Fatalf("warnings_factors is not []string: %T", fields[FieldWarningsFactors])
	}
	if ws == nil {
		t.Error("warnings_factors should never be nil")
	}
}

func TestFraudMetadataRoundTrip(t *testing.T) {
	md := &FraudMetadata{
		RiskScore:        10.0,
		OverallRiskScore: 20.0,
		IPRiskScore:      5.5,
		TransactionID:    "txn-9",
		TransactionURL:   "https://example.com/txn-9",
		WarningsFactors:  []string{"a", "b"},
	}

	got, ok := FraudMetadataFrom(md.Fields())
	if !ok {
		t.Fatal("expected metadata to parse back")
	}
	if got.RiskScore != md.RiskScore || got.IPRiskScore != md.IPRiskScore {
		t.Errorf("scores mismatch: got %+v", got)
	}
	if got.TransactionID != "txn-9" {
		t.Errorf("expected transaction id txn-9, got %q", got.TransactionID)
	}
	if len(got.WarningsFactors) != 2 {
		t.Errorf("expected 2 warnings, got %v", got.WarningsFactors)
	}
}

func TestFraudMetadataFromMissing(t *testing.T) {
	if _, ok := FraudMetadataFrom(nil); ok {
		t.Error("nil fields should not parse")
	}
	if _, ok := FraudMetadataFrom(map[string]any{"other": 1}); ok {
		t.Error("unrelated fields should not parse")
	}
}

func TestUpdateCustomFieldsMerges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Create(ctx, &Order{
		ID:           "order-1",
		OrderNumber:  "10001",
		CustomFields: map[string]any{"gift_wrap": true},
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.UpdateCustomFields(ctx, "order-1", map[string]any{
		FieldFraudRisk: 33.0,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CustomFields["gift_wrap"] != true {
		t.Error("merge dropped pre-existing custom field")
	}
	if got.CustomFields[FieldFraudRisk] != 33.0 {
		t.Errorf("expected fraud_risk 33.0, got %v", got.CustomFields[FieldFraudRisk])
	}
}

func TestUpdateCustomFieldsNotFound(t *testing.T) {
	store := NewMemoryStore()
	err := store.UpdateCustomFields(context.Background(), "nope", map[string]any{"a": 1})
	if err != ErrOrderNotFound {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestListScoredNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if err := store.Create(ctx, &Order{
			ID:           id,
			CustomFields: map[string]any{FieldFraudRisk: float64(i)},
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	// Unscored orders never show up.
	if err := store.Create(ctx, &Order{ID: "plain", CreatedAt: base.Add(10 * time.Hour)}); err != nil {
		t.Fatalf("create plain: %v", err)
	}

	got, err := store.ListScored(ctx, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 scored orders, got %d", len(got))
	}
	if got[0].ID != "new" || got[2].ID != "old" {
		t.Errorf("expected newest first, got %s..%s", got[0].ID, got[2].ID)
	}

	capped, err := store.ListScored(ctx, 2)
	if err != nil {
		t.Fatalf("list capped: %v", err)
	}
	if len(capped) != 2 {
		t.Errorf("expected limit 2, got %d", len(capped))
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Create(ctx, &Order{ID: "o1", CustomFields: map[string]any{"k": "v"}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, _ := store.Get(ctx, "o1")
	first.CustomFields["k"] = "mutated"

	second, _ := store.Get(ctx, "o1")
	if second.CustomFields["k"] != "v" {
		t.Error("store returned shared map, mutation leaked")
	}
}
