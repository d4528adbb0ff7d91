package statemachine

import (
	"strings"
	"testing"
)

func TestDefaultCatalog_Valid(t *testing.T) {
	if err := DefaultCatalog().Validate(); err != nil {
		t.Fatalf("default catalog should validate: %v", err)
	}
}

func TestDefaultCatalog_CoversFraudGraph(t *testing.T) {
	c := DefaultCatalog()

	// Every edge of the fraud lifecycle must be present exactly once.
	wantEdges := map[string][2]string{
		ActionMarkAsFraudReview:             {StateOpen, StateFraudReview},
		ActionMarkAsFraudPass:               {StateOpen, StateFraudPass},
		ActionMarkAsOpen:                    {StateFraudReview, StateOpen},
		ActionMarkAsFraudManualPass:         {StateFraudReview, StateFraudPass},
		ActionMarkAsFraudFail:               {StateFraudReview, StateFraudFail},
		ActionMarkAsCancel:                  {StateFraudReview, StateCancelled},
		ActionMarkAsFraudManualReview:       {StateFraudPass, StateFraudReview},
		ActionMarkAsInProgress:              {StateFraudPass, StateInProgress},
		ActionMarkAsCompleted:               {StateFraudPass, StateCompleted},
		ActionSetCancelFromFraudPass:        {StateFraudPass, StateCancelled},
		ActionMarkAsFraudReviewFromFail:     {StateFraudFail, StateFraudReview},
		ActionSetCancelFromFraudFail:        {StateFraudFail, StateCancelled},
		ActionMarkAsFraudPassFromInProgress: {StateInProgress, StateFraudPass},
		ActionMarkAsFraudPassFromCompleted:  {StateCompleted, StateFraudPass},
	}

	got := make(map[string][2]string)
	for _, tr := range c.Transitions {
		got[tr.ActionName] = [2]string{tr.From, tr.To}
	}

	for action, edge := range wantEdges {
		if got[action] != edge {
			t.Errorf("action %s: want %v→%v, got %v→%v", action, edge[0], edge[1], got[action][0], got[action][1])
		}
	}
}

func TestCatalogValidate_DuplicateAction(t *testing.T) {
	c := DefaultCatalog()
	// Rebind an existing action name to a different pair, the way the legacy
	// per-group installers did.
	c.Transitions = append(c.Transitions, CatalogTransition{
		ActionName: ActionMarkAsCancel,
		From:       StatePendingFraudReview,
		To:         StateCancelled,
	})

	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation error for duplicate action name")
	}
	if !strings.Contains(err.Error(), ActionMarkAsCancel) {
		t.Errorf("error should name the colliding action, got: %v", err)
	}
}

func TestCatalogValidate_UnknownState(t *testing.T) {
	c := DefaultCatalog()
	c.Transitions = append(c.Transitions, CatalogTransition{
		ActionName: "mark_as_limbo",
		From:       StateOpen,
		To:         "limbo",
	})

	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error for unknown to-state")
	}
}

func TestCatalogValidate_BaseStateShadowing(t *testing.T) {
	c := DefaultCatalog()
	c.BaseStates = append(c.BaseStates, StateFraudReview)

	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error when a base state shadows a catalog state")
	}
}
