package statemachine

import (
	"fmt"
)

// CatalogState declares a state the installer creates if missing.
type CatalogState struct {
	TechnicalName string
	Name          string
	Labels        map[string]string // locale → display name
}

// CatalogTransition declares one edge of the canonical transition table.
type CatalogTransition struct {
	ActionName string
	From       string
	To         string
}

// Catalog is the declarative definition of the fraud subgraph of a state
// machine: the states to create and the transitions wiring them to each
// other and to the machine's base states.
type Catalog struct {
	StateMachine string
	States       []CatalogState
	// BaseStates are expected to pre-exist in the target machine. They are
	// never created or removed; transitions referencing a missing base state
	// are skipped during install.
	BaseStates  []string
	Transitions []CatalogTransition
}

// DefaultCatalog returns the canonical fraud-review catalog for the order
// state machine.
//
// The table is flat and every action name is globally unique. The legacy
// plugin split this across seven per-state installers that rebound several
// action names (mark_as_cancel, mark_as_fraud_review, mark_as_open,
// mark_as_fraud_pass) to different from/to pairs depending on install order;
// those later bindings carry disambiguated names here (for example
// set_cancel_from_fraud_fail, mark_as_fraud_review_from_fail).
func DefaultCatalog() *Catalog {
	return &Catalog{
		StateMachine: OrderStateMachine,
		States: []CatalogState{
			{
				TechnicalName: StateFraudReview,
				Name:          "Fraud Review",
				Labels:        map[string]string{"en-GB": "Fraud Review", "de-DE": "Betrugsüberprüfung"},
			},
			{
				TechnicalName: StateFraudPass,
				Name:          "Fraud Pass",
				Labels:        map[string]string{"en-GB": "Fraud Pass", "de-DE": "Betrugsprüfung bestanden"},
			},
			{
				TechnicalName: StateFraudFail,
				Name:          "Fraud Fail",
				Labels:        map[string]string{"en-GB": "Fraud Fail", "de-DE": "Betrugsprüfung fehlgeschlagen"},
			},
			{
				TechnicalName: StatePendingFraudReview,
				Name:          "Pending",
				Labels:        map[string]string{"en-GB": "Pending", "de-DE": "Ausstehend"},
			},
		},
		BaseStates: []string{StateOpen, StateInProgress, StateCompleted, StateCancelled},
		Transitions: []CatalogTransition{
			// Entering and leaving fraud review.
			{ActionName: ActionMarkAsFraudReview, From: StateOpen, To: StateFraudReview},
			{ActionName: ActionMarkAsOpen, From: StateFraudReview, To: StateOpen},
			{ActionName: ActionMarkAsCancel, From: StateFraudReview, To: StateCancelled},
			{ActionName: ActionMarkAsFraudFail, From: StateFraudReview, To: StateFraudFail},

			// Pass disposition.
			{ActionName: ActionMarkAsFraudPass, From: StateOpen, To: StateFraudPass},
			{ActionName: ActionMarkAsFraudManualReview, From: StateFraudPass, To: StateFraudReview},
			{ActionName: ActionMarkAsFraudManualPass, From: StateFraudReview, To: StateFraudPass},

			// Fail disposition.
			{ActionName: ActionMarkAsFraudReviewFromFail, From: StateFraudFail, To: StateFraudReview},

			// Onward order lifecycle from fraud pass.
			{ActionName: ActionMarkAsInProgress, From: StateFraudPass, To: StateInProgress},
			{ActionName: ActionMarkAsFraudPassFromInProgress, From: StateInProgress, To: StateFraudPass},
			{ActionName: ActionMarkAsCompleted, From: StateFraudPass, To: StateCompleted},
			{ActionName: ActionMarkAsFraudPassFromCompleted, From: StateCompleted, To: StateFraudPass},

			// Cancellation edges.
			{ActionName: ActionSetCancelFromFraudFail, From: StateFraudFail, To: StateCancelled},
			{ActionName: ActionSetCancelFromFraudPass, From: StateFraudPass, To: StateCancelled},
			{ActionName: ActionSetCancelFromFraudReview, From: StateFraudReview, To: StateCancelled},

			// Pending bucket for staged imports.
			{ActionName: ActionPendingAsFraudReview, From: StatePendingFraudReview, To: StateFraudReview},
			{ActionName: ActionMarkAsOpenFromPending, From: StatePendingFraudReview, To: StateOpen},
			{ActionName: ActionSetCancelFromPending, From: StatePendingFraudReview, To: StateCancelled},
		},
	}
}

// Validate checks catalog consistency: action names must be globally unique
// and every transition endpoint must be a catalog or base state.
func (c *Catalog) Validate() error {
	known := make(map[string]bool, len(c.States)+len(c.BaseStates))
	for _, s := range c.States {
		if s.TechnicalName == "" {
			return fmt.Errorf("catalog %s: state with empty technical name", c.StateMachine)
		}
		if known[s.TechnicalName] {
			return fmt.Errorf("catalog %s: duplicate state %q", c.StateMachine, s.TechnicalName)
		}
		known[s.TechnicalName] = true
	}
	for _, s := range c.BaseStates {
		if known[s] {
			return fmt.Errorf("catalog %s: base state %q shadows a catalog state", c.StateMachine, s)
		}
		known[s] = true
	}

	actions := make(map[string]CatalogTransition, len(c.Transitions))
	for _, tr := range c.Transitions {
		if tr.ActionName == "" {
			return fmt.Errorf("catalog %s: transition with empty action name", c.StateMachine)
		}
		if prev, ok := actions[tr.ActionName]; ok {
			return fmt.Errorf("catalog %s: action %q bound to both %s→%s and %s→%s",
				c.StateMachine, tr.ActionName, prev.From, prev.To, tr.From, tr.To)
		}
		actions[tr.ActionName] = tr

		if !known[tr.From] {
			return fmt.Errorf("catalog %s: action %q references unknown from-state %q", c.StateMachine, tr.ActionName, tr.From)
		}
		if !known[tr.To] {
			return fmt.Errorf("catalog %s: action %q references unknown to-state %q", c.StateMachine, tr.ActionName, tr.To)
		}
	}
	return nil
}

// ActionNames returns every action name in the catalog, in table order.
func (c *Catalog) ActionNames() []string {
	names := make([]string, len(c.Transitions))
	for i, tr := range c.Transitions {
		names[i] = tr.ActionName
	}
	return names
}

// stateNames returns the technical names referenced by any transition.
func (c *Catalog) stateNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, tr := range c.Transitions {
		for _, n := range []string{tr.From, tr.To} {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}
