// Package statemachine implements the fraud-review order state machine.
//
// The package owns three things: the canonical catalog of fraud states and
// transitions, an idempotent installer that materializes the catalog into a
// persistent state-machine store, and transition execution for entities
// (orders) whose lifecycle the machine governs.
package statemachine

import (
	"context"
	"errors"
	"time"
)

// OrderStateMachine is the technical name of the order lifecycle machine.
const OrderStateMachine = "order.state"

// EntityTypeOrder is the entity type orders transition under. An entity
// type maps to the machine named "<type>.state".
const EntityTypeOrder = "order"

// Base state technical names that ship with the host order subsystem.
const (
	StateOpen       = "open"
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
	StateCancelled  = "cancelled"
)

// Fraud state technical names installed by this package.
const (
	StateFraudReview        = "fraud_review"
	StateFraudPass          = "fraud_pass"
	StateFraudFail          = "fraud_fail"
	StatePendingFraudReview = "pending_fraud_review"
)

// Action names of the canonical transition table.
const (
	ActionMarkAsFraudReview             = "mark_as_fraud_review"
	ActionMarkAsOpen                    = "mark_as_open"
	ActionMarkAsCancel                  = "mark_as_cancel"
	ActionMarkAsFraudFail               = "mark_as_fraud_fail"
	ActionMarkAsFraudPass               = "mark_as_fraud_pass"
	ActionMarkAsFraudManualReview       = "mark_as_fraud_manual_review"
	ActionMarkAsFraudManualPass         = "mark_as_fraud_manual_pass"
	ActionMarkAsFraudReviewFromFail     = "mark_as_fraud_review_from_fail"
	ActionMarkAsInProgress              = "mark_as_in_progress"
	ActionMarkAsFraudPassFromInProgress = "mark_as_fraud_pass_from_in_progress"
	ActionMarkAsCompleted               = "mark_as_completed"
	ActionMarkAsFraudPassFromCompleted  = "mark_as_fraud_pass_from_completed"
	ActionSetCancelFromFraudFail        = "set_cancel_from_fraud_fail"
	ActionSetCancelFromFraudPass        = "set_cancel_from_fraud_pass"
	ActionSetCancelFromFraudReview      = "set_cancel_from_fraud_review"
	ActionMarkAsOpenFromPending         = "mark_as_open_from_pending"
	ActionSetCancelFromPending          = "set_cancel_from_pending"
	ActionPendingAsFraudReview          = "pending_as_fraud_review"
)

var (
	ErrStateMachineNotFound = errors.New("state machine not found")
	ErrStateNotFound        = errors.New("state not found")
	ErrTransitionNotFound   = errors.New("transition not found")
	ErrNoEntityState        = errors.New("entity has no state")
	ErrInvalidTransition    = errors.New("invalid transition")
)

// StateMachine is a named graph of states and transitions.
type StateMachine struct {
	ID            string `json:"id"`
	TechnicalName string `json:"technicalName"`
}

// State is a node in a state machine, unique by technical name per machine.
type State struct {
	ID             string            `json:"id"`
	StateMachineID string            `json:"stateMachineId"`
	TechnicalName  string            `json:"technicalName"`
	Name           string            `json:"name"`
	Labels         map[string]string `json:"labels,omitempty"` // locale → display name
}

// Transition is a directed edge, unique by action name per machine.
type Transition struct {
	ID             string `json:"id"`
	StateMachineID string `json:"stateMachineId"`
	ActionName     string `json:"actionName"`
	FromStateID    string `json:"fromStateId"`
	ToStateID      string `json:"toStateId"`
}

// HistoryEntry records one executed transition of an entity.
type HistoryEntry struct {
	ID             string    `json:"id"`
	StateMachineID string    `json:"stateMachineId"`
	EntityType     string    `json:"entityType"`
	EntityID       string    `json:"entityId"`
	ActionName     string    `json:"actionName"`
	FromStateID    string    `json:"fromStateId"`
	ToStateID      string    `json:"toStateId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store persists state machines, their graphs, and entity state.
//
// Lookup methods return the *NotFound sentinel errors above; delete methods
// remove whatever subset of the given IDs exists.
type Store interface {
	FindStateMachine(ctx context.Context, technicalName string) (*StateMachine, error)
	FindState(ctx context.Context, stateMachineID, technicalName string) (*State, error)
	FindStates(ctx context.Context, stateMachineID string, technicalNames []string) ([]*State, error)
	UpsertState(ctx context.Context, state *State) error

	FindTransition(ctx context.Context, stateMachineID, actionName, fromStateID, toStateID string) (*Transition, error)
	UpsertTransitions(ctx context.Context, transitions []*Transition) error
	TransitionsByAction(ctx context.Context, stateMachineID string, actionNames []string) ([]*Transition, error)
	TransitionsReferencingStates(ctx context.Context, stateIDs []string) ([]*Transition, error)
	HistoryReferencingStates(ctx context.Context, stateIDs []string) ([]*HistoryEntry, error)

	DeleteStates(ctx context.Context, ids []string) error
	DeleteTransitions(ctx context.Context, ids []string) error
	DeleteHistory(ctx context.Context, ids []string) error

	// EntityState returns the current state of an entity, ErrNoEntityState
	// when none has been assigned yet.
	EntityState(ctx context.Context, entityType, entityID string) (*State, error)
	// SetEntityState assigns an initial state (by technical name) without
	// writing history. Used when an order enters the fraud subsystem.
	SetEntityState(ctx context.Context, entityType, entityID, technicalName string) error
	// ExecuteTransition applies the named action to the entity. It fails
	// with ErrInvalidTransition when no edge with that action leaves the
	// entity's current state, and records a history entry on success.
	ExecuteTransition(ctx context.Context, entityType, entityID, actionName string) (*Transition, error)
}
