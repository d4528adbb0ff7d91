package statemachine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/solution25com/fraudshield/internal/idgen"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory state-machine store for demo/development mode.
type MemoryStore struct {
	mu           sync.RWMutex
	machines     map[string]*StateMachine // by ID
	states       map[string]*State        // by ID
	transitions  map[string]*Transition   // by ID
	history      []*HistoryEntry          // in execution order
	entityStates map[string]string        // entityType/entityID → state ID
}

// NewMemoryStore creates a new in-memory state-machine store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		machines:     make(map[string]*StateMachine),
		states:       make(map[string]*State),
		transitions:  make(map[string]*Transition),
		entityStates: make(map[string]string),
	}
}

// SeedOrderStateMachine creates the order.state machine with its base
// states, mirroring what the host order subsystem ships with. Memory-mode
// servers and tests call this before installing the fraud catalog.
func (m *MemoryStore) SeedOrderStateMachine() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sm := range m.machines {
		if sm.TechnicalName == OrderStateMachine {
			return
		}
	}

	machine := &StateMachine{ID: idgen.New(), TechnicalName: OrderStateMachine}
	m.machines[machine.ID] = machine

	base := map[string]string{
		StateOpen:       "Open",
		StateInProgress: "In Progress",
		StateCompleted:  "Completed",
		StateCancelled:  "Cancelled",
	}
	for technicalName, name := range base {
		s := &State{
			ID:             idgen.New(),
			StateMachineID: machine.ID,
			TechnicalName:  technicalName,
			Name:           name,
		}
		m.states[s.ID] = s
	}
}

func (m *MemoryStore) FindStateMachine(ctx context.Context, technicalName string) (*StateMachine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sm := range m.machines {
		if sm.TechnicalName == technicalName {
			cp := *sm
			return &cp, nil
		}
	}
	return nil, ErrStateMachineNotFound
}

func (m *MemoryStore) FindState(ctx context.Context, stateMachineID, technicalName string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.findStateLocked(stateMachineID, technicalName)
	if s == nil {
		return nil, ErrStateNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) FindStates(ctx context.Context, stateMachineID string, technicalNames []string) ([]*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(technicalNames))
	for _, n := range technicalNames {
		wanted[n] = true
	}

	var out []*State
	for _, s := range m.states {
		if s.StateMachineID == stateMachineID && wanted[s.TechnicalName] {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.findStateLocked(state.StateMachineID, state.TechnicalName); existing != nil {
		cp := *state
		cp.ID = existing.ID
		m.states[existing.ID] = &cp
		return nil
	}
	cp := *state
	m.states[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) FindTransition(ctx context.Context, stateMachineID, actionName, fromStateID, toStateID string) (*Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, tr := range m.transitions {
		if tr.StateMachineID == stateMachineID && tr.ActionName == actionName &&
			tr.FromStateID == fromStateID && tr.ToStateID == toStateID {
			cp := *tr
			return &cp, nil
		}
	}
	return nil, ErrTransitionNotFound
}

func (m *MemoryStore) UpsertTransitions(ctx context.Context, transitions []*Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tr := range transitions {
		cp := *tr
		m.transitions[cp.ID] = &cp
	}
	return nil
}

func (m *MemoryStore) TransitionsByAction(ctx context.Context, stateMachineID string, actionNames []string) ([]*Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(actionNames))
	for _, n := range actionNames {
		wanted[n] = true
	}

	var out []*Transition
	for _, tr := range m.transitions {
		if tr.StateMachineID == stateMachineID && wanted[tr.ActionName] {
			cp := *tr
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) TransitionsReferencingStates(ctx context.Context, stateIDs []string) ([]*Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(stateIDs))
	for _, id := range stateIDs {
		wanted[id] = true
	}

	var out []*Transition
	for _, tr := range m.transitions {
		if wanted[tr.FromStateID] || wanted[tr.ToStateID] {
			cp := *tr
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) HistoryReferencingStates(ctx context.Context, stateIDs []string) ([]*HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(stateIDs))
	for _, id := range stateIDs {
		wanted[id] = true
	}

	var out []*HistoryEntry
	for _, h := range m.history {
		if wanted[h.FromStateID] || wanted[h.ToStateID] {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteStates(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.states, id)
	}
	return nil
}

func (m *MemoryStore) DeleteTransitions(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.transitions, id)
	}
	return nil
}

func (m *MemoryStore) DeleteHistory(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.history[:0]
	for _, h := range m.history {
		if !drop[h.ID] {
			kept = append(kept, h)
		}
	}
	m.history = kept
	return nil
}

func (m *MemoryStore) EntityState(ctx context.Context, entityType, entityID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stateID, ok := m.entityStates[entityKey(entityType, entityID)]
	if !ok {
		return nil, ErrNoEntityState
	}
	s, ok := m.states[stateID]
	if !ok {
		return nil, ErrStateNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) SetEntityState(ctx context.Context, entityType, entityID, technicalName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	machine := m.findMachineForEntityLocked(entityType)
	if machine == nil {
		return ErrStateMachineNotFound
	}
	s := m.findStateLocked(machine.ID, technicalName)
	if s == nil {
		return ErrStateNotFound
	}
	m.entityStates[entityKey(entityType, entityID)] = s.ID
	return nil
}

func (m *MemoryStore) ExecuteTransition(ctx context.Context, entityType, entityID, actionName string) (*Transition, error) {
	tr, err := m.executeTransition(ctx, entityType, entityID, actionName)
	recordTransition(actionName, err)
	return tr, err
}

func (m *MemoryStore) executeTransition(ctx context.Context, entityType, entityID, actionName string) (*Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	machine := m.findMachineForEntityLocked(entityType)
	if machine == nil {
		return nil, ErrStateMachineNotFound
	}

	currentID, ok := m.entityStates[entityKey(entityType, entityID)]
	if !ok {
		return nil, ErrNoEntityState
	}

	var match *Transition
	for _, tr := range m.transitions {
		if tr.StateMachineID == machine.ID && tr.ActionName == actionName && tr.FromStateID == currentID {
			match = tr
			break
		}
	}
	if match == nil {
		current := "unknown"
		if s, ok := m.states[currentID]; ok {
			current = s.TechnicalName
		}
		return nil, fmt.Errorf("%w: no edge %q from state %q", ErrInvalidTransition, actionName, current)
	}

	m.entityStates[entityKey(entityType, entityID)] = match.ToStateID
	entry := &HistoryEntry{
		ID:             idgen.New(),
		StateMachineID: machine.ID,
		EntityType:     entityType,
		EntityID:       entityID,
		ActionName:     actionName,
		FromStateID:    match.FromStateID,
		ToStateID:      match.ToStateID,
		CreatedAt:      time.Now(),
	}
	m.history = append(m.history, entry)

	cp := *match
	return &cp, nil
}

// HistoryFor returns the recorded transitions of an entity, oldest first.
// Test helper.
func (m *MemoryStore) HistoryFor(entityType, entityID string) []*HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*HistoryEntry
	for _, h := range m.history {
		if h.EntityType == entityType && h.EntityID == entityID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out
}

func (m *MemoryStore) findStateLocked(stateMachineID, technicalName string) *State {
	for _, s := range m.states {
		if s.StateMachineID == stateMachineID && s.TechnicalName == technicalName {
			return s
		}
	}
	return nil
}

// findMachineForEntityLocked maps an entity type to its lifecycle machine
// ("order" → "order.state").
func (m *MemoryStore) findMachineForEntityLocked(entityType string) *StateMachine {
	name := entityType + ".state"
	for _, sm := range m.machines {
		if sm.TechnicalName == name {
			return sm
		}
	}
	return nil
}

func entityKey(entityType, entityID string) string {
	return strings.Join([]string{entityType, entityID}, "/")
}
