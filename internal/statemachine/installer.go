package statemachine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solution25com/fraudshield/internal/idgen"
)

// Installer materializes a Catalog into a state-machine store.
//
// Install is idempotent: states are matched by technical name, transitions by
// their exact {action, from, to} triple, and nothing existing is duplicated.
// Uninstall removes the catalog's transitions and states, cascading over
// transitions and history rows that reference the states so no orphaned
// foreign keys remain.
type Installer struct {
	store   Store
	catalog *Catalog
	logger  *slog.Logger
}

// NewInstaller creates an installer for the given catalog.
func NewInstaller(store Store, catalog *Catalog, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{store: store, catalog: catalog, logger: logger}
}

// Install validates the catalog and creates its missing states and
// transitions. A missing target state machine is not an error: the host may
// install components in stages, so installation is a no-op until the base
// machine exists.
func (i *Installer) Install(ctx context.Context) error {
	if err := i.catalog.Validate(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	machine, err := i.store.FindStateMachine(ctx, i.catalog.StateMachine)
	if err != nil {
		if errors.Is(err, ErrStateMachineNotFound) {
			i.logger.Warn("state machine missing, skipping install", "state_machine", i.catalog.StateMachine)
			return nil
		}
		return fmt.Errorf("find state machine %s: %w", i.catalog.StateMachine, err)
	}

	for _, cs := range i.catalog.States {
		if err := i.installState(ctx, machine.ID, cs); err != nil {
			return err
		}
	}

	return i.installTransitions(ctx, machine.ID)
}

func (i *Installer) installState(ctx context.Context, machineID string, cs CatalogState) error {
	_, err := i.store.FindState(ctx, machineID, cs.TechnicalName)
	if err == nil {
		return nil // already present
	}
	if !errors.Is(err, ErrStateNotFound) {
		return fmt.Errorf("find state %s: %w", cs.TechnicalName, err)
	}

	state := &State{
		ID:             idgen.New(),
		StateMachineID: machineID,
		TechnicalName:  cs.TechnicalName,
		Name:           cs.Name,
		Labels:         cs.Labels,
	}
	if err := i.store.UpsertState(ctx, state); err != nil {
		return fmt.Errorf("create state %s: %w", cs.TechnicalName, err)
	}
	i.logger.Info("created state", "state_machine", i.catalog.StateMachine, "state", cs.TechnicalName)
	return nil
}

func (i *Installer) installTransitions(ctx context.Context, machineID string) error {
	states, err := i.store.FindStates(ctx, machineID, i.catalog.stateNames())
	if err != nil {
		return fmt.Errorf("preload states: %w", err)
	}
	stateIDs := make(map[string]string, len(states))
	for _, s := range states {
		stateIDs[s.TechnicalName] = s.ID
	}

	var missing []*Transition
	for _, tr := range i.catalog.Transitions {
		fromID, okFrom := stateIDs[tr.From]
		toID, okTo := stateIDs[tr.To]
		if !okFrom || !okTo {
			// A base state the host has not installed yet. Skip the edge;
			// a later Install picks it up.
			i.logger.Warn("skipping transition with missing endpoint",
				"action", tr.ActionName, "from", tr.From, "to", tr.To)
			continue
		}

		_, err := i.store.FindTransition(ctx, machineID, tr.ActionName, fromID, toID)
		if err == nil {
			continue // identical triple already present
		}
		if !errors.Is(err, ErrTransitionNotFound) {
			return fmt.Errorf("find transition %s: %w", tr.ActionName, err)
		}

		missing = append(missing, &Transition{
			ID:             idgen.New(),
			StateMachineID: machineID,
			ActionName:     tr.ActionName,
			FromStateID:    fromID,
			ToStateID:      toID,
		})
	}

	if len(missing) == 0 {
		return nil
	}
	if err := i.store.UpsertTransitions(ctx, missing); err != nil {
		return fmt.Errorf("create transitions: %w", err)
	}
	i.logger.Info("created transitions", "state_machine", i.catalog.StateMachine, "count", len(missing))
	return nil
}

// Uninstall removes the catalog's transitions and states. Delete failures
// are collected and logged, never aborting the remaining deletes: a partial
// uninstall must still remove as much as it can.
func (i *Installer) Uninstall(ctx context.Context) error {
	machine, err := i.store.FindStateMachine(ctx, i.catalog.StateMachine)
	if err != nil {
		if errors.Is(err, ErrStateMachineNotFound) {
			return nil
		}
		return fmt.Errorf("find state machine %s: %w", i.catalog.StateMachine, err)
	}

	var failures []error
	collect := func(op string, err error) {
		if err != nil {
			i.logger.Error("uninstall step failed", "op", op, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", op, err))
		}
	}

	// Transitions by action name first, so no edge survives pointing at a
	// state that is about to go away.
	transitions, err := i.store.TransitionsByAction(ctx, machine.ID, i.catalog.ActionNames())
	collect("list transitions", err)
	if len(transitions) > 0 {
		collect("delete transitions", i.store.DeleteTransitions(ctx, transitionIDs(transitions)))
	}

	// Then the states themselves, cascading over anything still referencing
	// them.
	var stateIDs []string
	for _, cs := range i.catalog.States {
		state, err := i.store.FindState(ctx, machine.ID, cs.TechnicalName)
		if errors.Is(err, ErrStateNotFound) {
			continue
		}
		if err != nil {
			collect("find state "+cs.TechnicalName, err)
			continue
		}
		stateIDs = append(stateIDs, state.ID)
	}

	if len(stateIDs) > 0 {
		referencing, err := i.store.TransitionsReferencingStates(ctx, stateIDs)
		collect("list referencing transitions", err)
		if len(referencing) > 0 {
			collect("delete referencing transitions", i.store.DeleteTransitions(ctx, transitionIDs(referencing)))
		}

		history, err := i.store.HistoryReferencingStates(ctx, stateIDs)
		collect("list history", err)
		if len(history) > 0 {
			ids := make([]string, len(history))
			for n, h := range history {
				ids[n] = h.ID
			}
			collect("delete history", i.store.DeleteHistory(ctx, ids))
		}

		collect("delete states", i.store.DeleteStates(ctx, stateIDs))
	}

	return errors.Join(failures...)
}

func transitionIDs(transitions []*Transition) []string {
	ids := make([]string, len(transitions))
	for n, tr := range transitions {
		ids[n] = tr.ID
	}
	return ids
}
