package statemachine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/solution25com/fraudshield/internal/idgen"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed state-machine store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the state-machine tables if they don't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS state_machine (
			id             VARCHAR(36) PRIMARY KEY,
			technical_name VARCHAR(255) NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS state_machine_state (
			id               VARCHAR(36) PRIMARY KEY,
			state_machine_id VARCHAR(36) NOT NULL REFERENCES state_machine(id),
			technical_name   VARCHAR(255) NOT NULL,
			name             VARCHAR(255) NOT NULL,
			labels           JSONB,
			UNIQUE (state_machine_id, technical_name)
		);
		CREATE TABLE IF NOT EXISTS state_machine_transition (
			id               VARCHAR(36) PRIMARY KEY,
			state_machine_id VARCHAR(36) NOT NULL REFERENCES state_machine(id),
			action_name      VARCHAR(255) NOT NULL,
			from_state_id    VARCHAR(36) NOT NULL REFERENCES state_machine_state(id),
			to_state_id      VARCHAR(36) NOT NULL REFERENCES state_machine_state(id),
			UNIQUE (state_machine_id, action_name)
		);
		CREATE TABLE IF NOT EXISTS state_machine_history (
			id               VARCHAR(36) PRIMARY KEY,
			state_machine_id VARCHAR(36) NOT NULL REFERENCES state_machine(id),
			entity_type      VARCHAR(64) NOT NULL,
			entity_id        VARCHAR(36) NOT NULL,
			action_name      VARCHAR(255) NOT NULL,
			from_state_id    VARCHAR(36) NOT NULL,
			to_state_id      VARCHAR(36) NOT NULL,
			created_at       TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS entity_state (
			entity_type VARCHAR(64) NOT NULL,
			entity_id   VARCHAR(36) NOT NULL,
			state_id    VARCHAR(36) NOT NULL REFERENCES state_machine_state(id),
			updated_at  TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (entity_type, entity_id)
		);
		CREATE INDEX IF NOT EXISTS idx_smt_from_state ON state_machine_transition(from_state_id);
		CREATE INDEX IF NOT EXISTS idx_smt_to_state ON state_machine_transition(to_state_id);
		CREATE INDEX IF NOT EXISTS idx_smh_entity ON state_machine_history(entity_type, entity_id);
	`)
	return err
}

// EnsureOrderStateMachine creates the order.state machine and its base
// states if missing. Fresh databases owned entirely by this service need
// the base machine the host platform would otherwise provide.
func (p *PostgresStore) EnsureOrderStateMachine(ctx context.Context) error {
	var machineID string
	err := p.db.QueryRowContext(ctx,
		`SELECT id FROM state_machine WHERE technical_name = $1`, OrderStateMachine,
	).Scan(&machineID)
	if err == sql.ErrNoRows {
		machineID = idgen.New()
		if _, err := p.db.ExecContext(ctx,
			`INSERT INTO state_machine (id, technical_name) VALUES ($1, $2)`,
			machineID, OrderStateMachine,
		); err != nil {
			return fmt.Errorf("create state machine: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("find state machine: %w", err)
	}

	base := map[string]string{
		StateOpen:       "Open",
		StateInProgress: "In Progress",
		StateCompleted:  "Completed",
		StateCancelled:  "Cancelled",
	}
	for technicalName, name := range base {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO state_machine_state (id, state_machine_id, technical_name, name)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (state_machine_id, technical_name) DO NOTHING
		`, idgen.New(), machineID, technicalName, name)
		if err != nil {
			return fmt.Errorf("create base state %s: %w", technicalName, err)
		}
	}
	return nil
}

func (p *PostgresStore) FindStateMachine(ctx context.Context, technicalName string) (*StateMachine, error) {
	sm := &StateMachine{}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, technical_name FROM state_machine WHERE technical_name = $1`, technicalName,
	).Scan(&sm.ID, &sm.TechnicalName)
	if err == sql.ErrNoRows {
		return nil, ErrStateMachineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find state machine: %w", err)
	}
	return sm, nil
}

func (p *PostgresStore) FindState(ctx context.Context, stateMachineID, technicalName string) (*State, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, state_machine_id, technical_name, name, labels
		FROM state_machine_state
		WHERE state_machine_id = $1 AND technical_name = $2
	`, stateMachineID, technicalName)

	s, err := scanState(row)
	if err == sql.ErrNoRows {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find state: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) FindStates(ctx context.Context, stateMachineID string, technicalNames []string) ([]*State, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, state_machine_id, technical_name, name, labels
		FROM state_machine_state
		WHERE state_machine_id = $1 AND technical_name = ANY($2)
	`, stateMachineID, pq.Array(technicalNames))
	if err != nil {
		return nil, fmt.Errorf("find states: %w", err)
	}
	defer rows.Close()

	var out []*State
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpsertState(ctx context.Context, state *State) error {
	labels, err := json.Marshal(state.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO state_machine_state (id, state_machine_id, technical_name, name, labels)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (state_machine_id, technical_name)
		DO UPDATE SET name = EXCLUDED.name, labels = EXCLUDED.labels
	`, state.ID, state.StateMachineID, state.TechnicalName, state.Name, labels)
	if err != nil {
		return fmt.Errorf("upsert state %s: %w", state.TechnicalName, err)
	}
	return nil
}

func (p *PostgresStore) FindTransition(ctx context.Context, stateMachineID, actionName, fromStateID, toStateID string) (*Transition, error) {
	tr := &Transition{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, state_machine_id, action_name, from_state_id, to_state_id
		FROM state_machine_transition
		WHERE state_machine_id = $1 AND action_name = $2 AND from_state_id = $3 AND to_state_id = $4
	`, stateMachineID, actionName, fromStateID, toStateID).
		Scan(&tr.ID, &tr.StateMachineID, &tr.ActionName, &tr.FromStateID, &tr.ToStateID)
	if err == sql.ErrNoRows {
		return nil, ErrTransitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transition: %w", err)
	}
	return tr, nil
}

func (p *PostgresStore) UpsertTransitions(ctx context.Context, transitions []*Transition) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, tr := range transitions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO state_machine_transition (id, state_machine_id, action_name, from_state_id, to_state_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (state_machine_id, action_name)
			DO UPDATE SET from_state_id = EXCLUDED.from_state_id, to_state_id = EXCLUDED.to_state_id
		`, tr.ID, tr.StateMachineID, tr.ActionName, tr.FromStateID, tr.ToStateID)
		if err != nil {
			return fmt.Errorf("upsert transition %s: %w", tr.ActionName, err)
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) TransitionsByAction(ctx context.Context, stateMachineID string, actionNames []string) ([]*Transition, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, state_machine_id, action_name, from_state_id, to_state_id
		FROM state_machine_transition
		WHERE state_machine_id = $1 AND action_name = ANY($2)
	`, stateMachineID, pq.Array(actionNames))
	if err != nil {
		return nil, fmt.Errorf("transitions by action: %w", err)
	}
	defer rows.Close()
	return collectTransitions(rows)
}

func (p *PostgresStore) TransitionsReferencingStates(ctx context.Context, stateIDs []string) ([]*Transition, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, state_machine_id, action_name, from_state_id, to_state_id
		FROM state_machine_transition
		WHERE from_state_id = ANY($1) OR to_state_id = ANY($1)
	`, pq.Array(stateIDs))
	if err != nil {
		return nil, fmt.Errorf("transitions referencing states: %w", err)
	}
	defer rows.Close()
	return collectTransitions(rows)
}

func (p *PostgresStore) HistoryReferencingStates(ctx context.Context, stateIDs []string) ([]*HistoryEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, state_machine_id, entity_type, entity_id, action_name, from_state_id, to_state_id, created_at
		FROM state_machine_history
		WHERE from_state_id = ANY($1) OR to_state_id = ANY($1)
	`, pq.Array(stateIDs))
	if err != nil {
		return nil, fmt.Errorf("history referencing states: %w", err)
	}
	defer rows.Close()

	var out []*HistoryEntry
	for rows.Next() {
		h := &HistoryEntry{}
		if err := rows.Scan(&h.ID, &h.StateMachineID, &h.EntityType, &h.EntityID,
			&h.ActionName, &h.FromStateID, &h.ToStateID, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeleteStates(ctx context.Context, ids []string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM state_machine_state WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("delete states: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteTransitions(ctx context.Context, ids []string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM state_machine_transition WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("delete transitions: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteHistory(ctx context.Context, ids []string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM state_machine_history WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

func (p *PostgresStore) EntityState(ctx context.Context, entityType, entityID string) (*State, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT s.id, s.state_machine_id, s.technical_name, s.name, s.labels
		FROM entity_state es
		JOIN state_machine_state s ON s.id = es.state_id
		WHERE es.entity_type = $1 AND es.entity_id = $2
	`, entityType, entityID)

	s, err := scanState(row)
	if err == sql.ErrNoRows {
		return nil, ErrNoEntityState
	}
	if err != nil {
		return nil, fmt.Errorf("entity state: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) SetEntityState(ctx context.Context, entityType, entityID, technicalName string) error {
	machine, err := p.FindStateMachine(ctx, entityType+".state")
	if err != nil {
		return err
	}
	state, err := p.FindState(ctx, machine.ID, technicalName)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO entity_state (entity_type, entity_id, state_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (entity_type, entity_id)
		DO UPDATE SET state_id = EXCLUDED.state_id, updated_at = NOW()
	`, entityType, entityID, state.ID)
	if err != nil {
		return fmt.Errorf("set entity state: %w", err)
	}
	return nil
}

func (p *PostgresStore) ExecuteTransition(ctx context.Context, entityType, entityID, actionName string) (*Transition, error) {
	tr, err := p.executeTransition(ctx, entityType, entityID, actionName)
	recordTransition(actionName, err)
	return tr, err
}

func (p *PostgresStore) executeTransition(ctx context.Context, entityType, entityID, actionName string) (*Transition, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var machineID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM state_machine WHERE technical_name = $1`, entityType+".state",
	).Scan(&machineID)
	if err == sql.ErrNoRows {
		return nil, ErrStateMachineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find state machine: %w", err)
	}

	var currentID, currentName string
	err = tx.QueryRowContext(ctx, `
		SELECT s.id, s.technical_name
		FROM entity_state es
		JOIN state_machine_state s ON s.id = es.state_id
		WHERE es.entity_type = $1 AND es.entity_id = $2
		FOR UPDATE OF es
	`, entityType, entityID).Scan(&currentID, &currentName)
	if err == sql.ErrNoRows {
		return nil, ErrNoEntityState
	}
	if err != nil {
		return nil, fmt.Errorf("current entity state: %w", err)
	}

	tr := &Transition{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, state_machine_id, action_name, from_state_id, to_state_id
		FROM state_machine_transition
		WHERE state_machine_id = $1 AND action_name = $2 AND from_state_id = $3
	`, machineID, actionName, currentID).
		Scan(&tr.ID, &tr.StateMachineID, &tr.ActionName, &tr.FromStateID, &tr.ToStateID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no edge %q from state %q", ErrInvalidTransition, actionName, currentName)
	}
	if err != nil {
		return nil, fmt.Errorf("find transition: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE entity_state SET state_id = $1, updated_at = NOW()
		WHERE entity_type = $2 AND entity_id = $3
	`, tr.ToStateID, entityType, entityID); err != nil {
		return nil, fmt.Errorf("update entity state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO state_machine_history (id, state_machine_id, entity_type, entity_id, action_name, from_state_id, to_state_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, idgen.New(), machineID, entityType, entityID, actionName, tr.FromStateID, tr.ToStateID, time.Now()); err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return tr, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (*State, error) {
	s := &State{}
	var labels []byte
	if err := row.Scan(&s.ID, &s.StateMachineID, &s.TechnicalName, &s.Name, &labels); err != nil {
		return nil, err
	}
	if len(labels) > 0 {
		if err := json.Unmarshal(labels, &s.Labels); err != nil {
			return nil, fmt.Errorf("unmarshal labels: %w", err)
		}
	}
	return s, nil
}

func collectTransitions(rows *sql.Rows) ([]*Transition, error) {
	var out []*Transition
	for rows.Next() {
		tr := &Transition{}
		if err := rows.Scan(&tr.ID, &tr.StateMachineID, &tr.ActionName, &tr.FromStateID, &tr.ToStateID); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
