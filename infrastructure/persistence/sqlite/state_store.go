// Package sqlite provides the durable StateStore used by the client
// engine. Canvas states are stored as JSON documents in a key-value table,
// one row per canvas.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"canvas-sync/application/ports"
	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
	apperrors "canvas-sync/pkg/errors"
	"canvas-sync/pkg/observability"
	"canvas-sync/pkg/utils"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS canvas_states (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// StateStore persists canvas states in a SQLite database. Rows are keyed
// "canvas-state:<canvasID>". Read-modify-write cycles are serialized per
// canvas with in-process mutexes; SQLite itself only serializes individual
// statements.
type StateStore struct {
	db      *sql.DB
	metrics *observability.Collector

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStateStore opens (creating if needed) the database at path and
// prepares the schema
func NewStateStore(path string, metrics *observability.Collector) (*StateStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperrors.NewStorageError("open", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("migrate", err)
	}
	return &StateStore{
		db:      db,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Close releases the underlying database handle
func (s *StateStore) Close() error {
	return s.db.Close()
}

// Load returns the persisted state, or (nil, nil) when absent
func (s *StateStore) Load(ctx context.Context, canvasID valueobjects.CanvasID) (*aggregates.CanvasState, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM canvas_states WHERE key = ?`, stateKey(canvasID),
	).Scan(&value)
	if err == sql.ErrNoRows {
		s.record("load", nil)
		return nil, nil
	}
	if err != nil {
		s.record("load", err)
		return nil, apperrors.NewStorageError("load", err)
	}

	var state aggregates.CanvasState
	if err := json.Unmarshal(value, &state); err != nil {
		s.record("load", err)
		return nil, apperrors.NewStorageError("decode", err)
	}
	s.record("load", nil)
	if state.Transactions == nil {
		state.Transactions = []aggregates.Transaction{}
	}
	return &state, nil
}

// Save persists the state, replacing any previous value
func (s *StateStore) Save(ctx context.Context, canvasID valueobjects.CanvasID, state *aggregates.CanvasState) error {
	value, err := json.Marshal(state)
	if err != nil {
		s.record("save", err)
		return apperrors.NewStorageError("encode", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO canvas_states (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		stateKey(canvasID), value, utils.NowMillis(),
	)
	s.record("save", err)
	if err != nil {
		return apperrors.NewStorageError("save", err)
	}
	return nil
}

// Update applies fn in a read-modify-write cycle serialized per canvas
func (s *StateStore) Update(ctx context.Context, canvasID valueobjects.CanvasID, fn ports.UpdateFunc) error {
	lock := s.canvasLock(canvasID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Load(ctx, canvasID)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return s.Save(ctx, canvasID, next)
}

func (s *StateStore) canvasLock(canvasID valueobjects.CanvasID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[canvasID.String()]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[canvasID.String()] = lock
	}
	return lock
}

func (s *StateStore) record(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.StoreOperations.WithLabelValues(operation, status).Inc()
}

func stateKey(canvasID valueobjects.CanvasID) string {
	return fmt.Sprintf("canvas-state:%s", canvasID.String())
}
