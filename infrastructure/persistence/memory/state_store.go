// Package memory provides an in-process StateStore. It backs tests and the
// reference sync server, where durability across restarts is not needed.
package memory

import (
	"context"
	"sync"

	"canvas-sync/application/ports"
	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
)

// StateStore keeps canvas states in a map. States are cloned on the way in
// and out so callers can never alias the stored value.
type StateStore struct {
	mu     sync.Mutex
	states map[string]*aggregates.CanvasState
	locks  map[string]*sync.Mutex
}

// NewStateStore creates an empty in-memory state store
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]*aggregates.CanvasState),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Load returns a copy of the persisted state, or (nil, nil) when absent
func (s *StateStore) Load(_ context.Context, canvasID valueobjects.CanvasID) (*aggregates.CanvasState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[canvasID.String()]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

// Save persists a copy of the state, replacing any previous value
func (s *StateStore) Save(_ context.Context, canvasID valueobjects.CanvasID, state *aggregates.CanvasState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[canvasID.String()] = state.Clone()
	return nil
}

// Update applies fn in a read-modify-write cycle. Updates for the same
// canvas ID are serialized on a per-canvas mutex; different canvases
// proceed independently.
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
