// Package mocks provides test doubles for the engine's ports: testify
// mocks for the remote sync API and notifier, and simple in-memory fakes
// for the renderer-side ports.
package mocks

import (
	"context"
	"sync"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"

	"github.com/stretchr/testify/mock"
)

// MockRemoteClient is a testify mock of the RemoteClient port
type MockRemoteClient struct {
	mock.Mock
}

func (m *MockRemoteClient) GetCanvasState(ctx context.Context, canvasID valueobjects.CanvasID) (*aggregates.CanvasState, error) {
	args := m.Called(ctx, canvasID)
	if state := args.Get(0); state != nil {
		return state.(*aggregates.CanvasState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRemoteClient) GetTransactionsSince(ctx context.Context, canvasID valueobjects.CanvasID, version valueobjects.VersionID, since int64) ([]aggregates.Transaction, error) {
	args := m.Called(ctx, canvasID, version, since)
	if txs := args.Get(0); txs != nil {
		return txs.([]aggregates.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRemoteClient) SyncTransactions(ctx context.Context, canvasID valueobjects.CanvasID, version valueobjects.VersionID, transactions []aggregates.Transaction) error {
	args := m.Called(ctx, canvasID, version, transactions)
	return args.Error(0)
}

func (m *MockRemoteClient) CreateVersion(ctx context.Context, canvasID valueobjects.CanvasID, state *aggregates.CanvasState) (*aggregates.CanvasState, error) {
	args := m.Called(ctx, canvasID, state)
	if fresh := args.Get(0); fresh != nil {
		return fresh.(*aggregates.CanvasState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRemoteClient) GetSnapshot(ctx context.Context, canvasID valueobjects.CanvasID) (*aggregates.Graph, error) {
	args := m.Called(ctx, canvasID)
	if graph := args.Get(0); graph != nil {
		return graph.(*aggregates.Graph), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotifier is a testify mock of the Notifier port
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifySyncFailure(canvasID valueobjects.CanvasID, err error) {
	m.Called(canvasID, err)
}

// FakeRenderer records every graph applied to it, keyed by canvas ID
type FakeRenderer struct {
	mu      sync.Mutex
	applied map[string][]aggregates.Graph
}

// NewFakeRenderer creates an empty fake renderer
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{applied: make(map[string][]aggregates.Graph)}
}

func (f *FakeRenderer) Apply(canvasID valueobjects.CanvasID, graph aggregates.Graph) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied[canvasID.String()] = append(f.applied[canvasID.String()], graph)
}

// Applied returns every graph applied for the canvas, in order
func (f *FakeRenderer) Applied(canvasID valueobjects.CanvasID) []aggregates.Graph {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]aggregates.Graph(nil), f.applied[canvasID.String()]...)
}

// Last returns the most recently applied graph, or false when none was
// applied yet
func (f *FakeRenderer) Last(canvasID valueobjects.CanvasID) (aggregates.Graph, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	graphs := f.applied[canvasID.String()]
	if len(graphs) == 0 {
		return aggregates.Graph{}, false
	}
	return graphs[len(graphs)-1], true
}

// FakeGraphSource serves a settable live graph per canvas
type FakeGraphSource struct {
	mu     sync.Mutex
	graphs map[string]aggregates.Graph
}

// NewFakeGraphSource creates an empty fake graph source
func NewFakeGraphSource() *FakeGraphSource {
	return &FakeGraphSource{graphs: make(map[string]aggregates.Graph)}
}

// Set makes the given graph the live graph for a canvas
func (f *FakeGraphSource) Set(canvasID valueobjects.CanvasID, graph aggregates.Graph) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphs[canvasID.String()] = graph
}

func (f *FakeGraphSource) Snapshot(canvasID valueobjects.CanvasID) (aggregates.Graph, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	graph, ok := f.graphs[canvasID.String()]
	return graph, ok
}
