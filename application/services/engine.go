package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"canvas-sync/application/ports"
	"canvas-sync/domain/core/valueobjects"
	"canvas-sync/infrastructure/config"
	"canvas-sync/pkg/scheduler"

	"go.uber.org/zap"
)

// Engine owns the per-canvas sync lifecycle. Whatever owns a canvas's
// visible lifetime calls Start when the canvas opens and Stop when it
// closes; in between the engine runs the debounced mutation recorder, the
// push cycle and the poll cycle for that canvas.
//
// The three routines guard against self-overlap with per-canvas in-flight
// flags (an overlapping invocation is skipped, not queued) but are not
// mutually exclusive with each other: the state store's serialized Update
// is the critical section.
type Engine struct {
	recorder *MutationRecorder
	pusher   *PushSynchronizer
	puller   *PullSynchronizer
	history  *History
	remote   ports.RemoteClient
	renderer ports.Renderer
	policy   config.PolicyProvider
	logger   *zap.Logger

	mu       sync.Mutex
	canvases map[string]*canvasRuntime
}

// canvasRuntime is the engine's per-canvas mutable state: lifecycle,
// initialization gate and the in-flight locks
type canvasRuntime struct {
	canvasID valueobjects.CanvasID
	readonly bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	initialized  atomic.Bool
	recorderBusy atomic.Bool
	pushBusy     atomic.Bool
	pullBusy     atomic.Bool

	debouncer *scheduler.Debouncer

	// policyCh nudges the main loop to re-read intervals after a policy
	// reload; buffered so reloads never block the watcher
	policyCh chan struct{}
}

// NewEngine creates a new sync engine
func NewEngine(
	recorder *MutationRecorder,
	pusher *PushSynchronizer,
	puller *PullSynchronizer,
	history *History,
	remote ports.RemoteClient,
	renderer ports.Renderer,
	policy config.PolicyProvider,
	logger *zap.Logger,
) *Engine {
	e := &Engine{
		recorder: recorder,
		pusher:   pusher,
		puller:   puller,
		history:  history,
		remote:   remote,
		renderer: renderer,
		policy:   policy,
		logger:   logger,
		canvases: make(map[string]*canvasRuntime),
	}

	// A hot-reloading provider pushes new intervals into running canvases;
	// a static provider simply never calls back
	if watcher, ok := policy.(interface {
		OnChange(func(config.SyncPolicy))
	}); ok {
		watcher.OnChange(func(config.SyncPolicy) {
			e.policyChanged()
		})
	}
	return e
}

// policyChanged wakes every running canvas loop so it picks up the
// reloaded intervals
func (e *Engine) policyChanged() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rt := range e.canvases {
		select {
		case rt.policyCh <- struct{}{}:
		default:
		}
	}
}

// StartOption configures how a canvas is started
type StartOption func(*canvasRuntime)

// ReadOnly opens the canvas in shared-view mode: a one-shot snapshot fetch
// materializes into the renderer and none of the sync routines run
func ReadOnly() StartOption {
	return func(rt *canvasRuntime) {
		rt.readonly = true
	}
}

// Start begins syncing a canvas. Starting an already-started canvas is a
// no-op.
func (e *Engine) Start(ctx context.Context, canvasID valueobjects.CanvasID, opts ...StartOption) {
	e.mu.Lock()
	if _, exists := e.canvases[canvasID.String()]; exists {
		e.mu.Unlock()
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	rt := &canvasRuntime{
		canvasID: canvasID,
		ctx:      runCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		policyCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.debouncer = scheduler.NewDebouncer(func() time.Duration {
		return e.policy.Policy().RecorderDebounce
	}, func() {
		e.runRecorder(rt)
	})
	e.canvases[canvasID.String()] = rt
	e.mu.Unlock()

	if rt.readonly {
		go e.runReadOnly(rt)
	} else {
		go e.run(rt)
	}
}

// Stop tears down a canvas's sync routines, recording any pending
// debounced edit first. In-flight operations are not forcibly interrupted
// beyond context cancellation; their continuations check the initialized
// gate before touching shared state.
func (e *Engine) Stop(canvasID valueobjects.CanvasID) {
	e.mu.Lock()
	rt, exists := e.canvases[canvasID.String()]
	if exists {
		delete(e.canvases, canvasID.String())
	}
	e.mu.Unlock()

	if !exists {
		return
	}

	// A debounced edit still waiting for its window is recorded now
	// instead of being dropped with the canvas
	rt.debouncer.Flush()

	rt.initialized.Store(false)
	rt.debouncer.Stop()
	rt.cancel()
	<-rt.done

	e.logger.Info("Canvas sync stopped", zap.String("canvasID", canvasID.String()))
}

// SyncCanvasData is the debounced trigger exposed to the rendering layer:
// any graph mutation signal schedules a recorder run after the quiescence
// window.
func (e *Engine) SyncCanvasData(canvasID valueobjects.CanvasID) {
	rt := e.runtime(canvasID)
	if rt == nil || rt.readonly {
		return
	}
	rt.debouncer.Trigger()
}

// Undo revokes the most recent live transaction of a canvas
func (e *Engine) Undo(ctx context.Context, canvasID valueobjects.CanvasID) error {
	rt := e.runtime(canvasID)
	if rt == nil || rt.readonly || !rt.initialized.Load() {
		return nil
	}
	return e.history.Undo(ctx, canvasID)
}

// Redo restores the earliest revoked transaction of a canvas
func (e *Engine) Redo(ctx context.Context, canvasID valueobjects.CanvasID) error {
	rt := e.runtime(canvasID)
	if rt == nil || rt.readonly || !rt.initialized.Load() {
		return nil
	}
	return e.history.Redo(ctx, canvasID)
}

// Initialized reports whether a canvas has completed initial
// reconciliation
func (e *Engine) Initialized(canvasID valueobjects.CanvasID) bool {
	rt := e.runtime(canvasID)
	return rt != nil && rt.initialized.Load()
}

func (e *Engine) runtime(canvasID valueobjects.CanvasID) *canvasRuntime {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canvases[canvasID.String()]
}

// runReadOnly materializes a shareable snapshot once, bypassing the
// transaction log entirely
func (e *Engine) runReadOnly(rt *canvasRuntime) {
	defer close(rt.done)

	graph, err := e.remote.GetSnapshot(rt.ctx, rt.canvasID)
	if err != nil {
		e.logger.Error("Failed to fetch read-only snapshot",
			zap.String("canvasID", rt.canvasID.String()),
			zap.Error(err),
		)
		return
	}
	e.renderer.Apply(rt.canvasID, *graph)
}

// run is the per-canvas main loop: initial reconciliation, then the push
// and poll tickers until teardown
func (e *Engine) run(rt *canvasRuntime) {
	defer close(rt.done)

	if !e.reconcileUntilReady(rt) {
		return
	}
	rt.initialized.Store(true)

	policy := e.policy.Policy()
	pushTicker := time.NewTicker(policy.PushInterval)
	defer pushTicker.Stop()
	pollTicker := time.NewTicker(policy.PollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-rt.ctx.Done():
			return
		case <-rt.policyCh:
			policy = e.policy.Policy()
			pushTicker.Reset(policy.PushInterval)
			pollTicker.Reset(policy.PollInterval)
			e.logger.Info("Sync intervals updated from reloaded policy",
				zap.String("canvasID", rt.canvasID.String()),
				zap.Duration("pushInterval", policy.PushInterval),
				zap.Duration("pollInterval", policy.PollInterval),
			)
		case <-pushTicker.C:
			if rt.pushBusy.CompareAndSwap(false, true) {
				go func() {
					defer rt.pushBusy.Store(false)
					if err := e.pusher.SyncOnce(rt.ctx, rt.canvasID); err != nil {
						e.logger.Debug("Push cycle failed",
							zap.String("canvasID", rt.canvasID.String()),
							zap.Error(err),
						)
					}
				}()
			}
		case <-pollTicker.C:
			if rt.pullBusy.CompareAndSwap(false, true) {
				go func() {
					defer rt.pullBusy.Store(false)
					if err := e.puller.PollOnce(rt.ctx, rt.canvasID); err != nil {
						e.logger.Debug("Poll cycle failed",
							zap.String("canvasID", rt.canvasID.String()),
							zap.Error(err),
						)
					}
				}()
			}
		}
	}
}

// reconcileUntilReady retries initial reconciliation on the poll interval
// until it succeeds or the canvas is torn down
func (e *Engine) reconcileUntilReady(rt *canvasRuntime) bool {
	for {
		err := e.puller.InitialReconcile(rt.ctx, rt.canvasID)
		if err == nil {
			return true
		}
		e.logger.Warn("Initial reconciliation failed, retrying",
			zap.String("canvasID", rt.canvasID.String()),
			zap.Error(err),
		)

		select {
		case <-rt.ctx.Done():
			return false
		case <-time.After(e.policy.Policy().PollInterval):
		}
	}
}

// runRecorder executes one guarded recorder pass; invoked by the debouncer
func (e *Engine) runRecorder(rt *canvasRuntime) {
	if !rt.initialized.Load() {
		return
	}
	if !rt.recorderBusy.CompareAndSwap(false, true) {
		// A recorder pass is already in flight; skip rather than queue
		return
	}
	defer rt.recorderBusy.Store(false)

	if err := e.recorder.Record(rt.ctx, rt.canvasID); err != nil {
		e.logger.Debug("Recorder pass failed",
			zap.String("canvasID", rt.canvasID.String()),
			zap.Error(err),
		)
	}
}
