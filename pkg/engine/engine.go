// Package engine implements the cross-chain transfer reconciliation loop:
// ingest new source-chain transfer events, reconcile their destination-chain
// outcome, repair reorg damage and keep the liquidity-provider ledger in step.
// One cycle runs all four phases for one route; routes are independent.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/internal/metrics"
	"github.com/chainsafe/bridge-reconciler/pkg/config"
	"github.com/chainsafe/bridge-reconciler/pkg/cursor"
	"github.com/chainsafe/bridge-reconciler/pkg/db"
	"github.com/chainsafe/bridge-reconciler/pkg/indexer"
	"github.com/chainsafe/bridge-reconciler/pkg/registry"
)

// Engine schedules and runs reconciliation cycles for every configured route.
type Engine struct {
	store    Store
	registry *registry.Registry
	adapters map[string]indexer.SourceAdapter
	cursors  *cursor.Store
	notifier Notifier
	cfg      config.SyncConfig
	logger   *zap.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
}

// New creates an Engine. adapters maps route id to that route's (possibly
// resolver-wrapped) indexer adapter. notifier may be nil.
func New(store Store, reg *registry.Registry, adapters map[string]indexer.SourceAdapter, notifier Notifier, cfg config.SyncConfig, logger *zap.Logger) *Engine {
	routeIDs := make([]string, 0, len(reg.Routes()))
	for _, route := range reg.Routes() {
		routeIDs = append(routeIDs, route.ID())
	}
	return &Engine{
		store:    store,
		registry: reg,
		adapters: adapters,
		cursors:  cursor.NewStore(routeIDs),
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches one ticker goroutine per route. Shutdown stops scheduling
// new cycles; a cycle already in flight runs to completion.
func (e *Engine) Start() {
	for _, route := range e.registry.Routes() {
		interval := route.Interval
		if interval <= 0 {
			interval = e.cfg.DefaultInterval
		}
		e.wg.Add(1)
		go e.runRoute(route, interval)
	}
	e.started.Store(true)
	e.logger.Info("Reconciliation engine started", zap.Int("routes", len(e.registry.Routes())))
}

// Ready reports whether the engine is started and not draining.
func (e *Engine) Ready() bool {
	return e.started.Load()
}

// Stop halts scheduling and waits for in-flight cycles to finish. Readiness
// drops immediately so health probes see the instance draining.
func (e *Engine) Stop() {
	e.started.Store(false)
	close(e.stopCh)
	e.wg.Wait()
	e.logger.Info("Reconciliation engine stopped")
}

func (e *Engine) runRoute(route *registry.Route, interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Route sync scheduled",
		zap.String("route", route.ID()),
		zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			e.Cycle(context.Background(), route)
		case <-e.stopCh:
			return
		}
	}
}

// Cycle runs one reconciliation cycle for a route: ingest, status
// reconciliation, reorg check, ledger sync. A firing that overlaps a
// still-running cycle for the same route is a no-op. Any phase error aborts
// the cycle; cursors stay at their last successfully advanced position and
// the next firing retries naturally.
func (e *Engine) Cycle(ctx context.Context, route *registry.Route) {
	routeID := route.ID()
	cur := e.cursors.Get(routeID)
	if !cur.BeginSync() {
		metrics.CyclesSkipped.WithLabelValues(routeID).Inc()
		e.logger.Debug("Cycle skipped, previous still running", zap.String("route", routeID))
		return
	}
	defer cur.EndSync()

	logger := e.logger.With(
		zap.String("route", routeID),
		zap.String("cycle_id", uuid.NewString()[:8]))
	start := time.Now()

	if err := e.ingest(ctx, route, cur, logger); err != nil {
		logger.Warn("Ingestion aborted", zap.Error(err))
		return
	}
	if err := e.reconcileStatus(ctx, route, cur, logger); err != nil {
		logger.Warn("Status reconciliation aborted", zap.Error(err))
		return
	}
	if err := e.repairReorg(ctx, route, cur, logger); err != nil {
		logger.Warn("Reorg check aborted", zap.Error(err))
		return
	}
	if err := e.syncLedger(ctx, route, cur, logger); err != nil {
		logger.Warn("Ledger sync aborted", zap.Error(err))
		return
	}

	cur.Cycles++
	metrics.CycleDuration.WithLabelValues(routeID).Observe(time.Since(start).Seconds())
	if pending, err := e.store.CountPending(ctx, routeFilter(route)); err == nil {
		metrics.PendingRecords.WithLabelValues(routeID).Set(float64(pending))
	}
}

func (e *Engine) adapter(routeID string) indexer.SourceAdapter {
	return e.adapters[routeID]
}

func routeFilter(route *registry.Route) db.RouteFilter {
	return db.RouteFilter{
		FromChain: route.FromChain,
		ToChain:   route.ToChain,
		Bridge:    route.Bridge,
	}
}

// recordID builds the deterministic transfer record id. The route id already
// carries the bridge tag, so re-ingesting the same native event always lands
// on the same id.
func recordID(route *registry.Route, nativeID string) string {
	return route.ID() + "-" + nativeID
}

// nativeTransferID recovers the protocol-native transfer id from a stored
// record id.
func nativeTransferID(route *registry.Route, rec *db.TransferRecord) string {
	prefix := route.ID() + "-"
	if len(rec.ID) > len(prefix) {
		return rec.ID[len(prefix):]
	}
	return rec.ID
}

func (e *Engine) notifySettled(ctx context.Context, rec *db.TransferRecord, logger *zap.Logger) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.RecordSettled(ctx, rec); err != nil {
		logger.Warn("Failed to publish settled record",
			zap.String("record_id", rec.ID),
			zap.Error(err))
	}
}
