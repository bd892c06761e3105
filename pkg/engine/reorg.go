package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/internal/metrics"
	"github.com/chainsafe/bridge-reconciler/pkg/cursor"
	"github.com/chainsafe/bridge-reconciler/pkg/db"
	"github.com/chainsafe/bridge-reconciler/pkg/registry"
)

// repairReorg checks the oldest still-pending record above the confirmed
// watermark. A record stuck past the reorg window is re-fetched from the
// source indexer by transaction hash; if the freshly derived id differs, the
// nonce slot was reassigned by a reorg and the stale record is replaced in
// place, keeping its nonce. Matching ids are a false alarm and left alone.
func (e *Engine) repairReorg(ctx context.Context, route *registry.Route, cur *cursor.SyncCursor, logger *zap.Logger) error {
	rec, err := e.store.OldestPendingAbove(ctx, routeFilter(route), cur.ConfirmedNonce)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load oldest pending record: %w", err)
	}
	if rec == nil {
		return nil
	}
	if time.Now().Unix()-rec.StartTime < int64(e.cfg.ReorgWindow.Seconds()) {
		return nil
	}

	event, err := e.adapter(route.ID()).QueryRecordByTxHash(ctx, rec.RequestTxHash)
	if err != nil {
		return fmt.Errorf("failed to re-query record by tx hash: %w", err)
	}
	if event == nil {
		// The transaction is gone from the indexer entirely; nothing to
		// compare against, leave the record for the next check.
		return nil
	}
	if recordID(route, event.ID) == rec.ID {
		// Slow to confirm, not reorged.
		return nil
	}

	fresh, reason := e.buildRecord(route, event, rec.Nonce)
	if fresh == nil {
		logger.Warn("Reorged slot holds an unmappable event, dropping stale record",
			zap.String("record_id", rec.ID),
			zap.String("reason", reason))
	}

	if err := e.store.DeleteRecord(ctx, rec.ID); err != nil {
		return fmt.Errorf("failed to delete stale record %s: %w", rec.ID, err)
	}
	if fresh != nil {
		if err := e.store.CreateRecord(ctx, fresh); err != nil {
			return fmt.Errorf("failed to recreate record at nonce %d: %w", rec.Nonce, err)
		}
	}
	cur.ConfirmedNonce = rec.Nonce
	metrics.ReorgRepairs.WithLabelValues(route.ID()).Inc()
	logger.Info("Reorged record repaired",
		zap.String("stale_id", rec.ID),
		zap.String("fresh_id", recordID(route, event.ID)),
		zap.Int64("nonce", rec.Nonce))

	e.fixProviderCheckpoint(ctx, route, rec, fresh, logger)
	return nil
}

// fixProviderCheckpoint corrects a provider whose last-transfer checkpoint
// still names the deleted stale record.
func (e *Engine) fixProviderCheckpoint(ctx context.Context, route *registry.Route, stale, fresh *db.TransferRecord, logger *zap.Logger) {
	provider := stale.Provider
	if provider == "" {
		provider = stale.Relayer
	}
	if provider == "" {
		return
	}

	id := db.ProviderKey(route.ID(), provider, stale.SendToken)
	info, err := e.store.Provider(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Error("Failed to load provider for checkpoint fix", zap.String("provider_id", id), zap.Error(err))
		return
	}
	if info.LastTransferID != stale.ID {
		return
	}

	info.LastTransferID = ""
	if fresh != nil {
		info.LastTransferID = fresh.ID
	}
	if err := e.store.SaveProvider(ctx, info); err != nil {
		logger.Error("Failed to fix provider checkpoint", zap.String("provider_id", id), zap.Error(err))
	}
}
