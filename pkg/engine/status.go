package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/pkg/cursor"
	"github.com/chainsafe/bridge-reconciler/pkg/db"
	"github.com/chainsafe/bridge-reconciler/pkg/indexer"
	"github.com/chainsafe/bridge-reconciler/pkg/registry"
)

// reconcileStatus drives the record state machine. While the batch catch-up
// watermark is live the cheaper timestamp-paged mode runs alone; once it
// freezes, per-record incremental polling takes over, with the
// withdraw-waiting batch checked on a slower cadence.
func (e *Engine) reconcileStatus(ctx context.Context, route *registry.Route, cur *cursor.SyncCursor, logger *zap.Logger) error {
	if cur.LatestFillTimestamp == cursor.Uninitialized {
		ts, err := e.store.OldestUnsettledStartTime(ctx, routeFilter(route))
		if err != nil {
			return fmt.Errorf("failed to seed fill watermark: %w", err)
		}
		if ts == 0 {
			cur.LatestFillTimestamp = cursor.FillCatchupDone
		} else {
			cur.LatestFillTimestamp = ts
			logger.Info("Batch catch-up started", zap.Int64("since", ts))
		}
	}
	if cur.LatestFillTimestamp != cursor.FillCatchupDone {
		return e.batchFetchStatus(ctx, route, cur, logger)
	}

	if err := e.fetchStatus(ctx, route, cur, logger); err != nil {
		return err
	}
	if route.VariantFlags().SeparateWithdraw && cur.Cycles%uint64(e.cfg.WithdrawCadence) == 0 {
		return e.fetchWithdrawals(ctx, route, logger)
	}
	return nil
}

// fetchStatus pages through unsettled records and polls the destination
// chain for each one still awaiting an outcome.
func (e *Engine) fetchStatus(ctx context.Context, route *registry.Route, cur *cursor.SyncCursor, logger *zap.Logger) error {
	recs, err := e.store.UnsettledRecords(ctx, routeFilter(route), cur.Skip, e.cfg.StatusPageSize)
	if err != nil {
		return fmt.Errorf("failed to load unsettled records: %w", err)
	}

	for _, rec := range recs {
		switch rec.Result {
		case db.StatusPending:
			fill, err := e.adapter(route.ID()).QueryRelayStatus(ctx, nativeTransferID(route, rec))
			if err != nil {
				return fmt.Errorf("failed to query relay status for %s: %w", rec.ID, err)
			}
			if fill == nil {
				continue
			}
			if err := e.applyFill(ctx, route, rec, fill, logger); err != nil {
				return err
			}
		case db.StatusPendingToRefund, db.StatusPendingToConfirmRefund:
			if err := e.checkRefund(ctx, route, rec, logger); err != nil {
				return err
			}
		default:
			// Successful record parked for liquidity withdrawal; the slow
			// withdraw batch owns it.
		}
	}

	// A short page means the backlog is drained; start over next cycle.
	if len(recs) < e.cfg.StatusPageSize {
		cur.Skip = 0
	} else {
		cur.Skip += len(recs)
	}
	return nil
}

// applyFill folds one observed destination-chain fill into a pending record.
// A clean fill settles the record and accrues cost/profit onto the servicing
// provider; a slashed fill routes the record onto the refund track with no
// accrual.
func (e *Engine) applyFill(ctx context.Context, route *registry.Route, rec *db.TransferRecord, fill *indexer.RelayRecord, logger *zap.Logger) error {
	flags := route.VariantFlags()

	if fill.Slasher != "" {
		rec.Relayer = registry.NormalizeAddress(fill.Slasher)
		rec.ResponseTxHash = fill.TxHash
		to := db.StatusPendingToRefund
		if flags.DirectConfirmRefund {
			to = db.StatusPendingToConfirmRefund
		}
		if !e.transition(route, rec, to, "fill slashed by "+fill.Slasher, logger) {
			return nil
		}
		if err := e.store.UpdateRecord(ctx, rec); err != nil {
			return fmt.Errorf("failed to update slashed record %s: %w", rec.ID, err)
		}
		return nil
	}

	rec.Relayer = registry.NormalizeAddress(fill.Relayer)
	rec.ResponseTxHash = fill.TxHash
	rec.EndTime = fill.Timestamp
	if flags.SeparateWithdraw && !fill.Withdrawn {
		// Filled for the user but the provider's reimbursement withdrawal is
		// still outstanding; the end hash waits for it.
		rec.NeedWithdrawLiquidity = true
	} else if fill.WithdrawTxHash != "" {
		rec.EndTxHash = fill.WithdrawTxHash
	} else {
		rec.EndTxHash = fill.TxHash
	}

	if !e.transition(route, rec, db.StatusSuccess, "", logger) {
		return nil
	}
	if err := e.store.UpdateRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to update filled record %s: %w", rec.ID, err)
	}
	e.accrue(ctx, route, rec, fill, logger)
	if rec.EndTxHash != "" {
		e.notifySettled(ctx, rec, logger)
	}
	return nil
}

// checkRefund re-queries source-chain refund attempts for a record on the
// refund track. The first confirmed-successful attempt settles the record;
// a fully confirmed-but-rejected set of attempts fails it; a partially
// confirmed set moves it to pendingToConfirmRefund.
func (e *Engine) checkRefund(ctx context.Context, route *registry.Route, rec *db.TransferRecord, logger *zap.Logger) error {
	results, err := e.adapter(route.ID()).QueryRefundResults(ctx, nativeTransferID(route, rec))
	if err != nil {
		return fmt.Errorf("failed to query refund results for %s: %w", rec.ID, err)
	}
	if len(results) == 0 {
		return nil
	}

	anyConfirmed := false
	allConfirmed := true
	reason := ""
	for i := range results {
		res := &results[i]
		if res.Confirmed && res.Success {
			rec.EndTxHash = res.TxHash
			rec.EndTime = res.Timestamp
			if !e.transition(route, rec, db.StatusRefunded, "", logger) {
				return nil
			}
			if err := e.store.UpdateRecord(ctx, rec); err != nil {
				return fmt.Errorf("failed to update refunded record %s: %w", rec.ID, err)
			}
			e.notifySettled(ctx, rec, logger)
			return nil
		}
		if res.Confirmed {
			anyConfirmed = true
			if res.Reason != "" {
				reason = res.Reason
			}
		} else {
			allConfirmed = false
		}
	}

	switch {
	case allConfirmed:
		if reason == "" {
			reason = "all refund attempts rejected"
		}
		if !e.transition(route, rec, db.StatusFailed, reason, logger) {
			return nil
		}
	case anyConfirmed:
		if rec.Result != db.StatusPendingToRefund {
			return nil
		}
		if !e.transition(route, rec, db.StatusPendingToConfirmRefund, "", logger) {
			return nil
		}
	default:
		// Every attempt still unconfirmed; stay on pendingToRefund.
		return nil
	}
	if err := e.store.UpdateRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to update refund-track record %s: %w", rec.ID, err)
	}
	return nil
}

// fetchWithdrawals checks the withdraw-waiting batch, settling records whose
// provider withdrawal has confirmed. Runs every Nth cycle to limit request
// volume.
func (e *Engine) fetchWithdrawals(ctx context.Context, route *registry.Route, logger *zap.Logger) error {
	recs, err := e.store.WithdrawWaitingRecords(ctx, routeFilter(route), e.cfg.StatusPageSize)
	if err != nil {
		return fmt.Errorf("failed to load withdraw-waiting records: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(recs))
	byNativeID := make(map[string]*db.TransferRecord, len(recs))
	for _, rec := range recs {
		nativeID := nativeTransferID(route, rec)
		ids = append(ids, nativeID)
		byNativeID[nativeID] = rec
	}

	fills, err := e.adapter(route.ID()).QueryMultiRelayStatus(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to query withdraw batch: %w", err)
	}

	now := time.Now().Unix()
	settled := make(map[string]bool, len(fills))
	for i := range fills {
		fill := &fills[i]
		rec, ok := byNativeID[fill.TransferID]
		if !ok || !fill.Withdrawn {
			continue
		}
		settled[fill.TransferID] = true
		if fill.WithdrawTxHash != "" {
			rec.EndTxHash = fill.WithdrawTxHash
		} else {
			rec.EndTxHash = fill.TxHash
		}
		rec.NeedWithdrawLiquidity = false
		if err := e.store.UpdateRecord(ctx, rec); err != nil {
			return fmt.Errorf("failed to settle withdrawal for %s: %w", rec.ID, err)
		}
		logger.Info("Liquidity withdrawal confirmed", zap.String("record_id", rec.ID))
		e.notifySettled(ctx, rec, logger)
	}

	// Records the batch response missed get one targeted withdraw-status
	// query each before going back to waiting.
	for nativeID, rec := range byNativeID {
		if settled[nativeID] {
			continue
		}
		status, err := e.adapter(route.ID()).QueryWithdrawStatus(ctx, nativeID)
		if err != nil {
			return fmt.Errorf("failed to query withdraw status for %s: %w", rec.ID, err)
		}
		if status != nil && status.Confirmed {
			rec.EndTxHash = status.TxHash
			rec.NeedWithdrawLiquidity = false
			if err := e.store.UpdateRecord(ctx, rec); err != nil {
				return fmt.Errorf("failed to settle withdrawal for %s: %w", rec.ID, err)
			}
			logger.Info("Liquidity withdrawal confirmed", zap.String("record_id", rec.ID))
			e.notifySettled(ctx, rec, logger)
			continue
		}
		rec.LastRequestWithdraw = now
		if err := e.store.UpdateRecord(ctx, rec); err != nil {
			return fmt.Errorf("failed to update withdraw-waiting record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// batchFetchStatus pages destination fills by timestamp during the initial
// backlog catch-up, matching each fill to a stored record by native-id
// suffix. An empty page freezes the watermark and ends the catch-up phase.
func (e *Engine) batchFetchStatus(ctx context.Context, route *registry.Route, cur *cursor.SyncCursor, logger *zap.Logger) error {
	fills, err := e.adapter(route.ID()).BatchQueryRelayStatus(ctx, indexer.FillCursor{
		Since: cur.LatestFillTimestamp,
		Limit: e.cfg.StatusPageSize,
	})
	if err != nil {
		return fmt.Errorf("failed to batch query fills: %w", err)
	}
	if len(fills) == 0 {
		cur.LatestFillTimestamp = cursor.FillCatchupDone
		logger.Info("Batch catch-up complete")
		return nil
	}

	var pageMax int64
	for i := range fills {
		fill := &fills[i]
		rec, err := e.store.RecordByIDSuffix(ctx, routeFilter(route), fill.TransferID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("failed to match fill %s: %w", fill.TransferID, err)
		}
		// Settled records are skipped here, which makes re-reading a fill
		// across page boundaries a no-op.
		if rec != nil && rec.Result == db.StatusPending {
			if err := e.applyFill(ctx, route, rec, fill, logger); err != nil {
				return err
			}
		}
		if fill.Timestamp > pageMax {
			pageMax = fill.Timestamp
		}
	}

	// A truncated page may have cut through a run of fills sharing the
	// boundary timestamp; stepping back one second re-fetches the boundary
	// next page so the siblings are not lost to the timestamp_gt filter. When
	// even that would not move the watermark, take the full step to keep the
	// catch-up progressing.
	if len(fills) == e.cfg.StatusPageSize && pageMax-1 > cur.LatestFillTimestamp {
		cur.LatestFillTimestamp = pageMax - 1
	} else if pageMax > cur.LatestFillTimestamp {
		cur.LatestFillTimestamp = pageMax
	}
	return nil
}

// accrue books a settled fill onto the servicing provider's ledger: cost
// grows by the observed relay fee, profit by the record's own fee. Ledger
// write failures are logged, not retried; the record itself is already
// settled.
func (e *Engine) accrue(ctx context.Context, route *registry.Route, rec *db.TransferRecord, fill *indexer.RelayRecord, logger *zap.Logger) {
	provider := rec.Provider
	if provider == "" {
		// Variants without a pinned provider credit whoever relayed the fill.
		provider = rec.Relayer
	}
	if provider == "" {
		return
	}

	id := db.ProviderKey(route.ID(), provider, rec.SendToken)
	info, err := e.store.Provider(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		info = newProviderInfo(route, provider, rec.SendToken)
	} else if err != nil {
		logger.Error("Failed to load provider ledger", zap.String("provider_id", id), zap.Error(err))
		return
	}

	cost, err := addAmounts(info.Cost, fill.Fee)
	if err != nil {
		logger.Warn("Failed to accrue cost", zap.String("provider_id", id), zap.Error(err))
		return
	}
	profit, err := addAmounts(info.Profit, rec.Fee)
	if err != nil {
		logger.Warn("Failed to accrue profit", zap.String("provider_id", id), zap.Error(err))
		return
	}
	info.Cost = cost
	info.Profit = profit
	info.LastTransferID = rec.ID

	if err := e.store.SaveProvider(ctx, info); err != nil {
		logger.Error("Failed to save provider ledger", zap.String("provider_id", id), zap.Error(err))
	}
}

func addAmounts(a, b string) (string, error) {
	left, err := parseAmount(a)
	if err != nil {
		return "", err
	}
	right, err := parseAmount(b)
	if err != nil {
		return "", err
	}
	return left.Add(right).String(), nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
