package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/internal/metrics"
	"github.com/chainsafe/bridge-reconciler/pkg/cursor"
	"github.com/chainsafe/bridge-reconciler/pkg/db"
	"github.com/chainsafe/bridge-reconciler/pkg/indexer"
	"github.com/chainsafe/bridge-reconciler/pkg/registry"
)

// ingest pulls one page of new source-chain transfer events and persists
// them. The cursor advances once per returned event, including events dropped
// for mapping reasons: an unresolvable event must never block the cursor.
func (e *Engine) ingest(ctx context.Context, route *registry.Route, cur *cursor.SyncCursor, logger *zap.Logger) error {
	routeID := route.ID()

	if cur.LatestNonce == cursor.Uninitialized {
		nonce, err := e.store.LatestNonce(ctx, routeFilter(route))
		if err != nil {
			return fmt.Errorf("failed to seed ingest cursor: %w", err)
		}
		cur.LatestNonce = nonce
		logger.Info("Ingest cursor seeded", zap.Int64("latest_nonce", nonce))
	}

	events, err := e.adapter(routeID).QueryRecordInfo(ctx, indexer.RecordCursor{
		Nonce: cur.LatestNonce,
		Limit: e.cfg.IngestPageSize,
	})
	if err != nil {
		return fmt.Errorf("failed to query new transfer events: %w", err)
	}

	for _, event := range events {
		rec, reason := e.buildRecord(route, &event, cur.LatestNonce+1)
		if rec == nil {
			metrics.RecordsDropped.WithLabelValues(routeID, reason).Inc()
			logger.Warn("Dropped source event",
				zap.String("native_id", event.ID),
				zap.String("reason", reason),
				zap.String("token", event.TokenAddress))
			cur.LatestNonce++
			continue
		}

		if err := e.store.CreateRecord(ctx, rec); err != nil {
			if errors.Is(err, db.ErrDuplicateRecord) {
				// Cursor replay after a crash; the record already exists.
				logger.Debug("Record already ingested", zap.String("record_id", rec.ID))
				cur.LatestNonce++
				continue
			}
			return fmt.Errorf("failed to create record %s: %w", rec.ID, err)
		}

		cur.LatestNonce++
		metrics.RecordsIngested.WithLabelValues(routeID).Inc()
		metrics.CursorNonce.WithLabelValues(routeID).Set(float64(cur.LatestNonce))
		logger.Debug("Record ingested",
			zap.String("record_id", rec.ID),
			zap.Int64("nonce", rec.Nonce))
	}
	return nil
}

// buildRecord normalizes one source event into a transfer record with the
// given engine nonce. A nil record means the event must be dropped; the
// second return names the drop reason.
func (e *Engine) buildRecord(route *registry.Route, event *indexer.TransferEvent, nonce int64) (*db.TransferRecord, string) {
	if event.RemoteChainID != 0 && event.RemoteChainID != route.RemoteChainID {
		return nil, "remote_chain_mismatch"
	}
	tok, ok := route.TokenByFromAddress(event.TokenAddress)
	if !ok {
		return nil, "unmapped_token"
	}
	recvAmount, err := registry.ConvertDecimals(event.Amount, tok.FromDecimals, tok.ToDecimals)
	if err != nil {
		return nil, "bad_amount"
	}

	rec := &db.TransferRecord{
		ID:           recordID(route, event.ID),
		FromChain:    route.FromChain,
		ToChain:      route.ToChain,
		Bridge:       route.Bridge,
		Nonce:        nonce,
		MessageNonce: event.MessageNonce,

		SendToken:     tok.Symbol,
		RecvToken:     tok.Symbol,
		SendTokenAddr: registry.NormalizeAddress(tok.FromAddress),
		RecvTokenAddr: registry.NormalizeAddress(tok.ToAddress),
		SendAmount:    event.Amount,
		RecvAmount:    recvAmount,
		Fee:           event.Fee,
		FeeToken:      tok.FeeToken,

		Sender:    registry.NormalizeAddress(event.Sender),
		Recipient: registry.NormalizeAddress(event.Recipient),
		Provider:  registry.NormalizeAddress(event.Provider),

		Result:        db.StatusPending,
		RequestTxHash: event.TxHash,
		StartTime:     event.Timestamp,
	}
	return rec, ""
}
