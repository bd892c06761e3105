package indexer

import (
	"context"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/internal/metrics"
)

// Resolver fans one query out to every configured backend for a chain and
// selects the most complete response. Chains run a fast indexer, a finalized
// indexer and sometimes a third-party fallback; picking the longest result
// favors whichever backend is least stale. This is a best-effort quorum, not
// a correctness guarantee: sources never have to agree, and a per-source
// failure only removes that source from consideration.
type Resolver struct {
	routeID  string
	adapters []SourceAdapter
	logger   *zap.Logger
}

// NewResolver wraps redundant adapters for one route.
func NewResolver(routeID string, adapters []SourceAdapter, logger *zap.Logger) *Resolver {
	return &Resolver{routeID: routeID, adapters: adapters, logger: logger}
}

// Endpoint implements SourceAdapter.
func (r *Resolver) Endpoint() string {
	return "resolver:" + r.routeID
}

// best runs the query against every adapter and keeps the longest slice.
// Per-source errors are logged and that source's result treated as empty.
func best[T any](r *Resolver, name string, query func(SourceAdapter) ([]T, error)) ([]T, error) {
	var selected []T
	counts := make([]int, 0, len(r.adapters))
	for _, adapter := range r.adapters {
		rows, err := query(adapter)
		if err != nil {
			r.logger.Warn("indexer source failed, treating as empty",
				zap.String("route", r.routeID),
				zap.String("endpoint", adapter.Endpoint()),
				zap.String("query", name),
				zap.Error(err))
			counts = append(counts, 0)
			continue
		}
		counts = append(counts, len(rows))
		if len(rows) > len(selected) {
			selected = rows
		}
	}
	for _, c := range counts {
		if c != len(selected) {
			metrics.ResolverDisagreements.WithLabelValues(r.routeID).Inc()
			break
		}
	}
	return selected, nil
}

// first runs the query against each adapter in order and returns the first
// non-nil single result.
func first[T any](r *Resolver, name string, query func(SourceAdapter) (*T, error)) (*T, error) {
	for _, adapter := range r.adapters {
		row, err := query(adapter)
		if err != nil {
			r.logger.Warn("indexer source failed, trying next",
				zap.String("route", r.routeID),
				zap.String("endpoint", adapter.Endpoint()),
				zap.String("query", name),
				zap.Error(err))
			continue
		}
		if row != nil {
			return row, nil
		}
	}
	return nil, nil
}

// QueryRecordInfo implements SourceAdapter.
func (r *Resolver) QueryRecordInfo(ctx context.Context, cur RecordCursor) ([]TransferEvent, error) {
	return best(r, "recordInfo", func(a SourceAdapter) ([]TransferEvent, error) {
		return a.QueryRecordInfo(ctx, cur)
	})
}

// QueryRecordByTxHash implements SourceAdapter.
func (r *Resolver) QueryRecordByTxHash(ctx context.Context, txHash string) (*TransferEvent, error) {
	return first(r, "recordByTxHash", func(a SourceAdapter) (*TransferEvent, error) {
		return a.QueryRecordByTxHash(ctx, txHash)
	})
}

// QueryProviderInfo implements SourceAdapter.
func (r *Resolver) QueryProviderInfo(ctx context.Context, cur ProviderCursor) ([]ProviderUpdate, error) {
	return best(r, "providerInfo", func(a SourceAdapter) ([]ProviderUpdate, error) {
		return a.QueryProviderInfo(ctx, cur)
	})
}

// QueryTargetProviderInfo implements SourceAdapter.
func (r *Resolver) QueryTargetProviderInfo(ctx context.Context, cur ProviderCursor) ([]ProviderUpdate, error) {
	return best(r, "targetProviderInfo", func(a SourceAdapter) ([]ProviderUpdate, error) {
		return a.QueryTargetProviderInfo(ctx, cur)
	})
}

// QueryRelayStatus implements SourceAdapter.
func (r *Resolver) QueryRelayStatus(ctx context.Context, transferID string) (*RelayRecord, error) {
	return first(r, "relayStatus", func(a SourceAdapter) (*RelayRecord, error) {
		return a.QueryRelayStatus(ctx, transferID)
	})
}

// QueryMultiRelayStatus implements SourceAdapter.
func (r *Resolver) QueryMultiRelayStatus(ctx context.Context, transferIDs []string) ([]RelayRecord, error) {
	return best(r, "multiRelayStatus", func(a SourceAdapter) ([]RelayRecord, error) {
		return a.QueryMultiRelayStatus(ctx, transferIDs)
	})
}

// BatchQueryRelayStatus implements SourceAdapter.
func (r *Resolver) BatchQueryRelayStatus(ctx context.Context, cur FillCursor) ([]RelayRecord, error) {
	return best(r, "batchRelayStatus", func(a SourceAdapter) ([]RelayRecord, error) {
		return a.BatchQueryRelayStatus(ctx, cur)
	})
}

// QueryWithdrawStatus implements SourceAdapter.
func (r *Resolver) QueryWithdrawStatus(ctx context.Context, transferID string) (*WithdrawStatus, error) {
	return first(r, "withdrawStatus", func(a SourceAdapter) (*WithdrawStatus, error) {
		return a.QueryWithdrawStatus(ctx, transferID)
	})
}

// QueryRefundResults implements SourceAdapter.
func (r *Resolver) QueryRefundResults(ctx context.Context, transferID string) ([]RefundResult, error) {
	return best(r, "refundResults", func(a SourceAdapter) ([]RefundResult, error) {
		return a.QueryRefundResults(ctx, transferID)
	})
}
