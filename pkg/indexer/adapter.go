package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/pkg/registry"
)

// SourceAdapter is the contract every indexer backend dialect implements.
// Each call is a single request/response; callers treat timeouts and
// transport errors as "no data this cycle" and retry on the next firing.
//
// Single-record queries return (nil, nil) when the backend has no match.
type SourceAdapter interface {
	// QueryRecordInfo fetches new source-chain transfer events ordered by
	// the protocol's native sequence key, offset by the engine nonce.
	QueryRecordInfo(ctx context.Context, cur RecordCursor) ([]TransferEvent, error)
	// QueryRecordByTxHash re-fetches a transfer event by its request
	// transaction hash, used by reorg repair.
	QueryRecordByTxHash(ctx context.Context, txHash string) (*TransferEvent, error)
	// QueryProviderInfo fetches source-chain provider fee/rate updates. For
	// combined-feed variants the same feed also carries margin and slash
	// updates.
	QueryProviderInfo(ctx context.Context, cur ProviderCursor) ([]ProviderUpdate, error)
	// QueryTargetProviderInfo fetches target-chain margin/withdraw/slash
	// updates.
	QueryTargetProviderInfo(ctx context.Context, cur ProviderCursor) ([]ProviderUpdate, error)
	// QueryRelayStatus fetches the destination-chain fill for one transfer.
	QueryRelayStatus(ctx context.Context, transferID string) (*RelayRecord, error)
	// QueryMultiRelayStatus fetches fills for a batch of transfer ids.
	QueryMultiRelayStatus(ctx context.Context, transferIDs []string) ([]RelayRecord, error)
	// BatchQueryRelayStatus pages fills by timestamp during catch-up.
	BatchQueryRelayStatus(ctx context.Context, cur FillCursor) ([]RelayRecord, error)
	// QueryWithdrawStatus fetches the liquidity-withdrawal state of a fill.
	QueryWithdrawStatus(ctx context.Context, transferID string) (*WithdrawStatus, error)
	// QueryRefundResults fetches all observed refund attempts for a transfer.
	QueryRefundResults(ctx context.Context, transferID string) ([]RefundResult, error)

	// Endpoint identifies the backend for logging and metrics.
	Endpoint() string
}

// NewAdapter constructs the dialect implementation for one configured
// indexer endpoint.
func NewAdapter(ep registry.IndexerEndpoint, timeout time.Duration, logger *zap.Logger) (SourceAdapter, error) {
	switch ep.Dialect {
	case "subgraph":
		return NewSubgraphAdapter(ep.SourceURL, ep.TargetURL, timeout, logger), nil
	case "ponder":
		return NewPonderAdapter(ep.SourceURL, ep.TargetURL, timeout, logger), nil
	case "hyperindex":
		return NewHyperindexAdapter(ep.SourceURL, ep.TargetURL, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown indexer dialect %q", ep.Dialect)
	}
}

// NewRouteAdapter builds the adapter stack for a route: one adapter per
// configured endpoint, wrapped in a Resolver when the route has redundant
// backends.
func NewRouteAdapter(route *registry.Route, timeout time.Duration, logger *zap.Logger) (SourceAdapter, error) {
	adapters := make([]SourceAdapter, 0, len(route.Indexers))
	for _, ep := range route.Indexers {
		adapter, err := NewAdapter(ep, timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", route.ID(), err)
		}
		adapters = append(adapters, adapter)
	}
	if len(adapters) == 1 {
		return adapters[0], nil
	}
	return NewResolver(route.ID(), adapters, logger), nil
}
