package engine

import (
	"context"

	"github.com/chainsafe/bridge-reconciler/pkg/db"
)

// Store is the persistence surface the engine drives. *db.Store satisfies it;
// tests substitute in-memory fakes.
type Store interface {
	CreateRecord(ctx context.Context, rec *db.TransferRecord) error
	RecordByID(ctx context.Context, id string) (*db.TransferRecord, error)
	LatestNonce(ctx context.Context, route db.RouteFilter) (int64, error)
	UnsettledRecords(ctx context.Context, route db.RouteFilter, skip, take int) ([]*db.TransferRecord, error)
	WithdrawWaitingRecords(ctx context.Context, route db.RouteFilter, take int) ([]*db.TransferRecord, error)
	OldestPendingAbove(ctx context.Context, route db.RouteFilter, nonce int64) (*db.TransferRecord, error)
	RecordByIDSuffix(ctx context.Context, route db.RouteFilter, suffix string) (*db.TransferRecord, error)
	OldestUnsettledStartTime(ctx context.Context, route db.RouteFilter) (int64, error)
	UpdateRecord(ctx context.Context, rec *db.TransferRecord) error
	DeleteRecord(ctx context.Context, id string) error
	CountPending(ctx context.Context, route db.RouteFilter) (int, error)

	Provider(ctx context.Context, id string) (*db.RelayProviderInfo, error)
	SaveProvider(ctx context.Context, info *db.RelayProviderInfo) error
	MaxProviderNonce(ctx context.Context, routeID string) (int64, error)
	MaxProviderTargetNonce(ctx context.Context, routeID string) (int64, error)
}

// Notifier publishes settled records downstream. Delivery is best effort;
// failures are logged and never fail the cycle.
type Notifier interface {
	RecordSettled(ctx context.Context, rec *db.TransferRecord) error
}
