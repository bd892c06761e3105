package engine

// TODO: remove the mock impl and use mockery to generate mock

import (
	"context"

	"github.com/chainsafe/bridge-reconciler/pkg/db"
	"github.com/chainsafe/bridge-reconciler/pkg/indexer"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	CreateRecordFunc             func(ctx context.Context, rec *db.TransferRecord) error
	RecordByIDFunc               func(ctx context.Context, id string) (*db.TransferRecord, error)
	LatestNonceFunc              func(ctx context.Context, route db.RouteFilter) (int64, error)
	UnsettledRecordsFunc         func(ctx context.Context, route db.RouteFilter, skip, take int) ([]*db.TransferRecord, error)
	WithdrawWaitingRecordsFunc   func(ctx context.Context, route db.RouteFilter, take int) ([]*db.TransferRecord, error)
	OldestPendingAboveFunc       func(ctx context.Context, route db.RouteFilter, nonce int64) (*db.TransferRecord, error)
	RecordByIDSuffixFunc         func(ctx context.Context, route db.RouteFilter, suffix string) (*db.TransferRecord, error)
	OldestUnsettledStartTimeFunc func(ctx context.Context, route db.RouteFilter) (int64, error)
	UpdateRecordFunc             func(ctx context.Context, rec *db.TransferRecord) error
	DeleteRecordFunc             func(ctx context.Context, id string) error
	CountPendingFunc             func(ctx context.Context, route db.RouteFilter) (int, error)
	ProviderFunc                 func(ctx context.Context, id string) (*db.RelayProviderInfo, error)
	SaveProviderFunc             func(ctx context.Context, info *db.RelayProviderInfo) error
	MaxProviderNonceFunc         func(ctx context.Context, routeID string) (int64, error)
	MaxProviderTargetNonceFunc   func(ctx context.Context, routeID string) (int64, error)
}

func (m *MockStore) CreateRecord(ctx context.Context, rec *db.TransferRecord) error {
	if m.CreateRecordFunc != nil {
		return m.CreateRecordFunc(ctx, rec)
	}
	return nil
}

func (m *MockStore) RecordByID(ctx context.Context, id string) (*db.TransferRecord, error) {
	if m.RecordByIDFunc != nil {
		return m.RecordByIDFunc(ctx, id)
	}
	return nil, db.ErrNotFound
}

func (m *MockStore) LatestNonce(ctx context.Context, route db.RouteFilter) (int64, error) {
	if m.LatestNonceFunc != nil {
		return m.LatestNonceFunc(ctx, route)
	}
	return 0, nil
}

func (m *MockStore) UnsettledRecords(ctx context.Context, route db.RouteFilter, skip, take int) ([]*db.TransferRecord, error) {
	if m.UnsettledRecordsFunc != nil {
		return m.UnsettledRecordsFunc(ctx, route, skip, take)
	}
	return nil, nil
}

func (m *MockStore) WithdrawWaitingRecords(ctx context.Context, route db.RouteFilter, take int) ([]*db.TransferRecord, error) {
	if m.WithdrawWaitingRecordsFunc != nil {
		return m.WithdrawWaitingRecordsFunc(ctx, route, take)
	}
	return nil, nil
}

func (m *MockStore) OldestPendingAbove(ctx context.Context, route db.RouteFilter, nonce int64) (*db.TransferRecord, error) {
	if m.OldestPendingAboveFunc != nil {
		return m.OldestPendingAboveFunc(ctx, route, nonce)
	}
	return nil, db.ErrNotFound
}

func (m *MockStore) RecordByIDSuffix(ctx context.Context, route db.RouteFilter, suffix string) (*db.TransferRecord, error) {
	if m.RecordByIDSuffixFunc != nil {
		return m.RecordByIDSuffixFunc(ctx, route, suffix)
	}
	return nil, db.ErrNotFound
}

func (m *MockStore) OldestUnsettledStartTime(ctx context.Context, route db.RouteFilter) (int64, error) {
	if m.OldestUnsettledStartTimeFunc != nil {
		return m.OldestUnsettledStartTimeFunc(ctx, route)
	}
	return 0, nil
}

func (m *MockStore) UpdateRecord(ctx context.Context, rec *db.TransferRecord) error {
	if m.UpdateRecordFunc != nil {
		return m.UpdateRecordFunc(ctx, rec)
	}
	return nil
}

func (m *MockStore) DeleteRecord(ctx context.Context, id string) error {
	if m.DeleteRecordFunc != nil {
		return m.DeleteRecordFunc(ctx, id)
	}
	return nil
}

func (m *MockStore) CountPending(ctx context.Context, route db.RouteFilter) (int, error) {
	if m.CountPendingFunc != nil {
		return m.CountPendingFunc(ctx, route)
	}
	return 0, nil
}

func (m *MockStore) Provider(ctx context.Context, id string) (*db.RelayProviderInfo, error) {
	if m.ProviderFunc != nil {
		return m.ProviderFunc(ctx, id)
	}
	return nil, db.ErrNotFound
}

func (m *MockStore) SaveProvider(ctx context.Context, info *db.RelayProviderInfo) error {
	if m.SaveProviderFunc != nil {
		return m.SaveProviderFunc(ctx, info)
	}
	return nil
}

func (m *MockStore) MaxProviderNonce(ctx context.Context, routeID string) (int64, error) {
	if m.MaxProviderNonceFunc != nil {
		return m.MaxProviderNonceFunc(ctx, routeID)
	}
	return 0, nil
}

func (m *MockStore) MaxProviderTargetNonce(ctx context.Context, routeID string) (int64, error) {
	if m.MaxProviderTargetNonceFunc != nil {
		return m.MaxProviderTargetNonceFunc(ctx, routeID)
	}
	return 0, nil
}

// MockAdapter is a mock implementation of indexer.SourceAdapter
type MockAdapter struct {
	QueryRecordInfoFunc       func(ctx context.Context, cur indexer.RecordCursor) ([]indexer.TransferEvent, error)
	QueryRecordByTxHashFunc   func(ctx context.Context, txHash string) (*indexer.TransferEvent, error)
	QueryProviderInfoFunc     func(ctx context.Context, cur indexer.ProviderCursor) ([]indexer.ProviderUpdate, error)
	QueryTargetProviderFunc   func(ctx context.Context, cur indexer.ProviderCursor) ([]indexer.ProviderUpdate, error)
	QueryRelayStatusFunc      func(ctx context.Context, transferID string) (*indexer.RelayRecord, error)
	QueryMultiRelayStatusFunc func(ctx context.Context, transferIDs []string) ([]indexer.RelayRecord, error)
	BatchQueryRelayStatusFunc func(ctx context.Context, cur indexer.FillCursor) ([]indexer.RelayRecord, error)
	QueryWithdrawStatusFunc   func(ctx context.Context, transferID string) (*indexer.WithdrawStatus, error)
	QueryRefundResultsFunc    func(ctx context.Context, transferID string) ([]indexer.RefundResult, error)
}

func (m *MockAdapter) QueryRecordInfo(ctx context.Context, cur indexer.RecordCursor) ([]indexer.TransferEvent, error) {
	if m.QueryRecordInfoFunc != nil {
		return m.QueryRecordInfoFunc(ctx, cur)
	}
	return nil, nil
}

func (m *MockAdapter) QueryRecordByTxHash(ctx context.Context, txHash string) (*indexer.TransferEvent, error) {
	if m.QueryRecordByTxHashFunc != nil {
		return m.QueryRecordByTxHashFunc(ctx, txHash)
	}
	return nil, nil
}

func (m *MockAdapter) QueryProviderInfo(ctx context.Context, cur indexer.ProviderCursor) ([]indexer.ProviderUpdate, error) {
	if m.QueryProviderInfoFunc != nil {
		return m.QueryProviderInfoFunc(ctx, cur)
	}
	return nil, nil
}

func (m *MockAdapter) QueryTargetProviderInfo(ctx context.Context, cur indexer.ProviderCursor) ([]indexer.ProviderUpdate, error) {
	if m.QueryTargetProviderFunc != nil {
		return m.QueryTargetProviderFunc(ctx, cur)
	}
	return nil, nil
}

func (m *MockAdapter) QueryRelayStatus(ctx context.Context, transferID string) (*indexer.RelayRecord, error) {
	if m.QueryRelayStatusFunc != nil {
		return m.QueryRelayStatusFunc(ctx, transferID)
	}
	return nil, nil
}

func (m *MockAdapter) QueryMultiRelayStatus(ctx context.Context, transferIDs []string) ([]indexer.RelayRecord, error) {
	if m.QueryMultiRelayStatusFunc != nil {
		return m.QueryMultiRelayStatusFunc(ctx, transferIDs)
	}
	return nil, nil
}

func (m *MockAdapter) BatchQueryRelayStatus(ctx context.Context, cur indexer.FillCursor) ([]indexer.RelayRecord, error) {
	if m.BatchQueryRelayStatusFunc != nil {
		return m.BatchQueryRelayStatusFunc(ctx, cur)
	}
	return nil, nil
}

func (m *MockAdapter) QueryWithdrawStatus(ctx context.Context, transferID string) (*indexer.WithdrawStatus, error) {
	if m.QueryWithdrawStatusFunc != nil {
		return m.QueryWithdrawStatusFunc(ctx, transferID)
	}
	return nil, nil
}

func (m *MockAdapter) QueryRefundResults(ctx context.Context, transferID string) ([]indexer.RefundResult, error) {
	if m.QueryRefundResultsFunc != nil {
		return m.QueryRefundResultsFunc(ctx, transferID)
	}
	return nil, nil
}

func (m *MockAdapter) Endpoint() string {
	return "mock"
}
