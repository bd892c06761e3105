package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/pkg/config"
	"github.com/chainsafe/bridge-reconciler/pkg/cursor"
	"github.com/chainsafe/bridge-reconciler/pkg/db"
	"github.com/chainsafe/bridge-reconciler/pkg/indexer"
	"github.com/chainsafe/bridge-reconciler/pkg/registry"
)

const (
	tokenUSDC    = "0x00000000000000000000000000000000000000aa"
	tokenUSDCDst = "0x00000000000000000000000000000000000000bb"
	tokenUSDT    = "0x00000000000000000000000000000000000000cc"
	tokenUSDTDst = "0x00000000000000000000000000000000000000dd"
	providerAddr = "0x00000000000000000000000000000000000000ee"
)

var testSyncCfg = config.SyncConfig{
	DefaultInterval: 10 * time.Millisecond,
	IngestPageSize:  20,
	StatusPageSize:  3,
	ReorgWindow:     900 * time.Second,
	WithdrawCadence: 5,
	IndexerTimeout:  time.Second,
}

const routeYAMLTemplate = `
routes:
  - from_chain: arbitrum
    to_chain: polygon
    remote_chain_id: 137
    bridge: %s
    direction: lock
    indexers:
      - dialect: subgraph
        source_url: http://localhost/source
        target_url: http://localhost/target
    tokens:
      - symbol: USDC
        from_address: "` + tokenUSDC + `"
        to_address: "` + tokenUSDCDst + `"
        from_decimals: 6
        to_decimals: 6
        fee_token: USDC
      - symbol: USDT
        from_address: "` + tokenUSDT + `"
        to_address: "` + tokenUSDTDst + `"
        from_decimals: 6
        to_decimals: 18
        fee_token: USDT
`

func newTestEngine(t *testing.T, bridge string, store Store, adapter indexer.SourceAdapter) (*Engine, *registry.Route) {
	t.Helper()
	reg, err := registry.Parse([]byte(fmt.Sprintf(routeYAMLTemplate, bridge)))
	require.NoError(t, err)
	route := reg.Routes()[0]
	e := New(store, reg, map[string]indexer.SourceAdapter{route.ID(): adapter}, nil, testSyncCfg, zap.NewNop())
	return e, route
}

func testEvent(nativeID string, timestamp int64) indexer.TransferEvent {
	return indexer.TransferEvent{
		ID:            nativeID,
		MessageNonce:  nativeID,
		RemoteChainID: 137,
		Sender:        "0x0000000000000000000000000000000000000011",
		Recipient:     "0x0000000000000000000000000000000000000022",
		TokenAddress:  tokenUSDC,
		Amount:        "500000",
		Fee:           "1000",
		Provider:      providerAddr,
		TxHash:        "0xhash" + nativeID,
		Timestamp:     timestamp,
	}
}

func TestCycle_IngestsNewEvents(t *testing.T) {
	var created []*db.TransferRecord
	store := &MockStore{
		CreateRecordFunc: func(_ context.Context, rec *db.TransferRecord) error {
			created = append(created, rec)
			return nil
		},
	}
	adapter := &MockAdapter{
		QueryRecordInfoFunc: func(_ context.Context, cur indexer.RecordCursor) ([]indexer.TransferEvent, error) {
			if cur.Nonce > 0 {
				return nil, nil
			}
			return []indexer.TransferEvent{
				testEvent("0xaaa1", 100),
				testEvent("0xaaa2", 110),
				testEvent("0xaaa3", 120),
			}, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, adapter)

	e.Cycle(context.Background(), route)

	require.Len(t, created, 3)
	for i, rec := range created {
		assert.Equal(t, int64(i+1), rec.Nonce)
		assert.Equal(t, db.StatusPending, rec.Result)
		assert.Equal(t, "arbitrum", rec.FromChain)
		assert.Equal(t, "USDC", rec.SendToken)
		assert.Empty(t, rec.ResponseTxHash)
		assert.Empty(t, rec.EndTxHash)
	}
	assert.Equal(t, route.ID()+"-0xaaa1", created[0].ID)
	assert.Equal(t, int64(3), e.cursors.Get(route.ID()).LatestNonce)
}

func TestIngest_IdempotentReplay(t *testing.T) {
	var created int
	store := &MockStore{
		CreateRecordFunc: func(_ context.Context, _ *db.TransferRecord) error {
			return db.ErrDuplicateRecord
		},
	}
	adapter := &MockAdapter{
		QueryRecordInfoFunc: func(_ context.Context, cur indexer.RecordCursor) ([]indexer.TransferEvent, error) {
			if cur.Nonce > 0 {
				return nil, nil
			}
			created++
			return []indexer.TransferEvent{testEvent("0xaaa1", 100), testEvent("0xaaa2", 110)}, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, adapter)
	cur := e.cursors.Get(route.ID())

	require.NoError(t, e.ingest(context.Background(), route, cur, zap.NewNop()))

	// Duplicate-key rejections still advance the cursor.
	assert.Equal(t, int64(2), cur.LatestNonce)
}

func TestIngest_SkipButAdvanceOnUnmappedToken(t *testing.T) {
	var created int
	store := &MockStore{
		CreateRecordFunc: func(_ context.Context, _ *db.TransferRecord) error {
			created++
			return nil
		},
	}
	unmapped := testEvent("0xbad1", 100)
	unmapped.TokenAddress = "0x00000000000000000000000000000000000000ff"
	adapter := &MockAdapter{
		QueryRecordInfoFunc: func(_ context.Context, cur indexer.RecordCursor) ([]indexer.TransferEvent, error) {
			if cur.Nonce > 0 {
				return nil, nil
			}
			return []indexer.TransferEvent{unmapped}, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, adapter)
	cur := e.cursors.Get(route.ID())

	require.NoError(t, e.ingest(context.Background(), route, cur, zap.NewNop()))

	assert.Zero(t, created)
	assert.Equal(t, int64(1), cur.LatestNonce, "cursor advances past the dropped event")
}

func TestIngest_CursorMonotonicAcrossCycles(t *testing.T) {
	var nonces []int64
	store := &MockStore{
		CreateRecordFunc: func(_ context.Context, rec *db.TransferRecord) error {
			nonces = append(nonces, rec.Nonce)
			return nil
		},
	}
	pages := map[int64][]indexer.TransferEvent{
		0: {testEvent("0xaaa1", 100), testEvent("0xaaa2", 110)},
		2: {testEvent("0xaaa3", 120)},
	}
	adapter := &MockAdapter{
		QueryRecordInfoFunc: func(_ context.Context, cur indexer.RecordCursor) ([]indexer.TransferEvent, error) {
			return pages[cur.Nonce], nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, adapter)
	cur := e.cursors.Get(route.ID())

	require.NoError(t, e.ingest(context.Background(), route, cur, zap.NewNop()))
	require.NoError(t, e.ingest(context.Background(), route, cur, zap.NewNop()))

	assert.Equal(t, []int64{1, 2, 3}, nonces)
}

func TestCycle_ReentrancyGuard(t *testing.T) {
	adapterCalled := false
	adapter := &MockAdapter{
		QueryRecordInfoFunc: func(_ context.Context, _ indexer.RecordCursor) ([]indexer.TransferEvent, error) {
			adapterCalled = true
			return nil, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", &MockStore{}, adapter)
	cur := e.cursors.Get(route.ID())

	require.True(t, cur.BeginSync())
	e.Cycle(context.Background(), route)
	assert.False(t, adapterCalled, "overlapping firing must be a no-op")
	cur.EndSync()

	e.Cycle(context.Background(), route)
	assert.True(t, adapterCalled)
}

func TestReadiness_DropsOnStop(t *testing.T) {
	e, _ := newTestEngine(t, "lnv2-default", &MockStore{}, &MockAdapter{})

	assert.False(t, e.Ready())
	e.Start()
	assert.True(t, e.Ready())
	e.Stop()
	assert.False(t, e.Ready(), "a draining instance is not ready")
}

func TestApplyFill_Success_AccruesCostAndProfit(t *testing.T) {
	var savedRec *db.TransferRecord
	var savedProv *db.RelayProviderInfo
	store := &MockStore{
		UpdateRecordFunc: func(_ context.Context, rec *db.TransferRecord) error {
			savedRec = rec
			return nil
		},
		ProviderFunc: func(_ context.Context, id string) (*db.RelayProviderInfo, error) {
			return &db.RelayProviderInfo{ID: id, Cost: "10", Profit: "5"}, nil
		},
		SaveProviderFunc: func(_ context.Context, info *db.RelayProviderInfo) error {
			savedProv = info
			return nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, &MockAdapter{})

	rec := &db.TransferRecord{
		ID:        route.ID() + "-0xaaa1",
		FromChain: "arbitrum", ToChain: "polygon", Bridge: "lnv2-default",
		Nonce: 1, SendToken: "USDC", Fee: "2",
		Provider: providerAddr, Result: db.StatusPending,
	}
	fill := &indexer.RelayRecord{
		TransferID: "0xaaa1",
		Relayer:    providerAddr,
		Fee:        "3",
		TxHash:     "0xfill1",
		Timestamp:  200,
	}
	require.NoError(t, e.applyFill(context.Background(), route, rec, fill, zap.NewNop()))

	require.NotNil(t, savedRec)
	assert.Equal(t, db.StatusSuccess, savedRec.Result)
	assert.Equal(t, "0xfill1", savedRec.ResponseTxHash)
	assert.Equal(t, "0xfill1", savedRec.EndTxHash)
	assert.Equal(t, int64(200), savedRec.EndTime)

	require.NotNil(t, savedProv)
	assert.Equal(t, "13", savedProv.Cost)
	assert.Equal(t, "7", savedProv.Profit)
	assert.Equal(t, rec.ID, savedProv.LastTransferID)
}

func TestApplyFill_Slashed_NoAccrual(t *testing.T) {
	var savedRec *db.TransferRecord
	providerSaved := false
	store := &MockStore{
		UpdateRecordFunc: func(_ context.Context, rec *db.TransferRecord) error {
			savedRec = rec
			return nil
		},
		SaveProviderFunc: func(_ context.Context, _ *db.RelayProviderInfo) error {
			providerSaved = true
			return nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, &MockAdapter{})

	rec := &db.TransferRecord{
		ID: route.ID() + "-0xaaa1", Bridge: "lnv2-default",
		Provider: providerAddr, Result: db.StatusPending, Fee: "2",
	}
	fill := &indexer.RelayRecord{
		TransferID: "0xaaa1",
		Relayer:    "0x0000000000000000000000000000000000000033",
		Slasher:    "0x0000000000000000000000000000000000000033",
		Fee:        "3",
		TxHash:     "0xslash1",
	}
	require.NoError(t, e.applyFill(context.Background(), route, rec, fill, zap.NewNop()))

	require.NotNil(t, savedRec)
	assert.Equal(t, db.StatusPendingToRefund, savedRec.Result)
	assert.Empty(t, savedRec.EndTxHash)
	assert.False(t, providerSaved, "slashed fills must not accrue cost/profit")
}

func TestApplyFill_DirectConfirmRefundVariant(t *testing.T) {
	var savedRec *db.TransferRecord
	store := &MockStore{
		UpdateRecordFunc: func(_ context.Context, rec *db.TransferRecord) error {
			savedRec = rec
			return nil
		},
	}
	e, route := newTestEngine(t, "lockmint", store, &MockAdapter{})

	rec := &db.TransferRecord{
		ID: route.ID() + "-0xaaa1", Bridge: "lockmint",
		Result: db.StatusPending,
	}
	fill := &indexer.RelayRecord{TransferID: "0xaaa1", Slasher: providerAddr, TxHash: "0xslash1"}
	require.NoError(t, e.applyFill(context.Background(), route, rec, fill, zap.NewNop()))

	require.NotNil(t, savedRec)
	assert.Equal(t, db.StatusPendingToConfirmRefund, savedRec.Result)
}

func TestApplyFill_SeparateWithdrawParksRecord(t *testing.T) {
	var savedRec *db.TransferRecord
	store := &MockStore{
		UpdateRecordFunc: func(_ context.Context, rec *db.TransferRecord) error {
			savedRec = rec
			return nil
		},
	}
	e, route := newTestEngine(t, "lnv3", store, &MockAdapter{})

	rec := &db.TransferRecord{
		ID: route.ID() + "-0xaaa1", Bridge: "lnv3",
		Provider: providerAddr, Result: db.StatusPending, SendToken: "USDC",
	}
	fill := &indexer.RelayRecord{TransferID: "0xaaa1", Relayer: providerAddr, TxHash: "0xfill1", Withdrawn: false}
	require.NoError(t, e.applyFill(context.Background(), route, rec, fill, zap.NewNop()))

	require.NotNil(t, savedRec)
	assert.Equal(t, db.StatusSuccess, savedRec.Result)
	assert.Empty(t, savedRec.EndTxHash, "end hash waits for liquidity withdrawal")
	assert.True(t, savedRec.NeedWithdrawLiquidity)
}

func TestFetchWithdrawals_BatchSettlesParkedRecord(t *testing.T) {
	parked := &db.TransferRecord{
		ID: "arbitrum-polygon-lnv3-0xaaa1", Bridge: "lnv3",
		Result: db.StatusSuccess, ResponseTxHash: "0xfill1",
		NeedWithdrawLiquidity: true,
	}
	var updated []*db.TransferRecord
	store := &MockStore{
		WithdrawWaitingRecordsFunc: func(_ context.Context, _ db.RouteFilter, _ int) ([]*db.TransferRecord, error) {
			return []*db.TransferRecord{parked}, nil
		},
		UpdateRecordFunc: func(_ context.Context, rec *db.TransferRecord) error {
			updated = append(updated, rec)
			return nil
		},
	}
	fallbackQueried := false
	adapter := &MockAdapter{
		QueryMultiRelayStatusFunc: func(_ context.Context, ids []string) ([]indexer.RelayRecord, error) {
			require.Equal(t, []string{"0xaaa1"}, ids)
			return []indexer.RelayRecord{{
				TransferID: "0xaaa1", TxHash: "0xfill1",
				Withdrawn: true, WithdrawTxHash: "0xwd1",
			}}, nil
		},
		QueryWithdrawStatusFunc: func(_ context.Context, _ string) (*indexer.WithdrawStatus, error) {
			fallbackQueried = true
			return nil, nil
		},
	}
	e, route := newTestEngine(t, "lnv3", store, adapter)

	require.NoError(t, e.fetchWithdrawals(context.Background(), route, zap.NewNop()))

	require.Len(t, updated, 1)
	assert.Equal(t, "0xwd1", updated[0].EndTxHash)
	assert.False(t, updated[0].NeedWithdrawLiquidity)
	assert.False(t, fallbackQueried, "batch hit needs no per-record query")
}

func TestFetchWithdrawals_FallbackWhenBatchMisses(t *testing.T) {
	confirmed := &db.TransferRecord{
		ID: "arbitrum-polygon-lnv3-0xaaa1", Bridge: "lnv3",
		Result: db.StatusSuccess, NeedWithdrawLiquidity: true,
	}
	waiting := &db.TransferRecord{
		ID: "arbitrum-polygon-lnv3-0xaaa2", Bridge: "lnv3",
		Result: db.StatusSuccess, NeedWithdrawLiquidity: true,
	}
	updated := map[string]*db.TransferRecord{}
	store := &MockStore{
		WithdrawWaitingRecordsFunc: func(_ context.Context, _ db.RouteFilter, _ int) ([]*db.TransferRecord, error) {
			return []*db.TransferRecord{confirmed, waiting}, nil
		},
		UpdateRecordFunc: func(_ context.Context, rec *db.TransferRecord) error {
			updated[rec.ID] = rec
			return nil
		},
	}
	adapter := &MockAdapter{
		QueryMultiRelayStatusFunc: func(_ context.Context, _ []string) ([]indexer.RelayRecord, error) {
			return nil, nil
		},
		QueryWithdrawStatusFunc: func(_ context.Context, transferID string) (*indexer.WithdrawStatus, error) {
			if transferID == "0xaaa1" {
				return &indexer.WithdrawStatus{TransferID: transferID, Confirmed: true, TxHash: "0xwd1"}, nil
			}
			return nil, nil
		},
	}
	e, route := newTestEngine(t, "lnv3", store, adapter)

	require.NoError(t, e.fetchWithdrawals(context.Background(), route, zap.NewNop()))

	require.Len(t, updated, 2)
	settled := updated[confirmed.ID]
	assert.Equal(t, "0xwd1", settled.EndTxHash)
	assert.False(t, settled.NeedWithdrawLiquidity)
	still := updated[waiting.ID]
	assert.Empty(t, still.EndTxHash)
	assert.True(t, still.NeedWithdrawLiquidity)
	assert.NotZero(t, still.LastRequestWithdraw)
}

func TestReconcileStatus_WithdrawBatchRunsOnCadence(t *testing.T) {
	batchQueried := 0
	store := &MockStore{
		WithdrawWaitingRecordsFunc: func(_ context.Context, _ db.RouteFilter, _ int) ([]*db.TransferRecord, error) {
			batchQueried++
			return nil, nil
		},
	}
	e, route := newTestEngine(t, "lnv3", store, &MockAdapter{})
	cur := e.cursors.Get(route.ID())

	require.NoError(t, e.reconcileStatus(context.Background(), route, cur, zap.NewNop()))
	assert.Equal(t, 1, batchQueried)

	cur.Cycles = 1
	require.NoError(t, e.reconcileStatus(context.Background(), route, cur, zap.NewNop()))
	assert.Equal(t, 1, batchQueried, "off-cadence cycle skips the withdraw batch")

	cur.Cycles = uint64(testSyncCfg.WithdrawCadence)
	require.NoError(t, e.reconcileStatus(context.Background(), route, cur, zap.NewNop()))
	assert.Equal(t, 2, batchQueried)
}

func TestFetchStatus_SkipResetsOnShortPage(t *testing.T) {
	full := []*db.TransferRecord{
		{ID: "r1", Result: db.StatusSuccess},
		{ID: "r2", Result: db.StatusSuccess},
		{ID: "r3", Result: db.StatusSuccess},
	}
	short := full[:2]
	page := full
	store := &MockStore{
		UnsettledRecordsFunc: func(_ context.Context, _ db.RouteFilter, skip, _ int) ([]*db.TransferRecord, error) {
			return page, nil
		},
	}
	e, route := newTestEngine(t, "lnv3", store, &MockAdapter{})
	cur := e.cursors.Get(route.ID())

	require.NoError(t, e.fetchStatus(context.Background(), route, cur, zap.NewNop()))
	assert.Equal(t, 3, cur.Skip, "full page advances the offset")

	page = short
	require.NoError(t, e.fetchStatus(context.Background(), route, cur, zap.NewNop()))
	assert.Equal(t, 0, cur.Skip, "short page resets the offset")
}

func TestCheckRefund_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		results []indexer.RefundResult
		from    db.RecordStatus
		want    db.RecordStatus
		wantEnd string
	}{
		{
			name: "all unconfirmed stays pendingToRefund",
			results: []indexer.RefundResult{
				{TransferID: "0xaaa1", Confirmed: false},
				{TransferID: "0xaaa1", Confirmed: false},
			},
			from: db.StatusPendingToRefund,
			want: db.StatusPendingToRefund,
		},
		{
			name: "partially confirmed moves to pendingToConfirmRefund",
			results: []indexer.RefundResult{
				{TransferID: "0xaaa1", Confirmed: true},
				{TransferID: "0xaaa1", Confirmed: false},
			},
			from: db.StatusPendingToRefund,
			want: db.StatusPendingToConfirmRefund,
		},
		{
			name: "confirmed successful refund settles",
			results: []indexer.RefundResult{
				{TransferID: "0xaaa1", Confirmed: true, Success: true, TxHash: "0xrefund1", Timestamp: 300},
			},
			from:    db.StatusPendingToConfirmRefund,
			want:    db.StatusRefunded,
			wantEnd: "0xrefund1",
		},
		{
			name: "all confirmed rejected fails",
			results: []indexer.RefundResult{
				{TransferID: "0xaaa1", Confirmed: true, Reason: "wrong amount"},
			},
			from: db.StatusPendingToConfirmRefund,
			want: db.StatusFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &db.TransferRecord{ID: "arbitrum-polygon-lnv2-default-0xaaa1", Bridge: "lnv2-default", Result: tt.from}
			store := &MockStore{}
			adapter := &MockAdapter{
				QueryRefundResultsFunc: func(_ context.Context, _ string) ([]indexer.RefundResult, error) {
					return tt.results, nil
				},
			}
			e, route := newTestEngine(t, "lnv2-default", store, adapter)

			require.NoError(t, e.checkRefund(context.Background(), route, rec, zap.NewNop()))
			assert.Equal(t, tt.want, rec.Result)
			if tt.wantEnd != "" {
				assert.Equal(t, tt.wantEnd, rec.EndTxHash)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	plain := registry.Flags{}
	direct := registry.Flags{DirectConfirmRefund: true}

	assert.True(t, CanTransition(plain, db.StatusPending, db.StatusSuccess))
	assert.True(t, CanTransition(plain, db.StatusPending, db.StatusPendingToRefund))
	assert.True(t, CanTransition(plain, db.StatusPendingToRefund, db.StatusRefunded))
	assert.True(t, CanTransition(plain, db.StatusPendingToConfirmRefund, db.StatusRefunded))
	assert.True(t, CanTransition(plain, db.StatusPendingToConfirmRefund, db.StatusFailed))

	assert.False(t, CanTransition(plain, db.StatusPending, db.StatusRefunded),
		"refunded is only reachable through a refund-track status")
	assert.False(t, CanTransition(plain, db.StatusPending, db.StatusPendingToConfirmRefund))
	assert.True(t, CanTransition(direct, db.StatusPending, db.StatusPendingToConfirmRefund))

	assert.False(t, CanTransition(plain, db.StatusSuccess, db.StatusPending))
	assert.False(t, CanTransition(plain, db.StatusRefunded, db.StatusPending))
	assert.False(t, CanTransition(plain, db.StatusPendingToConfirmRefund, db.StatusPendingToRefund))
}

func TestBatchFetchStatus_FreezesWatermarkOnEmptyPage(t *testing.T) {
	adapter := &MockAdapter{
		BatchQueryRelayStatusFunc: func(_ context.Context, _ indexer.FillCursor) ([]indexer.RelayRecord, error) {
			return nil, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", &MockStore{}, adapter)
	cur := e.cursors.Get(route.ID())
	cur.LatestFillTimestamp = 1000

	require.NoError(t, e.batchFetchStatus(context.Background(), route, cur, zap.NewNop()))
	assert.Equal(t, cursor.FillCatchupDone, cur.LatestFillTimestamp)
}

func TestBatchFetchStatus_MatchesBySuffixAndAdvances(t *testing.T) {
	rec := &db.TransferRecord{
		ID: "arbitrum-polygon-lnv2-default-0xaaa1", Bridge: "lnv2-default",
		Result: db.StatusPending, Fee: "2", Provider: providerAddr, SendToken: "USDC",
	}
	var updated *db.TransferRecord
	store := &MockStore{
		RecordByIDSuffixFunc: func(_ context.Context, _ db.RouteFilter, suffix string) (*db.TransferRecord, error) {
			if suffix == "0xaaa1" {
				return rec, nil
			}
			return nil, db.ErrNotFound
		},
		UpdateRecordFunc: func(_ context.Context, r *db.TransferRecord) error {
			updated = r
			return nil
		},
	}
	adapter := &MockAdapter{
		BatchQueryRelayStatusFunc: func(_ context.Context, cur indexer.FillCursor) ([]indexer.RelayRecord, error) {
			if cur.Since >= 250 {
				return nil, nil
			}
			return []indexer.RelayRecord{
				{TransferID: "0xaaa1", Relayer: providerAddr, Fee: "3", TxHash: "0xfill1", Timestamp: 200},
				{TransferID: "0xzzz9", Relayer: providerAddr, Fee: "1", TxHash: "0xfill2", Timestamp: 250},
			}, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, adapter)
	cur := e.cursors.Get(route.ID())
	cur.LatestFillTimestamp = 100

	require.NoError(t, e.batchFetchStatus(context.Background(), route, cur, zap.NewNop()))

	require.NotNil(t, updated)
	assert.Equal(t, db.StatusSuccess, updated.Result)
	assert.Equal(t, int64(250), cur.LatestFillTimestamp, "watermark follows the newest fill")
}

func TestBatchFetchStatus_TruncatedPageKeepsBoundarySiblings(t *testing.T) {
	records := map[string]*db.TransferRecord{
		"0xaaa1": {ID: "arbitrum-polygon-lnv2-default-0xaaa1", Result: db.StatusPending},
		"0xaaa2": {ID: "arbitrum-polygon-lnv2-default-0xaaa2", Result: db.StatusPending},
		"0xaaa3": {ID: "arbitrum-polygon-lnv2-default-0xaaa3", Result: db.StatusPending},
		"0xaaa4": {ID: "arbitrum-polygon-lnv2-default-0xaaa4", Result: db.StatusPending},
	}
	var applied []string
	store := &MockStore{
		RecordByIDSuffixFunc: func(_ context.Context, _ db.RouteFilter, suffix string) (*db.TransferRecord, error) {
			if rec, ok := records[suffix]; ok {
				return rec, nil
			}
			return nil, db.ErrNotFound
		},
		UpdateRecordFunc: func(_ context.Context, rec *db.TransferRecord) error {
			applied = append(applied, rec.ID)
			return nil
		},
	}
	// Four fills, the last three sharing timestamp 200, page size 3: the
	// first page is cut mid-boundary.
	fills := []indexer.RelayRecord{
		{TransferID: "0xaaa1", Relayer: providerAddr, TxHash: "0xfill1", Timestamp: 150},
		{TransferID: "0xaaa2", Relayer: providerAddr, TxHash: "0xfill2", Timestamp: 200},
		{TransferID: "0xaaa3", Relayer: providerAddr, TxHash: "0xfill3", Timestamp: 200},
		{TransferID: "0xaaa4", Relayer: providerAddr, TxHash: "0xfill4", Timestamp: 200},
	}
	adapter := &MockAdapter{
		BatchQueryRelayStatusFunc: func(_ context.Context, cur indexer.FillCursor) ([]indexer.RelayRecord, error) {
			var page []indexer.RelayRecord
			for _, fill := range fills {
				if fill.Timestamp > cur.Since && len(page) < cur.Limit {
					page = append(page, fill)
				}
			}
			return page, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, adapter)
	cur := e.cursors.Get(route.ID())
	cur.LatestFillTimestamp = 100

	require.NoError(t, e.batchFetchStatus(context.Background(), route, cur, zap.NewNop()))
	assert.Equal(t, int64(199), cur.LatestFillTimestamp, "truncated page steps back to the boundary")

	// The next page replays the boundary timestamp; the already-settled fills
	// are skipped, the sibling the cut dropped is applied.
	require.NoError(t, e.batchFetchStatus(context.Background(), route, cur, zap.NewNop()))
	assert.Equal(t, int64(200), cur.LatestFillTimestamp)
	assert.Equal(t, []string{
		records["0xaaa1"].ID, records["0xaaa2"].ID, records["0xaaa3"].ID, records["0xaaa4"].ID,
	}, applied, "every record settled exactly once")

	require.NoError(t, e.batchFetchStatus(context.Background(), route, cur, zap.NewNop()))
	assert.Equal(t, cursor.FillCatchupDone, cur.LatestFillTimestamp)
}

func TestBatchFetchStatus_FullPageAtSingleTimestampStillAdvances(t *testing.T) {
	store := &MockStore{}
	adapter := &MockAdapter{
		BatchQueryRelayStatusFunc: func(_ context.Context, cur indexer.FillCursor) ([]indexer.RelayRecord, error) {
			if cur.Since >= 101 {
				return nil, nil
			}
			return []indexer.RelayRecord{
				{TransferID: "0xbbb1", TxHash: "0xfill1", Timestamp: 101},
				{TransferID: "0xbbb2", TxHash: "0xfill2", Timestamp: 101},
				{TransferID: "0xbbb3", TxHash: "0xfill3", Timestamp: 101},
			}, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, adapter)
	cur := e.cursors.Get(route.ID())
	cur.LatestFillTimestamp = 100

	// Stepping back would land on the current watermark, so the full step is
	// taken instead; the incremental poller picks up anything the cut missed.
	require.NoError(t, e.batchFetchStatus(context.Background(), route, cur, zap.NewNop()))
	assert.Equal(t, int64(101), cur.LatestFillTimestamp)
}

func TestRepairReorg_ReplacesStaleRecordKeepingNonce(t *testing.T) {
	stale := &db.TransferRecord{
		ID: "arbitrum-polygon-lnv2-default-0xold1", Bridge: "lnv2-default",
		Nonce: 5, Result: db.StatusPending,
		RequestTxHash: "0xreq1",
		StartTime:     time.Now().Unix() - 2000,
		Provider:      providerAddr, SendToken: "USDC",
	}
	var deleted string
	var created *db.TransferRecord
	store := &MockStore{
		OldestPendingAboveFunc: func(_ context.Context, _ db.RouteFilter, nonce int64) (*db.TransferRecord, error) {
			if nonce >= 5 {
				return nil, db.ErrNotFound
			}
			return stale, nil
		},
		DeleteRecordFunc: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
		CreateRecordFunc: func(_ context.Context, rec *db.TransferRecord) error {
			created = rec
			return nil
		},
	}
	fresh := testEvent("0xnew1", 100)
	fresh.TxHash = "0xreq1"
	adapter := &MockAdapter{
		QueryRecordByTxHashFunc: func(_ context.Context, txHash string) (*indexer.TransferEvent, error) {
			return &fresh, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, adapter)
	cur := e.cursors.Get(route.ID())

	require.NoError(t, e.repairReorg(context.Background(), route, cur, zap.NewNop()))

	assert.Equal(t, stale.ID, deleted)
	require.NotNil(t, created)
	assert.Equal(t, int64(5), created.Nonce, "repair reuses the stale record's nonce")
	assert.Equal(t, route.ID()+"-0xnew1", created.ID)
	assert.GreaterOrEqual(t, cur.ConfirmedNonce, int64(5))
}

func TestRepairReorg_MatchingIDIsFalseAlarm(t *testing.T) {
	stale := &db.TransferRecord{
		ID: "arbitrum-polygon-lnv2-default-0xaaa1", Bridge: "lnv2-default",
		Nonce: 5, Result: db.StatusPending,
		RequestTxHash: "0xreq1",
		StartTime:     time.Now().Unix() - 2000,
	}
	deleted := false
	store := &MockStore{
		OldestPendingAboveFunc: func(_ context.Context, _ db.RouteFilter, _ int64) (*db.TransferRecord, error) {
			return stale, nil
		},
		DeleteRecordFunc: func(_ context.Context, _ string) error {
			deleted = true
			return nil
		},
	}
	same := testEvent("0xaaa1", 100)
	adapter := &MockAdapter{
		QueryRecordByTxHashFunc: func(_ context.Context, _ string) (*indexer.TransferEvent, error) {
			return &same, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, adapter)
	cur := e.cursors.Get(route.ID())

	require.NoError(t, e.repairReorg(context.Background(), route, cur, zap.NewNop()))
	assert.False(t, deleted)
	assert.Zero(t, cur.ConfirmedNonce)
}

func TestRepairReorg_RecordInsideWindowLeftAlone(t *testing.T) {
	recent := &db.TransferRecord{
		ID: "arbitrum-polygon-lnv2-default-0xaaa1", Bridge: "lnv2-default",
		Nonce: 5, Result: db.StatusPending,
		StartTime: time.Now().Unix() - 10,
	}
	store := &MockStore{
		OldestPendingAboveFunc: func(_ context.Context, _ db.RouteFilter, _ int64) (*db.TransferRecord, error) {
			return recent, nil
		},
	}
	queried := false
	adapter := &MockAdapter{
		QueryRecordByTxHashFunc: func(_ context.Context, _ string) (*indexer.TransferEvent, error) {
			queried = true
			return nil, nil
		},
	}
	e, route := newTestEngine(t, "lnv2-default", store, adapter)

	require.NoError(t, e.repairReorg(context.Background(), route, e.cursors.Get(route.ID()), zap.NewNop()))
	assert.False(t, queried, "records inside the reorg window are not suspect")
}
