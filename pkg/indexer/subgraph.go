package indexer

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// SubgraphAdapter speaks the TheGraph dialect: `first`/`skip` pagination,
// `orderBy`/`orderDirection` arguments and `_gt`/`_in` where-suffixes.
type SubgraphAdapter struct {
	source *graphqlClient
	target *graphqlClient
	logger *zap.Logger
}

// NewSubgraphAdapter builds a subgraph-dialect adapter over a source-chain
// and a target-chain endpoint.
func NewSubgraphAdapter(sourceURL, targetURL string, timeout time.Duration, logger *zap.Logger) *SubgraphAdapter {
	return &SubgraphAdapter{
		source: newGraphQLClient(sourceURL, timeout, logger),
		target: newGraphQLClient(targetURL, timeout, logger),
		logger: logger,
	}
}

// Endpoint implements SourceAdapter.
func (a *SubgraphAdapter) Endpoint() string {
	return a.source.endpoint
}

type subgraphTransferRow struct {
	ID              string `json:"id"`
	Nonce           string `json:"nonce"`
	MessageNonce    string `json:"messageNonce"`
	RemoteChainID   string `json:"remoteChainId"`
	Sender          string `json:"sender"`
	Receiver        string `json:"receiver"`
	Token           string `json:"token"`
	Amount          string `json:"amount"`
	Fee             string `json:"fee"`
	Provider        string `json:"provider"`
	TransactionHash string `json:"transactionHash"`
	Timestamp       string `json:"timestamp"`
}

func (r *subgraphTransferRow) toEvent() TransferEvent {
	return TransferEvent{
		ID:            r.ID,
		MessageNonce:  r.MessageNonce,
		RemoteChainID: parseInt64(r.RemoteChainID),
		Sender:        r.Sender,
		Recipient:     r.Receiver,
		TokenAddress:  r.Token,
		Amount:        r.Amount,
		Fee:           r.Fee,
		Provider:      r.Provider,
		TxHash:        r.TransactionHash,
		Timestamp:     parseInt64(r.Timestamp),
	}
}

const subgraphTransferFields = `
	id
	nonce
	messageNonce
	remoteChainId
	sender
	receiver
	token
	amount
	fee
	provider
	transactionHash
	timestamp`

// QueryRecordInfo implements SourceAdapter.
func (a *SubgraphAdapter) QueryRecordInfo(ctx context.Context, cur RecordCursor) ([]TransferEvent, error) {
	document := `query ($nonce: BigInt!, $first: Int!) {
		transferRecords(first: $first, orderBy: nonce, orderDirection: asc, where: { nonce_gt: $nonce }) {` +
		subgraphTransferFields + `
		}
	}`
	var data struct {
		Rows []subgraphTransferRow `json:"transferRecords"`
	}
	vars := map[string]any{"nonce": strconv.FormatInt(cur.Nonce, 10), "first": cur.Limit}
	if err := a.source.query(ctx, "transferRecords", document, vars, &data); err != nil {
		return nil, err
	}
	events := make([]TransferEvent, 0, len(data.Rows))
	for i := range data.Rows {
		events = append(events, data.Rows[i].toEvent())
	}
	return events, nil
}

// QueryRecordByTxHash implements SourceAdapter.
func (a *SubgraphAdapter) QueryRecordByTxHash(ctx context.Context, txHash string) (*TransferEvent, error) {
	document := `query ($hash: Bytes!) {
		transferRecords(first: 1, where: { transactionHash: $hash }) {` +
		subgraphTransferFields + `
		}
	}`
	var data struct {
		Rows []subgraphTransferRow `json:"transferRecords"`
	}
	if err := a.source.query(ctx, "transferRecordByTxHash", document, map[string]any{"hash": txHash}, &data); err != nil {
		return nil, err
	}
	if len(data.Rows) == 0 {
		return nil, nil
	}
	event := data.Rows[0].toEvent()
	return &event, nil
}

type subgraphProviderRow struct {
	UpdateType       string `json:"updateType"`
	Nonce            string `json:"nonce"`
	Provider         string `json:"provider"`
	Token            string `json:"token"`
	BaseFee          string `json:"baseFee"`
	LiquidityFeeRate string `json:"liquidityFeeRate"`
	ProtocolFee      string `json:"protocolFee"`
	Amount           string `json:"amount"`
	Paused           bool   `json:"paused"`
	TransferLimit    string `json:"transferLimit"`
	WithdrawNonce    string `json:"withdrawNonce"`
	TransferID       string `json:"transferId"`
	TransactionHash  string `json:"transactionHash"`
	Timestamp        string `json:"timestamp"`
}

func (r *subgraphProviderRow) toUpdate() ProviderUpdate {
	return ProviderUpdate{
		Kind:             UpdateKind(r.UpdateType),
		Nonce:            parseInt64(r.Nonce),
		Provider:         r.Provider,
		TokenAddress:     r.Token,
		BaseFee:          r.BaseFee,
		LiquidityFeeRate: parseInt64(r.LiquidityFeeRate),
		ProtocolFee:      r.ProtocolFee,
		Amount:           r.Amount,
		Paused:           r.Paused,
		TransferLimit:    r.TransferLimit,
		WithdrawNonce:    parseInt64(r.WithdrawNonce),
		TransferID:       r.TransferID,
		TxHash:           r.TransactionHash,
		Timestamp:        parseInt64(r.Timestamp),
	}
}

const subgraphProviderFields = `
	updateType
	nonce
	provider
	token
	baseFee
	liquidityFeeRate
	protocolFee
	amount
	paused
	transferLimit
	withdrawNonce
	transferId
	transactionHash
	timestamp`

func (a *SubgraphAdapter) queryProviderUpdates(ctx context.Context, c *graphqlClient, cur ProviderCursor) ([]ProviderUpdate, error) {
	document := `query ($nonce: BigInt!, $first: Int!) {
		providerUpdates(first: $first, orderBy: nonce, orderDirection: asc, where: { nonce_gt: $nonce }) {` +
		subgraphProviderFields + `
		}
	}`
	var data struct {
		Rows []subgraphProviderRow `json:"providerUpdates"`
	}
	vars := map[string]any{"nonce": strconv.FormatInt(cur.Nonce, 10), "first": cur.Limit}
	if err := c.query(ctx, "providerUpdates", document, vars, &data); err != nil {
		return nil, err
	}
	updates := make([]ProviderUpdate, 0, len(data.Rows))
	for i := range data.Rows {
		updates = append(updates, data.Rows[i].toUpdate())
	}
	return updates, nil
}

// QueryProviderInfo implements SourceAdapter.
func (a *SubgraphAdapter) QueryProviderInfo(ctx context.Context, cur ProviderCursor) ([]ProviderUpdate, error) {
	return a.queryProviderUpdates(ctx, a.source, cur)
}

// QueryTargetProviderInfo implements SourceAdapter.
func (a *SubgraphAdapter) QueryTargetProviderInfo(ctx context.Context, cur ProviderCursor) ([]ProviderUpdate, error) {
	return a.queryProviderUpdates(ctx, a.target, cur)
}

type subgraphRelayRow struct {
	ID                 string `json:"id"`
	Relayer            string `json:"relayer"`
	Slasher            string `json:"slasher"`
	Fee                string `json:"fee"`
	TransactionHash    string `json:"transactionHash"`
	LiquidityWithdrawn bool   `json:"liquidityWithdrawn"`
	WithdrawTxHash     string `json:"withdrawTransactionHash"`
	Timestamp          string `json:"timestamp"`
}

func (r *subgraphRelayRow) toRelay() RelayRecord {
	return RelayRecord{
		TransferID:     r.ID,
		Relayer:        r.Relayer,
		Slasher:        r.Slasher,
		Fee:            r.Fee,
		TxHash:         r.TransactionHash,
		Withdrawn:      r.LiquidityWithdrawn,
		WithdrawTxHash: r.WithdrawTxHash,
		Timestamp:      parseInt64(r.Timestamp),
	}
}

const subgraphRelayFields = `
	id
	relayer
	slasher
	fee
	transactionHash
	liquidityWithdrawn
	withdrawTransactionHash
	timestamp`

// QueryRelayStatus implements SourceAdapter.
func (a *SubgraphAdapter) QueryRelayStatus(ctx context.Context, transferID string) (*RelayRecord, error) {
	document := `query ($id: ID!) {
		relayRecord(id: $id) {` +
		subgraphRelayFields + `
		}
	}`
	var data struct {
		Row *subgraphRelayRow `json:"relayRecord"`
	}
	if err := a.target.query(ctx, "relayRecord", document, map[string]any{"id": transferID}, &data); err != nil {
		return nil, err
	}
	if data.Row == nil {
		return nil, nil
	}
	relay := data.Row.toRelay()
	return &relay, nil
}

// QueryMultiRelayStatus implements SourceAdapter.
func (a *SubgraphAdapter) QueryMultiRelayStatus(ctx context.Context, transferIDs []string) ([]RelayRecord, error) {
	document := `query ($ids: [ID!]!) {
		relayRecords(where: { id_in: $ids }) {` +
		subgraphRelayFields + `
		}
	}`
	var data struct {
		Rows []subgraphRelayRow `json:"relayRecords"`
	}
	if err := a.target.query(ctx, "relayRecords", document, map[string]any{"ids": transferIDs}, &data); err != nil {
		return nil, err
	}
	return toRelays(data.Rows), nil
}

// BatchQueryRelayStatus implements SourceAdapter.
func (a *SubgraphAdapter) BatchQueryRelayStatus(ctx context.Context, cur FillCursor) ([]RelayRecord, error) {
	document := `query ($since: BigInt!, $first: Int!) {
		relayRecords(first: $first, orderBy: timestamp, orderDirection: asc, where: { timestamp_gt: $since }) {` +
		subgraphRelayFields + `
		}
	}`
	vars := map[string]any{"since": strconv.FormatInt(cur.Since, 10), "first": cur.Limit}
	var data struct {
		Rows []subgraphRelayRow `json:"relayRecords"`
	}
	if err := a.target.query(ctx, "relayRecordsByTimestamp", document, vars, &data); err != nil {
		return nil, err
	}
	return toRelays(data.Rows), nil
}

// QueryWithdrawStatus implements SourceAdapter.
func (a *SubgraphAdapter) QueryWithdrawStatus(ctx context.Context, transferID string) (*WithdrawStatus, error) {
	relay, err := a.QueryRelayStatus(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if relay == nil {
		return nil, nil
	}
	return &WithdrawStatus{
		TransferID: relay.TransferID,
		Confirmed:  relay.Withdrawn,
		TxHash:     relay.WithdrawTxHash,
		Timestamp:  relay.Timestamp,
	}, nil
}

type subgraphRefundRow struct {
	TransferID      string `json:"transferId"`
	TransactionHash string `json:"transactionHash"`
	Confirmed       bool   `json:"confirmed"`
	Success         bool   `json:"success"`
	Reason          string `json:"reason"`
	Timestamp       string `json:"timestamp"`
}

// QueryRefundResults implements SourceAdapter.
func (a *SubgraphAdapter) QueryRefundResults(ctx context.Context, transferID string) ([]RefundResult, error) {
	document := `query ($id: String!) {
		refundRecords(where: { transferId: $id }) {
			transferId
			transactionHash
			confirmed
			success
			reason
			timestamp
		}
	}`
	var data struct {
		Rows []subgraphRefundRow `json:"refundRecords"`
	}
	if err := a.source.query(ctx, "refundRecords", document, map[string]any{"id": transferID}, &data); err != nil {
		return nil, err
	}
	results := make([]RefundResult, 0, len(data.Rows))
	for _, row := range data.Rows {
		results = append(results, RefundResult{
			TransferID: row.TransferID,
			TxHash:     row.TransactionHash,
			Confirmed:  row.Confirmed,
			Success:    row.Success,
			Reason:     row.Reason,
			Timestamp:  parseInt64(row.Timestamp),
		})
	}
	return results, nil
}

func toRelays(rows []subgraphRelayRow) []RelayRecord {
	relays := make([]RelayRecord, 0, len(rows))
	for i := range rows {
		relays = append(relays, rows[i].toRelay())
	}
	return relays
}

// parseInt64 decodes a subgraph BigInt string, tolerating empty fields.
func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
