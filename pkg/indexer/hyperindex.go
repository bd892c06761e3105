package indexer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// HyperindexAdapter speaks the Hasura-backed dialect some hosted indexers
// expose: capitalized entity roots, `limit`/`offset` pagination, `_gt`/`_eq`
// comparison operators and snake_case column names.
type HyperindexAdapter struct {
	source *graphqlClient
	target *graphqlClient
	logger *zap.Logger
}

// NewHyperindexAdapter builds a hyperindex-dialect adapter over a
// source-chain and a target-chain endpoint.
func NewHyperindexAdapter(sourceURL, targetURL string, timeout time.Duration, logger *zap.Logger) *HyperindexAdapter {
	return &HyperindexAdapter{
		source: newGraphQLClient(sourceURL, timeout, logger),
		target: newGraphQLClient(targetURL, timeout, logger),
		logger: logger,
	}
}

// Endpoint implements SourceAdapter.
func (a *HyperindexAdapter) Endpoint() string {
	return a.source.endpoint
}

type hyperindexTransferRow struct {
	ID            string `json:"id"`
	Nonce         int64  `json:"nonce"`
	MessageNonce  string `json:"message_nonce"`
	RemoteChainID int64  `json:"remote_chain_id"`
	Sender        string `json:"sender"`
	Receiver      string `json:"receiver"`
	Token         string `json:"token"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	Provider      string `json:"provider"`
	TxHash        string `json:"tx_hash"`
	Timestamp     int64  `json:"timestamp"`
}

func (r *hyperindexTransferRow) toEvent() TransferEvent {
	return TransferEvent{
		ID:            r.ID,
		MessageNonce:  r.MessageNonce,
		RemoteChainID: r.RemoteChainID,
		Sender:        r.Sender,
		Recipient:     r.Receiver,
		TokenAddress:  r.Token,
		Amount:        r.Amount,
		Fee:           r.Fee,
		Provider:      r.Provider,
		TxHash:        r.TxHash,
		Timestamp:     r.Timestamp,
	}
}

const hyperindexTransferFields = `
	id
	nonce
	message_nonce
	remote_chain_id
	sender
	receiver
	token
	amount
	fee
	provider
	tx_hash
	timestamp`

// QueryRecordInfo implements SourceAdapter.
func (a *HyperindexAdapter) QueryRecordInfo(ctx context.Context, cur RecordCursor) ([]TransferEvent, error) {
	document := `query ($nonce: bigint!, $limit: Int!) {
		TransferRecord(limit: $limit, order_by: { nonce: asc }, where: { nonce: { _gt: $nonce } }) {` +
		hyperindexTransferFields + `
		}
	}`
	var data struct {
		Rows []hyperindexTransferRow `json:"TransferRecord"`
	}
	vars := map[string]any{"nonce": cur.Nonce, "limit": cur.Limit}
	if err := a.source.query(ctx, "TransferRecord", document, vars, &data); err != nil {
		return nil, err
	}
	events := make([]TransferEvent, 0, len(data.Rows))
	for i := range data.Rows {
		events = append(events, data.Rows[i].toEvent())
	}
	return events, nil
}

// QueryRecordByTxHash implements SourceAdapter.
func (a *HyperindexAdapter) QueryRecordByTxHash(ctx context.Context, txHash string) (*TransferEvent, error) {
	document := `query ($hash: String!) {
		TransferRecord(limit: 1, where: { tx_hash: { _eq: $hash } }) {` +
		hyperindexTransferFields + `
		}
	}`
	var data struct {
		Rows []hyperindexTransferRow `json:"TransferRecord"`
	}
	if err := a.source.query(ctx, "TransferRecordByTxHash", document, map[string]any{"hash": txHash}, &data); err != nil {
		return nil, err
	}
	if len(data.Rows) == 0 {
		return nil, nil
	}
	event := data.Rows[0].toEvent()
	return &event, nil
}

type hyperindexProviderRow struct {
	UpdateType       string `json:"update_type"`
	Nonce            int64  `json:"nonce"`
	Provider         string `json:"provider"`
	Token            string `json:"token"`
	BaseFee          string `json:"base_fee"`
	LiquidityFeeRate int64  `json:"liquidity_fee_rate"`
	ProtocolFee      string `json:"protocol_fee"`
	Amount           string `json:"amount"`
	Paused           bool   `json:"paused"`
	TransferLimit    string `json:"transfer_limit"`
	WithdrawNonce    int64  `json:"withdraw_nonce"`
	TransferID       string `json:"transfer_id"`
	TxHash           string `json:"tx_hash"`
	Timestamp        int64  `json:"timestamp"`
}

func (r *hyperindexProviderRow) toUpdate() ProviderUpdate {
	return ProviderUpdate{
		Kind:             UpdateKind(r.UpdateType),
		Nonce:            r.Nonce,
		Provider:         r.Provider,
		TokenAddress:     r.Token,
		BaseFee:          r.BaseFee,
		LiquidityFeeRate: r.LiquidityFeeRate,
		ProtocolFee:      r.ProtocolFee,
		Amount:           r.Amount,
		Paused:           r.Paused,
		TransferLimit:    r.TransferLimit,
		WithdrawNonce:    r.WithdrawNonce,
		TransferID:       r.TransferID,
		TxHash:           r.TxHash,
		Timestamp:        r.Timestamp,
	}
}

const hyperindexProviderFields = `
	update_type
	nonce
	provider
	token
	base_fee
	liquidity_fee_rate
	protocol_fee
	amount
	paused
	transfer_limit
	withdraw_nonce
	transfer_id
	tx_hash
	timestamp`

func (a *HyperindexAdapter) queryProviderUpdates(ctx context.Context, c *graphqlClient, cur ProviderCursor) ([]ProviderUpdate, error) {
	document := `query ($nonce: bigint!, $limit: Int!) {
		ProviderUpdate(limit: $limit, order_by: { nonce: asc }, where: { nonce: { _gt: $nonce } }) {` +
		hyperindexProviderFields + `
		}
	}`
	var data struct {
		Rows []hyperindexProviderRow `json:"ProviderUpdate"`
	}
	vars := map[string]any{"nonce": cur.Nonce, "limit": cur.Limit}
	if err := c.query(ctx, "ProviderUpdate", document, vars, &data); err != nil {
		return nil, err
	}
	updates := make([]ProviderUpdate, 0, len(data.Rows))
	for i := range data.Rows {
		updates = append(updates, data.Rows[i].toUpdate())
	}
	return updates, nil
}

// QueryProviderInfo implements SourceAdapter.
func (a *HyperindexAdapter) QueryProviderInfo(ctx context.Context, cur ProviderCursor) ([]ProviderUpdate, error) {
	return a.queryProviderUpdates(ctx, a.source, cur)
}

// QueryTargetProviderInfo implements SourceAdapter.
func (a *HyperindexAdapter) QueryTargetProviderInfo(ctx context.Context, cur ProviderCursor) ([]ProviderUpdate, error) {
	return a.queryProviderUpdates(ctx, a.target, cur)
}

type hyperindexRelayRow struct {
	TransferID         string `json:"transfer_id"`
	Relayer            string `json:"relayer"`
	Slasher            string `json:"slasher"`
	Fee                string `json:"fee"`
	TxHash             string `json:"tx_hash"`
	LiquidityWithdrawn bool   `json:"liquidity_withdrawn"`
	WithdrawTxHash     string `json:"withdraw_tx_hash"`
	Timestamp          int64  `json:"timestamp"`
}

func (r *hyperindexRelayRow) toRelay() RelayRecord {
	return RelayRecord{
		TransferID:     r.TransferID,
		Relayer:        r.Relayer,
		Slasher:        r.Slasher,
		Fee:            r.Fee,
		TxHash:         r.TxHash,
		Withdrawn:      r.LiquidityWithdrawn,
		WithdrawTxHash: r.WithdrawTxHash,
		Timestamp:      r.Timestamp,
	}
}

const hyperindexRelayFields = `
	transfer_id
	relayer
	slasher
	fee
	tx_hash
	liquidity_withdrawn
	withdraw_tx_hash
	timestamp`

// QueryRelayStatus implements SourceAdapter.
func (a *HyperindexAdapter) QueryRelayStatus(ctx context.Context, transferID string) (*RelayRecord, error) {
	document := `query ($id: String!) {
		RelayRecord(limit: 1, where: { transfer_id: { _eq: $id } }) {` +
		hyperindexRelayFields + `
		}
	}`
	var data struct {
		Rows []hyperindexRelayRow `json:"RelayRecord"`
	}
	if err := a.target.query(ctx, "RelayRecord", document, map[string]any{"id": transferID}, &data); err != nil {
		return nil, err
	}
	if len(data.Rows) == 0 {
		return nil, nil
	}
	relay := data.Rows[0].toRelay()
	return &relay, nil
}

// QueryMultiRelayStatus implements SourceAdapter.
func (a *HyperindexAdapter) QueryMultiRelayStatus(ctx context.Context, transferIDs []string) ([]RelayRecord, error) {
	document := `query ($ids: [String!]!) {
		RelayRecord(where: { transfer_id: { _in: $ids } }) {` +
		hyperindexRelayFields + `
		}
	}`
	var data struct {
		Rows []hyperindexRelayRow `json:"RelayRecord"`
	}
	if err := a.target.query(ctx, "RelayRecordMulti", document, map[string]any{"ids": transferIDs}, &data); err != nil {
		return nil, err
	}
	return a.toRelays(data.Rows), nil
}

// BatchQueryRelayStatus implements SourceAdapter.
func (a *HyperindexAdapter) BatchQueryRelayStatus(ctx context.Context, cur FillCursor) ([]RelayRecord, error) {
	document := `query ($since: bigint!, $limit: Int!) {
		RelayRecord(limit: $limit, order_by: { timestamp: asc }, where: { timestamp: { _gt: $since } }) {` +
		hyperindexRelayFields + `
		}
	}`
	vars := map[string]any{"since": cur.Since, "limit": cur.Limit}
	var data struct {
		Rows []hyperindexRelayRow `json:"RelayRecord"`
	}
	if err := a.target.query(ctx, "RelayRecordByTimestamp", document, vars, &data); err != nil {
		return nil, err
	}
	return a.toRelays(data.Rows), nil
}

// QueryWithdrawStatus implements SourceAdapter.
func (a *HyperindexAdapter) QueryWithdrawStatus(ctx context.Context, transferID string) (*WithdrawStatus, error) {
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

type hyperindexRefundRow struct {
	TransferID string `json:"transfer_id"`
	TxHash     string `json:"tx_hash"`
	Confirmed  bool   `json:"confirmed"`
	Success    bool   `json:"success"`
	Reason     string `json:"reason"`
	Timestamp  int64  `json:"timestamp"`
}

// QueryRefundResults implements SourceAdapter.
func (a *HyperindexAdapter) QueryRefundResults(ctx context.Context, transferID string) ([]RefundResult, error) {
	document := `query ($id: String!) {
		RefundRecord(where: { transfer_id: { _eq: $id } }) {
			transfer_id
			tx_hash
			confirmed
			success
			reason
			timestamp
		}
	}`
	var data struct {
		Rows []hyperindexRefundRow `json:"RefundRecord"`
	}
	if err := a.source.query(ctx, "RefundRecord", document, map[string]any{"id": transferID}, &data); err != nil {
		return nil, err
	}
	results := make([]RefundResult, 0, len(data.Rows))
	for _, row := range data.Rows {
		results = append(results, RefundResult{
			TransferID: row.TransferID,
			TxHash:     row.TxHash,
			Confirmed:  row.Confirmed,
			Success:    row.Success,
			Reason:     row.Reason,
			Timestamp:  row.Timestamp,
		})
	}
	return results, nil
}

func (a *HyperindexAdapter) toRelays(rows []hyperindexRelayRow) []RelayRecord {
	relays := make([]RelayRecord, 0, len(rows))
	for i := range rows {
		relays = append(relays, rows[i].toRelay())
	}
	return relays
}
