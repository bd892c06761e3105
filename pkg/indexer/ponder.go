package indexer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PonderAdapter speaks the Ponder dialect: list queries wrap rows in an
// `items` container, paginate with `limit`, and filter through nested
// comparison objects (`where: { nonce: { gt: ... } }`). Integer columns come
// back as JSON numbers rather than strings.
type PonderAdapter struct {
	source *graphqlClient
	target *graphqlClient
	logger *zap.Logger
}

// NewPonderAdapter builds a ponder-dialect adapter over a source-chain and a
// target-chain endpoint.
func NewPonderAdapter(sourceURL, targetURL string, timeout time.Duration, logger *zap.Logger) *PonderAdapter {
	return &PonderAdapter{
		source: newGraphQLClient(sourceURL, timeout, logger),
		target: newGraphQLClient(targetURL, timeout, logger),
		logger: logger,
	}
}

// Endpoint implements SourceAdapter.
func (a *PonderAdapter) Endpoint() string {
	return a.source.endpoint
}

type ponderTransferRow struct {
	ID            string `json:"id"`
	Nonce         int64  `json:"nonce"`
	MessageNonce  string `json:"messageNonce"`
	RemoteChainID int64  `json:"remoteChainId"`
	Sender        string `json:"sender"`
	Receiver      string `json:"receiver"`
	Token         string `json:"token"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	Provider      string `json:"provider"`
	TxHash        string `json:"txHash"`
	Timestamp     int64  `json:"timestamp"`
}

func (r *ponderTransferRow) toEvent() TransferEvent {
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

const ponderTransferFields = `
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
	txHash
	timestamp`

// QueryRecordInfo implements SourceAdapter.
func (a *PonderAdapter) QueryRecordInfo(ctx context.Context, cur RecordCursor) ([]TransferEvent, error) {
	document := `query ($nonce: Int!, $limit: Int!) {
		transferEvents(limit: $limit, orderBy: "nonce", orderDirection: "asc", where: { nonce: { gt: $nonce } }) {
			items {` + ponderTransferFields + `
			}
		}
	}`
	var data struct {
		Container struct {
			Items []ponderTransferRow `json:"items"`
		} `json:"transferEvents"`
	}
	vars := map[string]any{"nonce": cur.Nonce, "limit": cur.Limit}
	if err := a.source.query(ctx, "transferEvents", document, vars, &data); err != nil {
		return nil, err
	}
	events := make([]TransferEvent, 0, len(data.Container.Items))
	for i := range data.Container.Items {
		events = append(events, data.Container.Items[i].toEvent())
	}
	return events, nil
}

// QueryRecordByTxHash implements SourceAdapter.
func (a *PonderAdapter) QueryRecordByTxHash(ctx context.Context, txHash string) (*TransferEvent, error) {
	document := `query ($hash: String!) {
		transferEvents(limit: 1, where: { txHash: { equals: $hash } }) {
			items {` + ponderTransferFields + `
			}
		}
	}`
	var data struct {
		Container struct {
			Items []ponderTransferRow `json:"items"`
		} `json:"transferEvents"`
	}
	if err := a.source.query(ctx, "transferEventByTxHash", document, map[string]any{"hash": txHash}, &data); err != nil {
		return nil, err
	}
	if len(data.Container.Items) == 0 {
		return nil, nil
	}
	event := data.Container.Items[0].toEvent()
	return &event, nil
}

type ponderProviderRow struct {
	UpdateType       string `json:"updateType"`
	Nonce            int64  `json:"nonce"`
	Provider         string `json:"provider"`
	Token            string `json:"token"`
	BaseFee          string `json:"baseFee"`
	LiquidityFeeRate int64  `json:"liquidityFeeRate"`
	ProtocolFee      string `json:"protocolFee"`
	Amount           string `json:"amount"`
	Paused           bool   `json:"paused"`
	TransferLimit    string `json:"transferLimit"`
	WithdrawNonce    int64  `json:"withdrawNonce"`
	TransferID       string `json:"transferId"`
	TxHash           string `json:"txHash"`
	Timestamp        int64  `json:"timestamp"`
}

func (r *ponderProviderRow) toUpdate() ProviderUpdate {
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

const ponderProviderFields = `
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
	txHash
	timestamp`

func (a *PonderAdapter) queryProviderUpdates(ctx context.Context, c *graphqlClient, cur ProviderCursor) ([]ProviderUpdate, error) {
	document := `query ($nonce: Int!, $limit: Int!) {
		providerUpdateEvents(limit: $limit, orderBy: "nonce", orderDirection: "asc", where: { nonce: { gt: $nonce } }) {
			items {` + ponderProviderFields + `
			}
		}
	}`
	var data struct {
		Container struct {
			Items []ponderProviderRow `json:"items"`
		} `json:"providerUpdateEvents"`
	}
	vars := map[string]any{"nonce": cur.Nonce, "limit": cur.Limit}
	if err := c.query(ctx, "providerUpdateEvents", document, vars, &data); err != nil {
		return nil, err
	}
	updates := make([]ProviderUpdate, 0, len(data.Container.Items))
	for i := range data.Container.Items {
		updates = append(updates, data.Container.Items[i].toUpdate())
	}
	return updates, nil
}

// QueryProviderInfo implements SourceAdapter.
func (a *PonderAdapter) QueryProviderInfo(ctx context.Context, cur ProviderCursor) ([]ProviderUpdate, error) {
	return a.queryProviderUpdates(ctx, a.source, cur)
}

// QueryTargetProviderInfo implements SourceAdapter.
func (a *PonderAdapter) QueryTargetProviderInfo(ctx context.Context, cur ProviderCursor) ([]ProviderUpdate, error) {
	return a.queryProviderUpdates(ctx, a.target, cur)
}

type ponderRelayRow struct {
	ID                 string `json:"id"`
	Relayer            string `json:"relayer"`
	Slasher            string `json:"slasher"`
	Fee                string `json:"fee"`
	TxHash             string `json:"txHash"`
	LiquidityWithdrawn bool   `json:"liquidityWithdrawn"`
	WithdrawTxHash     string `json:"withdrawTxHash"`
	Timestamp          int64  `json:"timestamp"`
}

func (r *ponderRelayRow) toRelay() RelayRecord {
	return RelayRecord{
		TransferID:     r.ID,
		Relayer:        r.Relayer,
		Slasher:        r.Slasher,
		Fee:            r.Fee,
		TxHash:         r.TxHash,
		Withdrawn:      r.LiquidityWithdrawn,
		WithdrawTxHash: r.WithdrawTxHash,
		Timestamp:      r.Timestamp,
	}
}

const ponderRelayFields = `
	id
	relayer
	slasher
	fee
	txHash
	liquidityWithdrawn
	withdrawTxHash
	timestamp`

// QueryRelayStatus implements SourceAdapter.
func (a *PonderAdapter) QueryRelayStatus(ctx context.Context, transferID string) (*RelayRecord, error) {
	document := `query ($id: String!) {
		relayEvent(id: $id) {` + ponderRelayFields + `
		}
	}`
	var data struct {
		Row *ponderRelayRow `json:"relayEvent"`
	}
	if err := a.target.query(ctx, "relayEvent", document, map[string]any{"id": transferID}, &data); err != nil {
		return nil, err
	}
	if data.Row == nil {
		return nil, nil
	}
	relay := data.Row.toRelay()
	return &relay, nil
}

// QueryMultiRelayStatus implements SourceAdapter.
func (a *PonderAdapter) QueryMultiRelayStatus(ctx context.Context, transferIDs []string) ([]RelayRecord, error) {
	document := `query ($ids: [String!]!) {
		relayEvents(where: { id: { in: $ids } }) {
			items {` + ponderRelayFields + `
			}
		}
	}`
	var data struct {
		Container struct {
			Items []ponderRelayRow `json:"items"`
		} `json:"relayEvents"`
	}
	if err := a.target.query(ctx, "relayEvents", document, map[string]any{"ids": transferIDs}, &data); err != nil {
		return nil, err
	}
	return a.toRelays(data.Container.Items), nil
}

// BatchQueryRelayStatus implements SourceAdapter.
func (a *PonderAdapter) BatchQueryRelayStatus(ctx context.Context, cur FillCursor) ([]RelayRecord, error) {
	document := `query ($since: Int!, $limit: Int!) {
		relayEvents(limit: $limit, orderBy: "timestamp", orderDirection: "asc", where: { timestamp: { gt: $since } }) {
			items {` + ponderRelayFields + `
			}
		}
	}`
	vars := map[string]any{"since": cur.Since, "limit": cur.Limit}
	var data struct {
		Container struct {
			Items []ponderRelayRow `json:"items"`
		} `json:"relayEvents"`
	}
	if err := a.target.query(ctx, "relayEventsByTimestamp", document, vars, &data); err != nil {
		return nil, err
	}
	return a.toRelays(data.Container.Items), nil
}

// QueryWithdrawStatus implements SourceAdapter.
func (a *PonderAdapter) QueryWithdrawStatus(ctx context.Context, transferID string) (*WithdrawStatus, error) {
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

type ponderRefundRow struct {
	TransferID string `json:"transferId"`
	TxHash     string `json:"txHash"`
	Confirmed  bool   `json:"confirmed"`
	Success    bool   `json:"success"`
	Reason     string `json:"reason"`
	Timestamp  int64  `json:"timestamp"`
}

// QueryRefundResults implements SourceAdapter.
func (a *PonderAdapter) QueryRefundResults(ctx context.Context, transferID string) ([]RefundResult, error) {
	document := `query ($id: String!) {
		refundEvents(where: { transferId: { equals: $id } }) {
			items {
				transferId
				txHash
				confirmed
				success
				reason
				timestamp
			}
		}
	}`
	var data struct {
		Container struct {
			Items []ponderRefundRow `json:"items"`
		} `json:"refundEvents"`
	}
	if err := a.source.query(ctx, "refundEvents", document, map[string]any{"id": transferID}, &data); err != nil {
		return nil, err
	}
	results := make([]RefundResult, 0, len(data.Container.Items))
	for _, row := range data.Container.Items {
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

func (a *PonderAdapter) toRelays(rows []ponderRelayRow) []RelayRecord {
	relays := make([]RelayRecord, 0, len(rows))
	for i := range rows {
		relays = append(relays, rows[i].toRelay())
	}
	return relays
}
