package db

// RecordStatus represents the current state of a cross-chain transfer record.
type RecordStatus string

const (
	StatusPending                RecordStatus = "pending"
	StatusPendingToRefund        RecordStatus = "pendingToRefund"
	StatusPendingToConfirmRefund RecordStatus = "pendingToConfirmRefund"
	StatusSuccess                RecordStatus = "success"
	StatusRefunded               RecordStatus = "refunded"
	StatusFailed                 RecordStatus = "failed"
)

// Terminal reports whether a status admits no further transitions.
func (s RecordStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// TransferRecord is one cross-chain transfer as reported by a source-chain
// indexer and reconciled against the destination chain.
//
// The ID is deterministic (route id + bridge tag + protocol-native transfer
// id) so re-ingesting the same source event is a no-op. Nonce is the
// engine-assigned per-route cursor and is unrelated to any protocol-native
// sequence number; MessageNonce carries the native ordering key.
type TransferRecord struct {
	ID           string
	FromChain    string
	ToChain      string
	Bridge       string
	Nonce        int64
	MessageNonce string

	SendToken     string
	RecvToken     string
	SendTokenAddr string
	RecvTokenAddr string
	SendAmount    string
	RecvAmount    string
	Fee           string
	FeeToken      string

	Sender    string
	Recipient string
	Relayer   string
	Provider  string

	Result RecordStatus
	Reason string

	RequestTxHash  string
	ResponseTxHash string
	// EndTxHash is only set once the transfer is fully and irreversibly
	// settled. When liquidity withdrawal is a separate protocol step it lags
	// ResponseTxHash.
	EndTxHash string

	StartTime int64
	EndTime   int64

	NeedWithdrawLiquidity bool
	LastRequestWithdraw   int64
}

// RouteID returns the route identifier this record belongs to.
func (r *TransferRecord) RouteID() string {
	return r.FromChain + "-" + r.ToChain + "-" + r.Bridge
}

// RelayProviderInfo is one liquidity-provider quote/ledger entry, keyed by
// (route, provider address, source token address).
type RelayProviderInfo struct {
	ID        string
	RouteID   string
	FromChain string
	ToChain   string
	Bridge    string
	Provider  string
	SendToken string

	// Pricing. Margin is collateral posted on the target chain, stored in
	// source-chain decimals after conversion.
	BaseFee          string
	LiquidityFeeRate int64
	ProtocolFee      string
	Margin           string

	SlashCount    int64
	WithdrawNonce int64
	Paused        bool
	TransferLimit string

	// Cost and Profit accrue in source-token base units as transfers settle.
	Cost   string
	Profit string

	// Nonce and TargetNonce are the source/target provider-update cursors.
	Nonce       int64
	TargetNonce int64

	// LastTransferID is the most recent transfer serviced by this provider,
	// used as a checkpoint during reorg repair.
	LastTransferID string
}

// ProviderKey builds the deterministic id for a provider ledger entry.
func ProviderKey(routeID, provider, sendToken string) string {
	return routeID + "-" + provider + "-" + sendToken
}
