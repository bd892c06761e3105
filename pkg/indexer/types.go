// Package indexer wraps third-party blockchain indexer backends behind one
// query interface. Several backend dialects exist; they differ in pagination
// idiom and field naming but all speak HTTP POST with a query-language
// payload and return JSON.
package indexer

// TransferEvent is one transfer request observed on the source chain.
type TransferEvent struct {
	// ID is the protocol-native transfer id.
	ID            string
	MessageNonce  string
	RemoteChainID int64
	Sender        string
	Recipient     string
	TokenAddress  string
	Amount        string
	Fee           string
	// Provider is set by protocols that pin a liquidity provider at request
	// time; empty otherwise.
	Provider  string
	TxHash    string
	Timestamp int64
}

// RelayRecord is a destination-chain fill for a transfer.
type RelayRecord struct {
	TransferID string
	Relayer    string
	// Slasher is non-empty when the fill came from the slash path, meaning
	// the quoted provider failed to honor the transfer in time.
	Slasher string
	Fee     string
	TxHash  string
	// Withdrawn reports whether the provider's liquidity withdrawal has been
	// observed, for protocols where withdrawal is a separate step.
	Withdrawn      bool
	WithdrawTxHash string
	Timestamp      int64
}

// UpdateKind discriminates provider-configuration update events.
type UpdateKind string

const (
	UpdateFee      UpdateKind = "fee"
	UpdateMargin   UpdateKind = "margin"
	UpdateSlash    UpdateKind = "slash"
	UpdateWithdraw UpdateKind = "withdraw"
	UpdatePause    UpdateKind = "pause"
	UpdateLimit    UpdateKind = "limit"
)

// ProviderUpdate is one provider-configuration update event, from either the
// source-chain fee feed, the target-chain margin feed, or a combined feed.
type ProviderUpdate struct {
	Kind  UpdateKind
	Nonce int64

	Provider     string
	TokenAddress string

	BaseFee          string
	LiquidityFeeRate int64
	ProtocolFee      string

	// Amount carries the margin delta, slash amount or withdrawn amount in
	// the decimals of the chain the feed runs on.
	Amount string

	Paused        bool
	TransferLimit string
	WithdrawNonce int64

	// TransferID links a slash event to the transfer that triggered it.
	TransferID string

	TxHash    string
	Timestamp int64
}

// WithdrawStatus reports whether a fill's liquidity withdrawal confirmed.
type WithdrawStatus struct {
	TransferID string
	Confirmed  bool
	TxHash     string
	Timestamp  int64
}

// RefundResult is one observed refund attempt for a transfer on the source
// chain. An attempt can be confirmed yet rejected.
type RefundResult struct {
	TransferID string
	TxHash     string
	Confirmed  bool
	Success    bool
	Reason     string
	Timestamp  int64
}

// RecordCursor selects transfer events after an engine nonce.
type RecordCursor struct {
	Nonce int64
	Limit int
}

// ProviderCursor selects provider updates after an update nonce.
type ProviderCursor struct {
	Nonce int64
	Limit int
}

// FillCursor pages destination fills by timestamp for batch catch-up.
type FillCursor struct {
	Since int64
	Limit int
}
