package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// RelayProviderInfoDao is a data access object that maps directly to the
// 'relay_provider_info' table in PostgreSQL.
type RelayProviderInfoDao struct {
	bun.BaseModel `bun:"table:relay_provider_info,alias:rp"`

	ID        string `bun:"id,pk,type:varchar(256)"`
	RouteID   string `bun:"route_id,notnull,type:varchar(128)"`
	FromChain string `bun:"from_chain,notnull,type:varchar(32)"`
	ToChain   string `bun:"to_chain,notnull,type:varchar(32)"`
	Bridge    string `bun:"bridge,notnull,type:varchar(64)"`
	Provider  string `bun:"provider,notnull,type:varchar(128)"`
	SendToken string `bun:"send_token,notnull,type:varchar(128)"`

	BaseFee          string `bun:"base_fee,type:numeric(78,0)"`
	LiquidityFeeRate int64  `bun:"liquidity_fee_rate,use_zero"`
	ProtocolFee      string `bun:"protocol_fee,type:numeric(78,0)"`
	Margin           string `bun:"margin,type:numeric(78,0)"`

	SlashCount    int64  `bun:"slash_count,use_zero"`
	WithdrawNonce int64  `bun:"withdraw_nonce,use_zero"`
	Paused        bool   `bun:"paused,use_zero"`
	TransferLimit string `bun:"transfer_limit,type:numeric(78,0)"`

	Cost   string `bun:"cost,type:numeric(78,0)"`
	Profit string `bun:"profit,type:numeric(78,0)"`

	Nonce       int64 `bun:"nonce,use_zero"`
	TargetNonce int64 `bun:"target_nonce,use_zero"`

	LastTransferID string `bun:"last_transfer_id,type:varchar(256)"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}
