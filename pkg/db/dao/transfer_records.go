package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// TransferRecordDao is a data access object that maps directly to the
// 'transfer_records' table in PostgreSQL.
type TransferRecordDao struct {
	bun.BaseModel `bun:"table:transfer_records,alias:tr"`

	ID           string `bun:"id,pk,type:varchar(256)"`
	FromChain    string `bun:"from_chain,notnull,type:varchar(32)"`
	ToChain      string `bun:"to_chain,notnull,type:varchar(32)"`
	Bridge       string `bun:"bridge,notnull,type:varchar(64)"`
	Nonce        int64  `bun:"nonce,notnull"`
	MessageNonce string `bun:"message_nonce,type:varchar(128)"`

	SendToken     string `bun:"send_token,type:varchar(32)"`
	RecvToken     string `bun:"recv_token,type:varchar(32)"`
	SendTokenAddr string `bun:"send_token_addr,type:varchar(128)"`
	RecvTokenAddr string `bun:"recv_token_addr,type:varchar(128)"`
	SendAmount    string `bun:"send_amount,notnull,type:numeric(78,0)"`
	RecvAmount    string `bun:"recv_amount,type:numeric(78,0)"`
	Fee           string `bun:"fee,type:numeric(78,0)"`
	FeeToken      string `bun:"fee_token,type:varchar(32)"`

	Sender    string `bun:"sender,notnull,type:varchar(128)"`
	Recipient string `bun:"recipient,notnull,type:varchar(128)"`
	Relayer   string `bun:"relayer,type:varchar(128)"`
	Provider  string `bun:"provider,type:varchar(256)"`

	Result string `bun:"result,notnull,type:varchar(32)"`
	Reason string `bun:"reason,type:text"`

	RequestTxHash  string `bun:"request_tx_hash,notnull,type:varchar(128)"`
	ResponseTxHash string `bun:"response_tx_hash,type:varchar(128)"`
	EndTxHash      string `bun:"end_tx_hash,type:varchar(128)"`

	StartTime int64 `bun:"start_time,notnull"`
	EndTime   int64 `bun:"end_time,use_zero"`

	NeedWithdrawLiquidity bool  `bun:"need_withdraw_liquidity,use_zero"`
	LastRequestWithdraw   int64 `bun:"last_request_withdraw,use_zero"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}
