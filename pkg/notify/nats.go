// Package notify publishes settled transfer records to NATS for downstream
// consumers (statistics rollups, alerting). Delivery is at-most-once from
// the engine's point of view; consumers must tolerate gaps.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/pkg/config"
	"github.com/chainsafe/bridge-reconciler/pkg/db"
)

// SettledEvent is the wire payload for one settled transfer record.
type SettledEvent struct {
	EventID   string `json:"event_id"`
	RecordID  string `json:"record_id"`
	FromChain string `json:"from_chain"`
	ToChain   string `json:"to_chain"`
	Bridge    string `json:"bridge"`
	Result    string `json:"result"`
	Reason    string `json:"reason,omitempty"`

	SendToken  string `json:"send_token"`
	SendAmount string `json:"send_amount"`
	RecvAmount string `json:"recv_amount"`
	Fee        string `json:"fee"`

	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Relayer   string `json:"relayer,omitempty"`

	RequestTxHash string `json:"request_tx_hash"`
	EndTxHash     string `json:"end_tx_hash"`
	EndTime       int64  `json:"end_time"`

	PublishedAt int64 `json:"published_at"`
}

// Publisher sends settled-record events over a NATS connection.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher connects to NATS and returns a publisher. Reconnection is
// handled by the client; publishes during an outage are buffered or dropped
// by the library, never blocking a reconciliation cycle.
func NewPublisher(cfg config.NotifyConfig, logger *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(cfg.NatsURL,
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Publisher{conn: conn, subject: cfg.Subject, logger: logger}, nil
}

// RecordSettled publishes one settled record.
func (p *Publisher) RecordSettled(_ context.Context, rec *db.TransferRecord) error {
	event := SettledEvent{
		EventID:   uuid.NewString(),
		RecordID:  rec.ID,
		FromChain: rec.FromChain,
		ToChain:   rec.ToChain,
		Bridge:    rec.Bridge,
		Result:    string(rec.Result),
		Reason:    rec.Reason,

		SendToken:  rec.SendToken,
		SendAmount: rec.SendAmount,
		RecvAmount: rec.RecvAmount,
		Fee:        rec.Fee,

		Sender:    rec.Sender,
		Recipient: rec.Recipient,
		Relayer:   rec.Relayer,

		RequestTxHash: rec.RequestTxHash,
		EndTxHash:     rec.EndTxHash,
		EndTime:       rec.EndTime,

		PublishedAt: time.Now().Unix(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal settled event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish settled event: %w", err)
	}
	p.logger.Debug("Published settled record",
		zap.String("record_id", rec.ID),
		zap.String("subject", p.subject))
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("Failed to drain NATS connection", zap.Error(err))
	}
}
