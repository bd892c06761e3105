package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/chainsafe/bridge-reconciler/pkg/db/dao"
)

var (
	// ErrDuplicateRecord is returned when a create collides with an existing
	// primary key. Re-ingesting an already-persisted event hits this and the
	// caller treats it as a no-op.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrNotFound is returned by single-row lookups with no match.
	ErrNotFound = errors.New("record not found")
)

// RouteFilter narrows record queries to one configured route.
type RouteFilter struct {
	FromChain string
	ToChain   string
	Bridge    string
}

// Store provides PostgreSQL-backed persistence for transfer records and
// relay provider ledgers.
type Store struct {
	db *bun.DB
}

// NewStore creates a store on top of an established bun connection.
func NewStore(bdb *bun.DB) *Store {
	return &Store{db: bdb}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func routeWhere(q *bun.SelectQuery, route RouteFilter) *bun.SelectQuery {
	return q.Where("from_chain = ?", route.FromChain).
		Where("to_chain = ?", route.ToChain).
		Where("bridge = ?", route.Bridge)
}

// CreateRecord inserts a new transfer record. A primary-key collision is
// reported as ErrDuplicateRecord.
func (s *Store) CreateRecord(ctx context.Context, rec *TransferRecord) error {
	model := toTransferRecordDao(rec)
	_, err := s.db.NewInsert().Model(model).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRecord
		}
		return fmt.Errorf("failed to create transfer record: %w", err)
	}
	return nil
}

// RecordByID fetches one transfer record by its deterministic id.
func (s *Store) RecordByID(ctx context.Context, id string) (*TransferRecord, error) {
	model := new(dao.TransferRecordDao)
	err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transfer record: %w", err)
	}
	return toTransferRecord(model), nil
}

// LatestNonce returns the highest engine nonce persisted for a route, or 0
// when the route has no records yet.
func (s *Store) LatestNonce(ctx context.Context, route RouteFilter) (int64, error) {
	model := new(dao.TransferRecordDao)
	err := routeWhere(s.db.NewSelect().Model(model), route).
		Order("nonce DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get latest nonce: %w", err)
	}
	return model.Nonce, nil
}

// UnsettledRecords pages through records that have no end transaction yet and
// are not parked waiting for liquidity withdrawal, oldest nonce first.
func (s *Store) UnsettledRecords(ctx context.Context, route RouteFilter, skip, take int) ([]*TransferRecord, error) {
	var models []dao.TransferRecordDao
	err := routeWhere(s.db.NewSelect().Model(&models), route).
		Where("end_tx_hash = ''").
		Where("need_withdraw_liquidity = FALSE").
		Where("result NOT IN (?)", bun.In([]string{string(StatusRefunded), string(StatusFailed)})).
		Order("nonce ASC").
		Offset(skip).
		Limit(take).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsettled records: %w", err)
	}
	return toRecords(models), nil
}

// WithdrawWaitingRecords lists successful fills still waiting for the
// provider's liquidity withdrawal to confirm.
func (s *Store) WithdrawWaitingRecords(ctx context.Context, route RouteFilter, take int) ([]*TransferRecord, error) {
	var models []dao.TransferRecordDao
	err := routeWhere(s.db.NewSelect().Model(&models), route).
		Where("need_withdraw_liquidity = TRUE").
		Where("end_tx_hash = ''").
		Order("nonce ASC").
		Limit(take).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdraw-waiting records: %w", err)
	}
	return toRecords(models), nil
}

// OldestPendingAbove returns the oldest still-pending record with a nonce
// strictly greater than the given watermark, or ErrNotFound.
func (s *Store) OldestPendingAbove(ctx context.Context, route RouteFilter, nonce int64) (*TransferRecord, error) {
	model := new(dao.TransferRecordDao)
	err := routeWhere(s.db.NewSelect().Model(model), route).
		Where("result = ?", string(StatusPending)).
		Where("nonce > ?", nonce).
		Order("nonce ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get oldest pending record: %w", err)
	}
	return toTransferRecord(model), nil
}

// RecordByIDSuffix finds the route's record whose id ends with the given
// protocol-native transfer id. Batch relay responses only carry the native
// id, so matching is by suffix.
func (s *Store) RecordByIDSuffix(ctx context.Context, route RouteFilter, suffix string) (*TransferRecord, error) {
	model := new(dao.TransferRecordDao)
	err := routeWhere(s.db.NewSelect().Model(model), route).
		Where("id LIKE ?", "%"+suffix).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find record by id suffix: %w", err)
	}
	return toTransferRecord(model), nil
}

// OldestUnsettledStartTime returns the start time of the route's oldest
// record without an end transaction, or 0 when everything is settled.
func (s *Store) OldestUnsettledStartTime(ctx context.Context, route RouteFilter) (int64, error) {
	model := new(dao.TransferRecordDao)
	err := routeWhere(s.db.NewSelect().Model(model), route).
		Where("end_tx_hash = ''").
		Order("start_time ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get oldest unsettled start time: %w", err)
	}
	return model.StartTime, nil
}

// UpdateRecord persists the full mutable state of a record by id.
func (s *Store) UpdateRecord(ctx context.Context, rec *TransferRecord) error {
	model := toTransferRecordDao(rec)
	model.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().
		Model(model).
		WherePK().
		ExcludeColumn("created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update transfer record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRecord removes a record by id. Only reorg repair deletes records.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().
		Model((*dao.TransferRecordDao)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete transfer record: %w", err)
	}
	return nil
}

// ListRecords serves the read API: most recent records for a route first.
func (s *Store) ListRecords(ctx context.Context, route RouteFilter, skip, take int) ([]*TransferRecord, error) {
	var models []dao.TransferRecordDao
	q := s.db.NewSelect().Model(&models)
	if route.FromChain != "" {
		q = q.Where("from_chain = ?", route.FromChain)
	}
	if route.ToChain != "" {
		q = q.Where("to_chain = ?", route.ToChain)
	}
	if route.Bridge != "" {
		q = q.Where("bridge = ?", route.Bridge)
	}
	err := q.Order("start_time DESC").Offset(skip).Limit(take).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer records: %w", err)
	}
	return toRecords(models), nil
}

// CountPending returns the number of not-yet-terminal records on a route.
func (s *Store) CountPending(ctx context.Context, route RouteFilter) (int, error) {
	count, err := routeWhere(s.db.NewSelect().Model((*dao.TransferRecordDao)(nil)), route).
		Where("result NOT IN (?)", bun.In([]string{
			string(StatusSuccess), string(StatusRefunded), string(StatusFailed),
		})).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}
	return count, nil
}

// Provider fetches one provider ledger entry by key.
func (s *Store) Provider(ctx context.Context, id string) (*RelayProviderInfo, error) {
	model := new(dao.RelayProviderInfoDao)
	err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get provider info: %w", err)
	}
	return toRelayProviderInfo(model), nil
}

// SaveProvider inserts or fully replaces a provider ledger entry.
func (s *Store) SaveProvider(ctx context.Context, info *RelayProviderInfo) error {
	model := toRelayProviderInfoDao(info)
	model.UpdatedAt = time.Now()
	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("base_fee = EXCLUDED.base_fee").
		Set("liquidity_fee_rate = EXCLUDED.liquidity_fee_rate").
		Set("protocol_fee = EXCLUDED.protocol_fee").
		Set("margin = EXCLUDED.margin").
		Set("slash_count = EXCLUDED.slash_count").
		Set("withdraw_nonce = EXCLUDED.withdraw_nonce").
		Set("paused = EXCLUDED.paused").
		Set("transfer_limit = EXCLUDED.transfer_limit").
		Set("cost = EXCLUDED.cost").
		Set("profit = EXCLUDED.profit").
		Set("nonce = EXCLUDED.nonce").
		Set("target_nonce = EXCLUDED.target_nonce").
		Set("last_transfer_id = EXCLUDED.last_transfer_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save provider info: %w", err)
	}
	return nil
}

// MaxProviderNonce returns the route's highest applied source-chain provider
// update nonce, used to rebuild the ledger cursor at startup.
func (s *Store) MaxProviderNonce(ctx context.Context, routeID string) (int64, error) {
	return s.maxProviderColumn(ctx, routeID, "nonce")
}

// MaxProviderTargetNonce is MaxProviderNonce for the target-chain feed.
func (s *Store) MaxProviderTargetNonce(ctx context.Context, routeID string) (int64, error) {
	return s.maxProviderColumn(ctx, routeID, "target_nonce")
}

func (s *Store) maxProviderColumn(ctx context.Context, routeID, column string) (int64, error) {
	var max sql.NullInt64
	err := s.db.NewSelect().
		Model((*dao.RelayProviderInfoDao)(nil)).
		ColumnExpr("MAX(?)", bun.Ident(column)).
		Where("route_id = ?", routeID).
		Scan(ctx, &max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max provider %s: %w", column, err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// ProvidersByRoute lists all provider ledger entries on a route.
func (s *Store) ProvidersByRoute(ctx context.Context, routeID string) ([]*RelayProviderInfo, error) {
	var models []dao.RelayProviderInfoDao
	err := s.db.NewSelect().
		Model(&models).
		Where("route_id = ?", routeID).
		Order("provider ASC", "send_token ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	out := make([]*RelayProviderInfo, 0, len(models))
	for i := range models {
		out = append(out, toRelayProviderInfo(&models[i]))
	}
	return out, nil
}

func toRecords(models []dao.TransferRecordDao) []*TransferRecord {
	out := make([]*TransferRecord, 0, len(models))
	for i := range models {
		out = append(out, toTransferRecord(&models[i]))
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}
