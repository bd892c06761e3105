package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/internal/metrics"
	"github.com/chainsafe/bridge-reconciler/pkg/cursor"
	"github.com/chainsafe/bridge-reconciler/pkg/db"
	"github.com/chainsafe/bridge-reconciler/pkg/indexer"
	"github.com/chainsafe/bridge-reconciler/pkg/registry"
)

// ledgerSide distinguishes which chain a provider-update feed runs on; it
// decides cursor selection, token resolution and decimal conversion.
type ledgerSide int

const (
	sourceSide ledgerSide = iota
	targetSide
)

// syncLedger replays provider-configuration updates into the provider
// ledger. Split-feed variants run two cursor loops: fee/rate updates from the
// source chain and margin/withdraw/slash updates from the target chain.
// Combined-feed variants carry everything on the source feed. Each loop is
// cursor-driven like ingestion; an apply failure stops that loop without
// advancing its cursor, so the same update replays next cycle.
func (e *Engine) syncLedger(ctx context.Context, route *registry.Route, cur *cursor.SyncCursor, logger *zap.Logger) error {
	if cur.ProviderNonce == cursor.Uninitialized {
		nonce, err := e.store.MaxProviderNonce(ctx, route.ID())
		if err != nil {
			return fmt.Errorf("failed to seed provider cursor: %w", err)
		}
		cur.ProviderNonce = nonce
	}
	if err := e.replayProviderFeed(ctx, route, sourceSide, &cur.ProviderNonce, logger); err != nil {
		return err
	}
	if route.VariantFlags().CombinedProviderFeed {
		return nil
	}

	if cur.ProviderTargetNonce == cursor.Uninitialized {
		nonce, err := e.store.MaxProviderTargetNonce(ctx, route.ID())
		if err != nil {
			return fmt.Errorf("failed to seed target provider cursor: %w", err)
		}
		cur.ProviderTargetNonce = nonce
	}
	return e.replayProviderFeed(ctx, route, targetSide, &cur.ProviderTargetNonce, logger)
}

func (e *Engine) replayProviderFeed(ctx context.Context, route *registry.Route, side ledgerSide, nonce *int64, logger *zap.Logger) error {
	pageCursor := indexer.ProviderCursor{Nonce: *nonce, Limit: e.cfg.IngestPageSize}
	var (
		updates []indexer.ProviderUpdate
		err     error
	)
	if side == sourceSide {
		updates, err = e.adapter(route.ID()).QueryProviderInfo(ctx, pageCursor)
	} else {
		updates, err = e.adapter(route.ID()).QueryTargetProviderInfo(ctx, pageCursor)
	}
	if err != nil {
		return fmt.Errorf("failed to query provider updates: %w", err)
	}

	for i := range updates {
		upd := &updates[i]
		if err := e.applyProviderUpdate(ctx, route, side, upd, logger); err != nil {
			// Cursor stays put; the update replays next cycle.
			return fmt.Errorf("failed to apply provider update %d: %w", upd.Nonce, err)
		}
		*nonce = upd.Nonce
	}
	return nil
}

// applyProviderUpdate folds one update event into the provider ledger entry,
// creating the entry on first sight. Pause and transfer-limit changes are
// plain field overwrites. Unmapped token pairs skip but still advance.
func (e *Engine) applyProviderUpdate(ctx context.Context, route *registry.Route, side ledgerSide, upd *indexer.ProviderUpdate, logger *zap.Logger) error {
	var (
		tok *registry.TokenMapping
		ok  bool
	)
	if side == sourceSide {
		tok, ok = route.TokenByFromAddress(upd.TokenAddress)
	} else {
		tok, ok = route.TokenByToAddress(upd.TokenAddress)
	}
	if !ok {
		metrics.RecordsDropped.WithLabelValues(route.ID(), "unmapped_token").Inc()
		logger.Warn("Dropped provider update for unmapped token",
			zap.String("token", upd.TokenAddress),
			zap.Int64("update_nonce", upd.Nonce))
		return nil
	}

	provider := registry.NormalizeAddress(upd.Provider)
	id := db.ProviderKey(route.ID(), provider, tok.Symbol)
	info, err := e.store.Provider(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		info = newProviderInfo(route, provider, tok.Symbol)
	} else if err != nil {
		return fmt.Errorf("failed to load provider %s: %w", id, err)
	}

	// Margin lives in source-chain decimals; target-side amounts convert.
	amount := upd.Amount
	if side == targetSide && amount != "" {
		amount, err = registry.ConvertDecimals(amount, tok.ToDecimals, tok.FromDecimals)
		if err != nil {
			return fmt.Errorf("failed to convert update amount: %w", err)
		}
	}

	switch upd.Kind {
	case indexer.UpdateFee:
		info.BaseFee = upd.BaseFee
		info.LiquidityFeeRate = upd.LiquidityFeeRate
		if upd.ProtocolFee != "" {
			info.ProtocolFee = upd.ProtocolFee
		}
	case indexer.UpdateMargin:
		margin, err := addAmounts(info.Margin, amount)
		if err != nil {
			return fmt.Errorf("failed to apply margin delta: %w", err)
		}
		info.Margin = margin
	case indexer.UpdateSlash:
		margin, err := subAmounts(info.Margin, amount)
		if err != nil {
			return fmt.Errorf("failed to apply slash: %w", err)
		}
		info.Margin = margin
		info.SlashCount++
		metrics.ProviderSlashes.WithLabelValues(route.ID()).Inc()
		logger.Info("Provider slashed",
			zap.String("provider_id", id),
			zap.String("transfer_id", upd.TransferID),
			zap.Int64("slash_count", info.SlashCount))
	case indexer.UpdateWithdraw:
		margin, err := subAmounts(info.Margin, amount)
		if err != nil {
			return fmt.Errorf("failed to apply withdrawal: %w", err)
		}
		info.Margin = margin
		info.WithdrawNonce = upd.WithdrawNonce
	case indexer.UpdatePause:
		info.Paused = upd.Paused
	case indexer.UpdateLimit:
		info.TransferLimit = upd.TransferLimit
	default:
		logger.Warn("Unknown provider update kind, skipping",
			zap.String("kind", string(upd.Kind)),
			zap.Int64("update_nonce", upd.Nonce))
		return nil
	}

	if side == targetSide {
		info.TargetNonce = upd.Nonce
	} else {
		info.Nonce = upd.Nonce
	}

	if err := e.store.SaveProvider(ctx, info); err != nil {
		return fmt.Errorf("failed to save provider %s: %w", id, err)
	}
	return nil
}

func newProviderInfo(route *registry.Route, provider, sendToken string) *db.RelayProviderInfo {
	return &db.RelayProviderInfo{
		ID:        db.ProviderKey(route.ID(), provider, sendToken),
		RouteID:   route.ID(),
		FromChain: route.FromChain,
		ToChain:   route.ToChain,
		Bridge:    route.Bridge,
		Provider:  provider,
		SendToken: sendToken,

		BaseFee:       "0",
		ProtocolFee:   "0",
		Margin:        "0",
		TransferLimit: "0",
		Cost:          "0",
		Profit:        "0",
	}
}

func subAmounts(a, b string) (string, error) {
	left, err := parseAmount(a)
	if err != nil {
		return "", err
	}
	right, err := parseAmount(b)
	if err != nil {
		return "", err
	}
	return left.Sub(right).String(), nil
}
