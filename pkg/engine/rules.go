package engine

import (
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/internal/metrics"
	"github.com/chainsafe/bridge-reconciler/pkg/db"
	"github.com/chainsafe/bridge-reconciler/pkg/registry"
)

// transitions is the status table: for each current status, the set of
// statuses reachable from it. The pending -> pendingToConfirmRefund edge is
// additionally gated on the DirectConfirmRefund variant flag; all other edges
// apply to every variant.
var transitions = map[db.RecordStatus]map[db.RecordStatus]bool{
	db.StatusPending: {
		db.StatusSuccess:                true,
		db.StatusPendingToRefund:        true,
		db.StatusPendingToConfirmRefund: true, // DirectConfirmRefund variants only
	},
	db.StatusPendingToRefund: {
		db.StatusPendingToConfirmRefund: true,
		db.StatusRefunded:               true,
		db.StatusFailed:                 true,
	},
	db.StatusPendingToConfirmRefund: {
		db.StatusRefunded: true,
		db.StatusFailed:   true,
	},
}

// CanTransition reports whether a record may move between two statuses under
// a variant's flags.
func CanTransition(flags registry.Flags, from, to db.RecordStatus) bool {
	if from == to {
		return true
	}
	if !transitions[from][to] {
		return false
	}
	if from == db.StatusPending && to == db.StatusPendingToConfirmRefund && !flags.DirectConfirmRefund {
		return false
	}
	return true
}

// transition applies a status change to an in-memory record, enforcing the
// status table. An illegal transition leaves the record untouched, bumps the
// illegal-transition counter and returns false; the caller must not persist.
func (e *Engine) transition(route *registry.Route, rec *db.TransferRecord, to db.RecordStatus, reason string, logger *zap.Logger) bool {
	from := rec.Result
	if !CanTransition(route.VariantFlags(), from, to) {
		metrics.IllegalTransitions.WithLabelValues(route.ID(), string(from), string(to)).Inc()
		logger.Warn("Illegal status transition rejected",
			zap.String("record_id", rec.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return false
	}
	if from == to {
		return true
	}
	rec.Result = to
	if reason != "" {
		rec.Reason = reason
	}
	metrics.StatusTransitions.WithLabelValues(route.ID(), string(from), string(to)).Inc()
	logger.Info("Record status changed",
		zap.String("record_id", rec.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return true
}
