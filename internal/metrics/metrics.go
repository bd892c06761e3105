package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsIngested counts transfer records created per route.
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_records_ingested_total",
			Help: "Total number of transfer records ingested",
		},
		[]string{"route"},
	)

	// RecordsDropped counts source events skipped during ingestion. A rising
	// unmapped_token count means the route registry has a gap.
	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_records_dropped_total",
			Help: "Total number of source events dropped without a record",
		},
		[]string{"route", "reason"},
	)

	// StatusTransitions counts record status transitions.
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_status_transitions_total",
			Help: "Total number of transfer record status transitions",
		},
		[]string{"route", "from", "to"},
	)

	// IllegalTransitions counts transitions rejected by the status table.
	IllegalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_illegal_transitions_total",
			Help: "Total number of status transitions rejected as illegal",
		},
		[]string{"route", "from", "to"},
	)

	// ReorgRepairs counts stale records replaced after a chain reorg.
	ReorgRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_reorg_repairs_total",
			Help: "Total number of records repaired after a reorg",
		},
		[]string{"route"},
	)

	// IndexerErrors counts failed indexer queries per source.
	IndexerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_indexer_errors_total",
			Help: "Total number of failed indexer queries",
		},
		[]string{"endpoint", "query"},
	)

	// ResolverDisagreements counts multi-indexer queries where configured
	// sources returned differing element counts.
	ResolverDisagreements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_resolver_disagreement_total",
			Help: "Total number of multi-indexer queries with diverging responses",
		},
		[]string{"route"},
	)

	// CyclesSkipped counts scheduler firings skipped because the previous
	// cycle for the route was still running.
	CyclesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_cycles_skipped_total",
			Help: "Total number of reconciliation cycles skipped by the reentrancy guard",
		},
		[]string{"route"},
	)

	// CycleDuration tracks how long one reconciliation cycle takes.
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconciler_cycle_duration_seconds",
			Help:    "Reconciliation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// PendingRecords tracks not-yet-terminal records per route.
	PendingRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reconciler_pending_records",
			Help: "Number of pending transfer records by route",
		},
		[]string{"route"},
	)

	// CursorNonce tracks the ingestion cursor position per route.
	CursorNonce = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reconciler_cursor_nonce",
			Help: "Latest ingested engine nonce by route",
		},
		[]string{"route"},
	)

	// ProviderSlashes counts provider slash events applied to the ledger.
	ProviderSlashes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_provider_slashes_total",
			Help: "Total number of provider slash events applied",
		},
		[]string{"route"},
	)
)
