package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks chain RPC attempts per operation
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeper_rpc_calls_total",
			Help: "Total number of chain RPC call attempts",
		},
		[]string{"op"},
	)

	// RPCErrorsTotal tracks failed RPC attempts by classification
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeper_rpc_errors_total",
			Help: "Total number of failed chain RPC call attempts",
		},
		[]string{"op", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweeper_rpc_latency_seconds",
			Help:    "Chain RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// SweepOutcomesTotal counts per-asset sweep outcomes
	SweepOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeper_outcomes_total",
			Help: "Total number of sweep outcomes by asset and status",
		},
		[]string{"asset", "status"},
	)

	// SweptAmount accumulates swept base units per asset
	SweptAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeper_swept_amount_total",
			Help: "Total swept amount in whole units",
		},
		[]string{"asset"},
	)

	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeper_runs_total",
			Help: "Total number of sweep runs by result",
		},
		[]string{"result"},
	)

	SweepRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweeper_run_duration_seconds",
			Help:    "Duration of a full sweep run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// SweepLastRunTimestamp is the unix time of the last finished run
	SweepLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sweeper_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last finished sweep run",
		},
	)

	// WalletsTotal tracks the number of custodial wallets in the ledger
	WalletsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sweeper_wallets",
			Help: "Number of custodial wallets in the ledger",
		},
	)

	WalletsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_wallets_created_total",
			Help: "Total number of custodial wallets created",
		},
	)

	WalletFundingErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_wallet_funding_errors_total",
			Help: "Total number of failed initial wallet fundings",
		},
	)

	// LedgerCorruptionsTotal counts unparsable ledger reads recovered as empty
	LedgerCorruptionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_ledger_corruptions_total",
			Help: "Total number of corrupted ledger reads",
		},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweeper_db_query_duration_seconds",
			Help:    "Ledger database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// DBConnectionPoolUsage is open connections as a percentage of the pool limit
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sweeper_db_connection_pool_usage_percent",
			Help: "Ledger database connection pool usage",
		},
	)

	// NATSConnectionStatus is 1 while the event publisher is connected
	NATSConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sweeper_nats_connection_status",
			Help: "NATS connection status (1 connected, 0 disconnected)",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeper_events_published_total",
			Help: "Total number of published events by subject and result",
		},
		[]string{"subject", "result"},
	)
)
