package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Deposit metrics
	DepositsRecorded prometheus.Counter
	DepositDuration  prometheus.Histogram

	// Checkpoint metrics
	CheckpointsOpened *prometheus.CounterVec

	// Share metrics
	SharesUpdated  *prometheus.CounterVec
	ShareTotalBps  *prometheus.GaugeVec
	PeriodsRolled  prometheus.Counter
	LockRejections prometheus.Counter

	// Withdrawal metrics
	WithdrawalsSettled prometheus.Counter
	WithdrawalDuration prometheus.Histogram

	// Database metrics
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections prometheus.Gauge
	DBErrors      *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec

	// Event journal metrics
	EventsPublished *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		DepositsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balanceshares_deposits_recorded_total",
			Help: "Total number of deposits recorded",
		}),
		DepositDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "balanceshares_deposit_duration_seconds",
			Help:    "Duration of deposit operations",
			Buckets: prometheus.DefBuckets,
		}),

		CheckpointsOpened: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanceshares_checkpoints_opened_total",
				Help: "Total checkpoints opened by reason",
			},
			[]string{"reason"},
		),

		SharesUpdated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanceshares_shares_updated_total",
				Help: "Total account share updates by kind",
			},
			[]string{"kind"},
		),
		ShareTotalBps: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "balanceshares_total_bps",
				Help: "Current total bps per balance share",
			},
			[]string{"client_id", "share_id"},
		),
		PeriodsRolled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balanceshares_periods_rolled_total",
			Help: "Total account share periods rolled over checkpoint boundaries",
		}),
		LockRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balanceshares_lock_rejections_total",
			Help: "Total share reductions rejected by the removable-at lock",
		}),

		WithdrawalsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balanceshares_withdrawals_settled_total",
			Help: "Total number of withdrawals settled",
		}),
		WithdrawalDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "balanceshares_withdrawal_duration_seconds",
			Help:    "Duration of withdrawal settlement",
			Buckets: prometheus.DefBuckets,
		}),

		DBQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanceshares_db_queries_total",
				Help: "Total database queries",
			},
			[]string{"operation", "table"},
		),
		DBDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "balanceshares_db_query_duration_seconds",
				Help:    "Database query duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "balanceshares_db_connections",
			Help: "Current number of database connections",
		}),
		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanceshares_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),

		RedisOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanceshares_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanceshares_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanceshares_events_published_total",
				Help: "Total ledger events published",
			},
			[]string{"event_type"},
		),
	}
}
