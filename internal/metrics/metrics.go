package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// 1) Submission volume
	SubmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "submissions_total",
		Help: "Total number of practice-record submissions received.",
	})

	// 2) Rejections, partitioned by pipeline reason
	SubmissionsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_rejected_total",
		Help: "Submissions rejected by the validation pipeline, by reason.",
	}, []string{"reason"})

	// 3) Accepted writes
	RecordsInsertedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "records_inserted_total",
		Help: "Practice records persisted to the database.",
	})

	// 4) DB write latency
	DBWriteDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "db_write_duration_seconds",
		Help:    "Duration of INSERT into the records table.",
		Buckets: []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5},
	})

	// 5) Rate limiting drops
	RateLimitDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_dropped_total",
		Help: "Submissions rejected by the per-student rate limiter.",
	})

	// 6) Read volume
	LeaderboardRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leaderboard_requests_total",
		Help: "Leaderboard and stats read requests served.",
	})
)

func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		SubmissionsTotal,
		SubmissionsRejectedTotal,
		RecordsInsertedTotal,
		DBWriteDurationSeconds,
		RateLimitDroppedTotal,
		LeaderboardRequestsTotal,
	)
}
