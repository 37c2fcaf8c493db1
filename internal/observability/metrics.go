// Package observability exposes Prometheus metrics for saves and leaderboard edits.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/verte-zerg/sprintwatch/internal/leaderboard"
)

var (
	timesSaved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sprintwatch",
		Name:      "times_saved_total",
		Help:      "Stopwatch runs saved, by team.",
	}, []string{"team"})
	saveNotices = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sprintwatch",
		Name:      "save_notices_total",
		Help:      "Save attempts rejected with a user notice, by reason.",
	}, []string{"reason"})
	reconcileWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sprintwatch",
		Subsystem: "reconcile",
		Name:      "writes_total",
		Help:      "Rows written by leaderboard reconciliation, by operation.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(timesSaved, saveNotices, reconcileWrites)
}

// RecordSave counts a saved run.
func RecordSave(team string) {
	timesSaved.WithLabelValues(team).Inc()
}

// RecordNotice counts a rejected save.
func RecordNotice(reason string) {
	saveNotices.WithLabelValues(reason).Inc()
}

// RecordReconcile adds the writes of each result.
func RecordReconcile(results []leaderboard.Result) {
	for _, r := range results {
		reconcileWrites.WithLabelValues("delete").Add(float64(len(r.Deleted)))
		reconcileWrites.WithLabelValues("insert").Add(float64(len(r.Inserted)))
		reconcileWrites.WithLabelValues("update").Add(float64(len(r.Updated)))
	}
}
