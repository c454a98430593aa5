package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Post-commit side effects (journal posting, notifications, fiscal
// submission) are best-effort: their failures never roll back a committed
// business transaction, so they must be visible somewhere. This package is
// the single owner of that visibility.

var sideEffectFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pos_side_effect_failures_total",
		Help: "Failures of best-effort post-commit side effects, by kind.",
	},
	[]string{"kind"},
)

const recentFailureLimit = 100

// FailureRecord is one entry of the bounded recent-failure queue.
type FailureRecord struct {
	Kind       string    `json:"kind"`
	Reference  string    `json:"reference"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}

type failureQueue struct {
	mu      sync.Mutex
	records []FailureRecord
}

var recent failureQueue

// RecordSideEffectFailure counts a best-effort failure and retains it in the
// bounded queue for inspection. Oldest entries are dropped at the limit.
func RecordSideEffectFailure(kind, reference string, err error) {
	sideEffectFailures.WithLabelValues(kind).Inc()

	recent.mu.Lock()
	defer recent.mu.Unlock()
	recent.records = append(recent.records, FailureRecord{
		Kind:       kind,
		Reference:  reference,
		Error:      err.Error(),
		OccurredAt: time.Now().UTC(),
	})
	if len(recent.records) > recentFailureLimit {
		recent.records = recent.records[len(recent.records)-recentFailureLimit:]
	}
}

// RecentFailures returns a copy of the queue, newest last.
func RecentFailures() []FailureRecord {
	recent.mu.Lock()
	defer recent.mu.Unlock()
	out := make([]FailureRecord, len(recent.records))
	copy(out, recent.records)
	return out
}
