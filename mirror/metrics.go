package mirror

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// lastPushTimestamp is a Gauge that captures the timestamp of the last
	// successful push to the mirror
	lastPushTimestamp *prometheus.GaugeVec
	// pushCount is a Counter vector of mirror pushes
	pushCount *prometheus.CounterVec
	// pushLatency is a Histogram vector that keeps track of push durations
	pushLatency *prometheus.HistogramVec
)

// EnableMetrics will enable metrics collection for mirror pushes.
// Available metrics are...
//   - git_last_push_timestamp - (tags: repo,mirror)
//     A Gauge that captures the Timestamp of the last successful push per repo and mirror.
//   - git_push_count - (tags: repo,mirror,force,success)
//     A Counter for each push pass, tagged with the pass type and the result (success=true|false)
//   - git_push_latency_seconds - (tags: repo,mirror)
//     A Histogram that keeps track of the push latency per repo and mirror.
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	factory := promauto.With(registerer)

	lastPushTimestamp = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "git_last_push_timestamp",
		Help:      "Timestamp of the last successful push to the mirror",
	},
		[]string{
			// name of the repository
			"repo",
			// credential free mirror url
			"mirror",
		},
	)

	pushCount = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "git_push_count",
		Help:      "Count of mirror push operations",
	},
		[]string{
			// name of the repository
			"repo",
			// credential free mirror url
			"mirror",
			// Whether the pass was forced or not
			"force",
			// Whether the push was successful or not
			"success",
		},
	)

	pushLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "git_push_latency_seconds",
		Help:      "Latency for mirror push",
		Buckets:   []float64{0.5, 1, 5, 10, 20, 30, 60, 90, 120, 150, 300},
	},
		[]string{
			// name of the repository
			"repo",
			// credential free mirror url
			"mirror",
		},
	)
}

// recordPush records a push attempt by updating all the relevant metrics
func recordPush(repo, mirror string, force, success bool) {
	// if metrics not enabled return
	if lastPushTimestamp == nil || pushCount == nil {
		return
	}
	if success {
		lastPushTimestamp.With(prometheus.Labels{
			"repo":   repo,
			"mirror": mirror,
		}).Set(float64(time.Now().Unix()))
	}
	pushCount.With(prometheus.Labels{
		"repo":    repo,
		"mirror":  mirror,
		"force":   strconv.FormatBool(force),
		"success": strconv.FormatBool(success),
	}).Inc()
}

func updatePushLatency(repo, mirror string, start time.Time) {
	// if metrics not enabled return
	if pushLatency == nil {
		return
	}
	pushLatency.WithLabelValues(repo, mirror).Observe(time.Since(start).Seconds())
}
