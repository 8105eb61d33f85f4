package errortracker

import (
	"sort"

	"balance_pool/internal/app/port"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LogTracker implements port.ErrorTracker by logging the error with its tags
// and counting it per module.
type LogTracker struct {
	logger port.Logger
	errors *prometheus.CounterVec
}

// NewLogTracker creates a LogTracker registering its counter on reg.
func NewLogTracker(logger port.Logger, reg prometheus.Registerer) *LogTracker {
	return &LogTracker{
		logger: logger,
		errors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "balance_tracked_errors_total",
			Help: "Unexpected errors reported to the error tracker.",
		}, []string{"module"}),
	}
}

// CaptureError implements port.ErrorTracker.
func (t *LogTracker) CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	t.errors.WithLabelValues(tags["module"]).Inc()

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, 2*len(keys)+2)
	for _, k := range keys {
		args = append(args, k, tags[k])
	}
	args = append(args, "error", err)
	t.logger.Error("Captured unexpected error", args...)
}
