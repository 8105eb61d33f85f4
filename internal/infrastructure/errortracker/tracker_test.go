package errortracker

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	mu     sync.Mutex
	errors [][]any
}

func (*captureLogger) Info(string, ...any)  {}
func (*captureLogger) Debug(string, ...any) {}
func (*captureLogger) Warn(string, ...any)  {}
func (l *captureLogger) Error(_ string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, args)
}

func TestLogTracker(t *testing.T) {
	logger := &captureLogger{}
	tracker := NewLogTracker(logger, prometheus.NewRegistry())

	boom := errors.New("boom")
	tracker.CaptureError(boom, map[string]string{"pool": "main", "module": "evm-native"})
	tracker.CaptureError(nil, map[string]string{"module": "evm-native"})

	require.Len(t, logger.errors, 1)
	assert.Equal(t, []any{"module", "evm-native", "pool", "main", "error", boom}, logger.errors[0])
	assert.InDelta(t, 1, testutil.ToFloat64(tracker.errors.WithLabelValues("evm-native")), 0)
}
