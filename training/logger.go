package training

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MetricLogger receives every scalar the adapter logs. The metric names
// follow a fixed format consumed by downstream dashboards, so
// implementations must pass names through unchanged.
type MetricLogger interface {
	Log(name string, value float64)
}

// ZapMetricLogger writes metrics through a zap logger.
type ZapMetricLogger struct {
	log *zap.Logger
}

// NewZapMetricLogger wraps a zap logger; nil falls back to a no-op logger.
func NewZapMetricLogger(log *zap.Logger) *ZapMetricLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapMetricLogger{log: log}
}

// Log emits the metric as a structured entry.
func (z *ZapMetricLogger) Log(name string, value float64) {
	z.log.Info(name, zap.Float64("value", value))
}

// Recorder keeps every logged value in memory, keyed by metric name.
type Recorder struct {
	mu     sync.Mutex
	values map[string][]float64
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{values: make(map[string][]float64)}
}

// Log appends the value under the metric name.
func (r *Recorder) Log(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = append(r.values[name], value)
}

// Values returns all values logged under a name.
func (r *Recorder) Values(name string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.values[name]))
	copy(out, r.values[name])
	return out
}

// Last returns the most recent value logged under a name.
func (r *Recorder) Last(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vs := r.values[name]
	if len(vs) == 0 {
		return 0, false
	}
	return vs[len(vs)-1], true
}

// Names returns the sorted set of metric names seen so far.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tee fans every logged metric out to several loggers.
type Tee []MetricLogger

// Log forwards to every logger in the tee.
func (t Tee) Log(name string, value float64) {
	for _, l := range t {
		l.Log(name, value)
	}
}
