package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sensor-collector/pkg/sensor"
)

const collectorLabel = "sensor"

// Exposition serves the Prometheus text format, collecting a fresh snapshot
// on every request. Requests are serialized: a scrape that arrives while
// another is collecting waits for it and then collects again.
type Exposition struct {
	mu       sync.Mutex
	source   sensor.Snapshotter
	reg      Registers
	factory  *MetricFactory
	gauges   map[string]prometheus.Gauge
	handler  http.Handler
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	logger   *zap.Logger
	process  bool
	stopped  bool
}

// ExpositionOption configures an Exposition.
type ExpositionOption func(*Exposition)

// WithRegistry uses reg instead of a fresh registry.
func WithRegistry(reg Registers) ExpositionOption {
	return func(e *Exposition) { e.reg = reg }
}

// WithLogger sets the exposition logger.
func WithLogger(l *zap.Logger) ExpositionOption {
	return func(e *Exposition) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithoutProcessMetrics leaves the process collector out of the registry.
func WithoutProcessMetrics() ExpositionOption {
	return func(e *Exposition) { e.process = false }
}

// NewExposition registers the self metrics and, unless disabled, the
// process collector.
func NewExposition(source sensor.Snapshotter, opts ...ExpositionOption) *Exposition {
	e := &Exposition{
		source:  source,
		gauges:  make(map[string]prometheus.Gauge),
		logger:  zap.NewNop(),
		process: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reg == nil {
		e.reg = NewPromRegistry(nil)
	}
	if e.process {
		// 仅注册进程指标，不注册Go指标
		e.reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	e.factory = NewMetricFactory(e.reg)
	e.duration = e.factory.NewAgentCollectDurationSeconds()
	e.errors = e.factory.NewAgentCollectErrorsTotal()
	e.handler = promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(e.logger),
		ErrorHandling: promhttp.ContinueOnError,
	})
	return e
}

// Registry returns the registry rendered by ServeHTTP.
func (e *Exposition) Registry() Registers { return e.reg }

func (e *Exposition) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		http.Error(w, "exposition stopped", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	snap, err := e.source.Snapshot(r.Context())
	e.duration.WithLabelValues(collectorLabel).Observe(time.Since(start).Seconds())
	if err != nil {
		e.errors.WithLabelValues(collectorLabel).Inc()
		e.logger.Warn("scrape collection failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	e.update(snap)
	e.handler.ServeHTTP(w, r)
}

// update sets one gauge per key, registering new keys and unregistering
// keys absent from snap. A key seen twice in one snapshot keeps its first value.
func (e *Exposition) update(snap sensor.Snapshot) {
	seen := make(map[string]struct{}, len(snap.Readings))
	for _, r := range snap.Readings {
		if _, dup := seen[r.Key]; dup {
			e.logger.Debug("duplicate metric key in snapshot", zap.String("key", r.Key))
			continue
		}
		seen[r.Key] = struct{}{}

		g, ok := e.gauges[r.Key]
		if !ok {
			var err error
			g, err = e.factory.NewSensorGauge(snap.Host, r)
			if err != nil {
				e.logger.Warn("register sensor gauge", zap.String("key", r.Key), zap.Error(err))
				continue
			}
			e.gauges[r.Key] = g
		}
		g.Set(r.Value)
	}
	for key, g := range e.gauges {
		if _, ok := seen[key]; !ok {
			e.factory.Unregister(g)
			delete(e.gauges, key)
		}
	}
}

// Stop makes every later request fail with 503 without collecting. It waits
// for a scrape in progress.
func (e *Exposition) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

// GaugeName turns a metric key into a Prometheus metric name: dots become
// underscores and a leading digit gets an underscore prefix.
func GaugeName(key string) string {
	name := strings.ReplaceAll(key, ".", "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}
