package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sensor-collector/pkg/config"
	"github.com/sensor-collector/pkg/metrics"
	"github.com/sensor-collector/pkg/sensor"
	"github.com/sensor-collector/pkg/server"
	"github.com/sensor-collector/pkg/writer"
)

// Manager owns the export lifecycle of the configured backend.
type Manager interface {
	Start() error
	Dispose() error
}

type deps struct {
	logger *zap.Logger
	clock  clockwork.Clock
}

// Option configures NewManager.
type Option func(*deps)

// WithLogger sets the logger handed to the manager and everything it builds.
func WithLogger(l *zap.Logger) Option {
	return func(d *deps) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock sets the clock of push timers.
func WithClock(c clockwork.Clock) Option {
	return func(d *deps) { d.clock = c }
}

// NewManager builds the manager for backend: a TimerManager around the
// matching writer for push backends, an ExpositionManager for Prometheus.
func NewManager(backend config.Backend, source sensor.Snapshotter, opts ...Option) (Manager, error) {
	d := deps{logger: zap.NewNop(), clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&d)
	}

	switch b := backend.(type) {
	case config.GraphiteBackend:
		d.logger.Info("using graphite backend",
			zap.String("host", b.Config.Host),
			zap.Int("port", b.Config.Port),
			zap.Int("tags", len(b.Config.Tags)),
			zap.Duration("interval", b.Interval))
		w := writer.NewGraphiteWriter(b.Config, d.logger.Named(writer.BackendGraphite))
		return newTimerManager(b.Name(), b.Interval, source, w, b.Config.Tags, d), nil
	case config.InfluxBackend:
		d.logger.Info("using influx backend",
			zap.String("address", b.Config.Address),
			zap.String("db", b.Config.DB),
			zap.String("org", b.Config.Org),
			zap.String("bucket", b.Config.Bucket),
			zap.Bool("token", b.Config.Token != ""),
			zap.Duration("interval", b.Interval))
		w, err := writer.NewInfluxWriter(b.Config, d.logger.Named(writer.BackendInflux))
		if err != nil {
			return nil, fmt.Errorf("create influx writer: %w", err)
		}
		return newTimerManager(b.Name(), b.Interval, source, w, b.Config.Tags, d), nil
	case config.TimescaleBackend:
		// the connection string may carry a password
		d.logger.Info("using timescale backend",
			zap.Bool("setup_table", b.Config.SetupTable),
			zap.Duration("interval", b.Interval))
		w := writer.NewTimescaleWriter(b.Config, d.logger.Named(writer.BackendTimescale))
		return newTimerManager(b.Name(), b.Interval, source, w, nil, d), nil
	case config.PrometheusBackend:
		d.logger.Info("using prometheus backend",
			zap.String("host", b.Config.Host),
			zap.Int("port", b.Config.Port))
		return NewExpositionManager(b.Config, source, d.logger), nil
	case nil:
		return nil, errors.New("no backend")
	default:
		return nil, fmt.Errorf("unsupported backend %s", backend.Name())
	}
}

// TimerManager 推送型后端：MetricTimer + writer
type TimerManager struct {
	backend string
	timer   *MetricTimer
}

func newTimerManager(backend string, interval time.Duration, source sensor.Snapshotter, w writer.Writer, tags map[string]string, d deps) *TimerManager {
	return &TimerManager{
		backend: backend,
		timer: NewMetricTimer(interval, source, w, tags,
			WithTimerClock(d.clock),
			WithTimerLogger(d.logger.Named("timer").With(zap.String("backend", backend)))),
	}
}

// Backend names the push target.
func (m *TimerManager) Backend() string { return m.backend }

// Stats returns the timer's cycle counters.
func (m *TimerManager) Stats() Stats { return m.timer.Stats() }

func (m *TimerManager) Start() error {
	if err := m.timer.Start(); err != nil {
		return fmt.Errorf("start %s timer: %w", m.backend, err)
	}
	return nil
}

func (m *TimerManager) Dispose() error { return m.timer.Dispose() }

// ExpositionManager 拉取型后端：HTTP 监听 + Exposition
type ExpositionManager struct {
	exposition *metrics.Exposition
	server     *server.Server

	mu       sync.Mutex
	started  bool
	disposed bool
}

// NewExpositionManager wires an Exposition to a listener on cfg's host and port.
func NewExpositionManager(cfg config.PrometheusConfig, source sensor.Snapshotter, logger *zap.Logger) *ExpositionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	exp := metrics.NewExposition(source, metrics.WithLogger(logger.Named("exposition")))
	return &ExpositionManager{
		exposition: exp,
		server:     server.NewHTTPServer(cfg.Host, cfg.Port, exp, logger.Named("server")),
	}
}

// Addr returns the listening address once started.
func (m *ExpositionManager) Addr() string { return m.server.Addr() }

func (m *ExpositionManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.disposed:
		return errors.New("exposition already disposed")
	case m.started:
		return errors.New("exposition already started")
	}
	if err := m.server.Start(); err != nil {
		return err
	}
	m.started = true
	return nil
}

// Dispose stops accepting scrapes, waits for running ones and fails any
// request that still reaches the handler with 503.
func (m *ExpositionManager) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || !m.started {
		m.disposed = true
		return nil
	}
	m.disposed = true
	var errs error
	multierr.AppendInto(&errs, m.server.Shutdown())
	m.exposition.Stop()
	return errs
}
