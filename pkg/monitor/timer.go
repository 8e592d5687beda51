// Package monitor drives the export: a MetricTimer pushes snapshots on a
// fixed interval, an ExpositionManager serves them on scrape.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sensor-collector/pkg/sensor"
	"github.com/sensor-collector/pkg/writer"
)

// Stats counts push cycles since Start.
type Stats struct {
	Started   uint64 // cycles that began
	Completed uint64 // cycles that finished, successfully or not
	Skipped   uint64 // ticks dropped because a cycle was still running
	Failed    uint64 // cycles whose collection or send failed
}

// MetricTimer 周期推送：每个 tick 采集一次快照并交给 writer。
// At most one cycle runs at a time; a tick that finds a cycle in flight is
// skipped, never queued.
type MetricTimer struct {
	interval time.Duration
	source   sensor.Snapshotter
	writer   writer.Writer
	tags     writer.Tags
	clock    clockwork.Clock
	logger   *zap.Logger

	inFlight  atomic.Bool
	started   atomic.Uint64
	completed atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64

	mu       sync.Mutex
	running  bool
	disposed bool
	stop     chan struct{}
	loopDone chan struct{}
	cycles   sync.WaitGroup
}

// TimerOption configures a MetricTimer.
type TimerOption func(*MetricTimer)

// WithTimerClock sets the clock driving the ticker.
func WithTimerClock(c clockwork.Clock) TimerOption {
	return func(t *MetricTimer) { t.clock = c }
}

// WithTimerLogger sets the timer logger.
func WithTimerLogger(l *zap.Logger) TimerOption {
	return func(t *MetricTimer) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewMetricTimer creates a stopped timer. The timer owns w and closes it on Dispose.
func NewMetricTimer(interval time.Duration, source sensor.Snapshotter, w writer.Writer, tags writer.Tags, opts ...TimerOption) *MetricTimer {
	t := &MetricTimer{
		interval: interval,
		source:   source,
		writer:   w,
		tags:     tags,
		clock:    clockwork.NewRealClock(),
		logger:   zap.NewNop(),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins ticking. The first cycle runs one interval after Start.
func (t *MetricTimer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.disposed:
		return errors.New("metric timer already disposed")
	case t.running:
		return errors.New("metric timer already started")
	case t.interval <= 0:
		return fmt.Errorf("invalid interval %s", t.interval)
	}
	t.running = true
	ticker := t.clock.NewTicker(t.interval)
	go t.loop(ticker)
	t.logger.Info("metric timer started", zap.Duration("interval", t.interval))
	return nil
}

func (t *MetricTimer) loop(ticker clockwork.Ticker) {
	defer close(t.loopDone)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.Chan():
			t.tick()
		}
	}
}

func (t *MetricTimer) tick() {
	if !t.inFlight.CompareAndSwap(false, true) {
		n := t.skipped.Add(1)
		t.logger.Warn("previous cycle still running, skipping tick", zap.Uint64("skipped_total", n))
		return
	}
	t.started.Add(1)
	// Add happens on the loop goroutine, so Dispose's Wait after loopDone sees every cycle.
	t.cycles.Add(1)
	go func() {
		defer t.cycles.Done()
		t.cycle()
		t.inFlight.Store(false)
		t.completed.Add(1)
	}()
}

func (t *MetricTimer) cycle() {
	ctx := context.Background()
	start := t.clock.Now()

	snap, err := t.source.Snapshot(ctx)
	if err != nil {
		t.failed.Add(1)
		t.logger.Error("collect sensors failed", zap.Error(err))
		return
	}
	if err := t.writer.Send(ctx, snap, t.tags); err != nil {
		t.failed.Add(1)
		fields := []zap.Field{zap.Error(err), zap.Int("readings", len(snap.Readings))}
		var we *writer.WriteError
		if errors.As(err, &we) {
			fields = append(fields, zap.String("backend", we.Backend))
			if we.StatusCode != 0 {
				fields = append(fields, zap.Int("status", we.StatusCode))
			}
		}
		t.logger.Error("send snapshot failed", fields...)
		return
	}
	t.logger.Debug("snapshot sent",
		zap.Int("readings", len(snap.Readings)),
		zap.Duration("duration", t.clock.Since(start)))
}

// Stats returns the cycle counters.
func (t *MetricTimer) Stats() Stats {
	return Stats{
		Started:   t.started.Load(),
		Completed: t.completed.Load(),
		Skipped:   t.skipped.Load(),
		Failed:    t.failed.Load(),
	}
}

// Dispose stops the ticker, waits for a running cycle to finish and closes
// the writer. No Send happens after Dispose returns. Calling it again is a no-op.
func (t *MetricTimer) Dispose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return nil
	}
	t.disposed = true
	if t.running {
		close(t.stop)
		<-t.loopDone
		t.cycles.Wait()
		t.running = false
	}
	if err := t.writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	t.logger.Info("metric timer stopped", zap.Uint64("cycles", t.completed.Load()), zap.Uint64("skipped", t.skipped.Load()))
	return nil
}
