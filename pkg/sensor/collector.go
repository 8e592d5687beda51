package sensor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sensor-collector/pkg/hardware"
)

// Collector serializes access to a hardware.Source. Each Snapshot call
// performs its own refresh; concurrent callers wait for the running one to
// finish and never share results.
type Collector struct {
	mu     sync.Mutex
	source hardware.Source
	host   string
	clock  clockwork.Clock
	logger *zap.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock sets the clock stamping snapshots.
func WithClock(c clockwork.Clock) Option {
	return func(col *Collector) { col.clock = c }
}

// WithLogger sets the collector logger.
func WithLogger(l *zap.Logger) Option {
	return func(col *Collector) {
		if l != nil {
			col.logger = l
		}
	}
}

// NewCollector wraps source. host is the first segment of every metric key
// and stays fixed for the collector's lifetime.
func NewCollector(source hardware.Source, host string, opts ...Option) *Collector {
	c := &Collector{
		source: source,
		host:   host,
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the hostname used in metric keys.
func (c *Collector) Host() string { return c.host }

// Snapshot refreshes the hardware tree and flattens it depth-first: a node's
// own sensors first, then each child. Unreadable sensors are left out.
func (c *Collector) Snapshot(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	roots, err := c.source.Update(ctx)
	if err != nil {
		return Snapshot{}, &CollectionError{Err: err}
	}
	snap := Snapshot{Host: c.host, Time: c.clock.Now()}
	for _, root := range roots {
		snap.Readings = c.flatten(snap.Readings, nil, root, snap.Time)
	}
	c.logger.Debug("snapshot collected", zap.Int("readings", len(snap.Readings)))
	return snap, nil
}

func (c *Collector) flatten(out []Reading, parent []hardware.Identity, n *hardware.Node, at time.Time) []Reading {
	if n == nil {
		return out
	}
	path := make([]hardware.Identity, len(parent)+1)
	copy(path, parent)
	path[len(parent)] = n.Identity

	// keys repeating within a node get "_2", "_3"... so every sensor keeps its own series
	keys := make(map[string]int, len(n.Sensors))
	for _, s := range n.Sensors {
		if !s.Readable() {
			continue
		}
		key := MetricKey(c.host, path, s.Type, s.Name)
		keys[key]++
		if k := keys[key]; k > 1 {
			c.logger.Debug("duplicate sensor key in node", zap.String("key", key), zap.Int("occurrence", k))
			key += "_" + strconv.Itoa(k)
		}
		out = append(out, Reading{
			Key:   key,
			Path:  path,
			Type:  s.Type,
			Name:  s.Name,
			Index: s.Index,
			Value: s.Value,
			Time:  at,
		})
	}
	for _, child := range n.Children {
		out = c.flatten(out, path, child, at)
	}
	return out
}
