package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensor-collector/pkg/hardware"
	"github.com/sensor-collector/pkg/sensor"
)

type fakeSnapshotter struct {
	mu    sync.Mutex
	snap  sensor.Snapshot
	err   error
	calls int
}

func (f *fakeSnapshotter) Snapshot(context.Context) (sensor.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snap, f.err
}

func (f *fakeSnapshotter) set(snap sensor.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap, f.err = snap, err
}

var (
	cpuPath   = []hardware.Identity{{Category: hardware.CategoryCPU, Name: "Ryzen 7"}}
	boardPath = []hardware.Identity{{Category: hardware.CategoryMotherboard, Name: "Board"}}
)

func snapshotOf(readings ...sensor.Reading) sensor.Snapshot {
	return sensor.Snapshot{Host: "box", Time: time.Unix(1700000000, 0), Readings: readings}
}

func tctl(v float64) sensor.Reading {
	return sensor.Reading{Key: "box.cpu.0.temperature.tctl", Path: cpuPath, Type: hardware.Temperature, Name: "Tctl", Value: v}
}

func cpuFan(v float64) sensor.Reading {
	return sensor.Reading{Key: "box.motherboard.0.fan.cpu_fan", Path: boardPath, Type: hardware.Fan, Name: "CPU Fan", Value: v}
}

func scrape(t *testing.T, e *Exposition) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec
}

func TestExpositionServesGauges(t *testing.T) {
	src := &fakeSnapshotter{snap: snapshotOf(tctl(55.5), cpuFan(1200))}
	e := NewExposition(src, WithoutProcessMetrics())

	rec := scrape(t, e)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "box_cpu_0_temperature_tctl{")
	assert.Contains(t, rec.Body.String(), "box_motherboard_0_fan_cpu_fan{")

	expected := `
# HELP box_cpu_0_temperature_tctl temperature sensor reading in celsius
# TYPE box_cpu_0_temperature_tctl gauge
box_cpu_0_temperature_tctl{hardware="Ryzen 7",hardware_type="cpu",host="box",sensor="Tctl",sensor_type="temperature"} 55.5
`
	assert.NoError(t, testutil.GatherAndCompare(e.Registry(), strings.NewReader(expected), "box_cpu_0_temperature_tctl"))
}

func TestExpositionRefreshesOnEveryScrape(t *testing.T) {
	src := &fakeSnapshotter{snap: snapshotOf(tctl(40))}
	e := NewExposition(src, WithoutProcessMetrics())

	scrape(t, e)
	src.set(snapshotOf(tctl(61)), nil)
	rec := scrape(t, e)

	assert.Contains(t, rec.Body.String(), "} 61\n")
	assert.Equal(t, 2, src.calls)
}

func TestExpositionDropsVanishedSensors(t *testing.T) {
	src := &fakeSnapshotter{snap: snapshotOf(tctl(40), cpuFan(900))}
	e := NewExposition(src, WithoutProcessMetrics())
	scrape(t, e)

	src.set(snapshotOf(tctl(41)), nil)
	rec := scrape(t, e)

	assert.NotContains(t, rec.Body.String(), "box_motherboard_0_fan_cpu_fan")
	n, err := testutil.GatherAndCount(e.Registry(), "box_motherboard_0_fan_cpu_fan")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpositionDuplicateKeyKeepsFirst(t *testing.T) {
	second := tctl(99)
	second.Name = "Tctl "
	src := &fakeSnapshotter{snap: snapshotOf(tctl(40), second)}
	e := NewExposition(src, WithoutProcessMetrics())

	rec := scrape(t, e)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "} 40\n")
	assert.NotContains(t, rec.Body.String(), "} 99\n")
}

func TestExpositionCollectionFailure(t *testing.T) {
	src := &fakeSnapshotter{err: &sensor.CollectionError{Err: errors.New("probe gone")}}
	e := NewExposition(src, WithoutProcessMetrics())

	rec := scrape(t, e)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "probe gone")
	assert.Equal(t, 1.0, testutil.ToFloat64(e.errors.WithLabelValues(collectorLabel)))

	// the next scrape recovers
	src.set(snapshotOf(tctl(50)), nil)
	assert.Equal(t, http.StatusOK, scrape(t, e).Code)
}

func TestExpositionStop(t *testing.T) {
	src := &fakeSnapshotter{snap: snapshotOf(tctl(40))}
	e := NewExposition(src, WithoutProcessMetrics())
	e.Stop()

	assert.Equal(t, http.StatusServiceUnavailable, scrape(t, e).Code)
	assert.Zero(t, src.calls)
}

func TestExpositionProcessMetrics(t *testing.T) {
	e := NewExposition(&fakeSnapshotter{})
	families, err := e.Registry().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.NotContains(t, names, "go_goroutines")
}

func TestGaugeName(t *testing.T) {
	tests := []struct {
		key, want string
	}{
		{"desk.cpu.0.temperature.cpu_package", "desk_cpu_0_temperature_cpu_package"},
		{"01host.gpu.0.load.core", "_01host_gpu_0_load_core"},
		{"", "_"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, GaugeName(tt.key))
		})
	}
}

// gatedSnapshotter blocks its first collection until release is closed and
// counts collections that overlap.
type gatedSnapshotter struct {
	entered  chan struct{}
	release  chan struct{}
	mu       sync.Mutex
	active   int
	overlaps int
	calls    int
}

func (g *gatedSnapshotter) Snapshot(context.Context) (sensor.Snapshot, error) {
	g.mu.Lock()
	g.active++
	if g.active > 1 {
		g.overlaps++
	}
	g.calls++
	call := g.calls
	g.mu.Unlock()

	if call == 1 {
		close(g.entered)
		<-g.release
	}

	g.mu.Lock()
	g.active--
	g.mu.Unlock()
	return snapshotOf(tctl(float64(40 + call))), nil
}

func TestExpositionQueuedScrapeCollectsAgain(t *testing.T) {
	src := &gatedSnapshotter{entered: make(chan struct{}), release: make(chan struct{})}
	e := NewExposition(src, WithoutProcessMetrics())

	first := make(chan string, 1)
	go func() { first <- scrape(t, e).Body.String() }()
	<-src.entered

	second := make(chan string, 1)
	go func() { second <- scrape(t, e).Body.String() }()

	// the second scrape waits for the first instead of collecting alongside it
	assert.Never(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls > 1
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(src.release)
	assert.Contains(t, <-first, "} 41\n")
	assert.Contains(t, <-second, "} 42\n")

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 2, src.calls)
	assert.Zero(t, src.overlaps)
}
