package writer

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensor-collector/pkg/config"
)

type fakeTimescaleConn struct {
	execs    []string
	batches  []int
	batchErr error
	execErr  error
	closed   bool
}

func (c *fakeTimescaleConn) Exec(_ context.Context, sql string) error {
	c.execs = append(c.execs, sql)
	return c.execErr
}

func (c *fakeTimescaleConn) SendBatch(_ context.Context, b *pgx.Batch) error {
	c.batches = append(c.batches, b.Len())
	return c.batchErr
}

func (c *fakeTimescaleConn) Close(context.Context) error {
	c.closed = true
	return nil
}

func newFakeTimescale(setup bool) (*TimescaleWriter, *[]*fakeTimescaleConn) {
	w := NewTimescaleWriter(config.TimescaleConfig{Connection: "postgres://localhost/ohm", SetupTable: setup}, nil)
	conns := &[]*fakeTimescaleConn{}
	w.connect = func(_ context.Context, connString string) (timescaleConn, error) {
		c := &fakeTimescaleConn{}
		*conns = append(*conns, c)
		return c, nil
	}
	return w, conns
}

func TestTimescaleRows(t *testing.T) {
	rows := TimescaleRows(testSnapshot())
	require.Len(t, rows, 2, "NaN reading is skipped")
	assert.Equal(t, TimescaleRow{
		Time:         testTime,
		Host:         "box",
		Key:          "host.cpu.temp",
		Hardware:     "Ryzen 7",
		HardwareType: "cpu",
		Sensor:       "Tctl",
		SensorType:   "temperature",
		SensorIndex:  0,
		Value:        55.5,
	}, rows[0])
	assert.Equal(t, "nct6775", rows[1].Hardware)
	assert.Equal(t, 1, rows[1].SensorIndex)
	assert.Equal(t, 2, insertBatch(rows).Len())
}

func TestTimescaleWriterLazyConnectAndSetup(t *testing.T) {
	w, conns := newFakeTimescale(true)
	assert.Empty(t, *conns, "no connection before the first Send")

	require.NoError(t, w.Send(context.Background(), testSnapshot(), nil))
	require.NoError(t, w.Send(context.Background(), testSnapshot(), nil))

	require.Len(t, *conns, 1)
	c := (*conns)[0]
	require.Len(t, c.execs, 2)
	assert.Contains(t, c.execs[0], "CREATE TABLE IF NOT EXISTS ohm_stats")
	assert.Contains(t, c.execs[1], "create_hypertable")
	assert.Equal(t, []int{2, 2}, c.batches)

	require.NoError(t, w.Close())
	assert.True(t, c.closed)
}

func TestTimescaleWriterWithoutSetup(t *testing.T) {
	w, conns := newFakeTimescale(false)
	require.NoError(t, w.Send(context.Background(), testSnapshot(), nil))
	assert.Empty(t, (*conns)[0].execs)
}

func TestTimescaleWriterReconnectsAfterFailure(t *testing.T) {
	w, conns := newFakeTimescale(false)
	require.NoError(t, w.Send(context.Background(), testSnapshot(), nil))
	(*conns)[0].batchErr = errors.New("connection reset")

	err := w.Send(context.Background(), testSnapshot(), nil)
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, BackendTimescale, we.Backend)
	assert.True(t, (*conns)[0].closed)

	require.NoError(t, w.Send(context.Background(), testSnapshot(), nil))
	assert.Len(t, *conns, 2)
}

func TestTimescaleWriterConnectError(t *testing.T) {
	w, _ := newFakeTimescale(false)
	w.connect = func(context.Context, string) (timescaleConn, error) {
		return nil, errors.New("no route to host")
	}
	err := w.Send(context.Background(), testSnapshot(), nil)
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Contains(t, err.Error(), "no route to host")
	assert.NoError(t, w.Close())
}

func TestTimescaleWriterSetupFailureRetriesOnNextSend(t *testing.T) {
	w, conns := newFakeTimescale(true)
	first := true
	w.connect = func(context.Context, string) (timescaleConn, error) {
		c := &fakeTimescaleConn{}
		if first {
			c.execErr = errors.New("extension timescaledb missing")
			first = false
		}
		*conns = append(*conns, c)
		return c, nil
	}

	require.Error(t, w.Send(context.Background(), testSnapshot(), nil))
	require.NoError(t, w.Send(context.Background(), testSnapshot(), nil))
	require.Len(t, *conns, 2)
	assert.True(t, (*conns)[0].closed)
	assert.Len(t, (*conns)[1].execs, 2)
}
