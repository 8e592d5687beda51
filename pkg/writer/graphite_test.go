package writer

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensor-collector/pkg/config"
	"github.com/sensor-collector/pkg/sensor"
)

func TestEncodeGraphiteRoundTrip(t *testing.T) {
	payload := string(EncodeGraphite(testSnapshot(), nil))
	lines := strings.Split(strings.TrimSuffix(payload, "\n"), "\n")
	require.Len(t, lines, 2, "NaN reading is skipped")
	assert.Equal(t, "host.cpu.temp 55.5 1700000000", lines[0])

	fields := strings.Fields(lines[0])
	require.Len(t, fields, 3)
	value, err := strconv.ParseFloat(fields[1], 64)
	require.NoError(t, err)
	ts, err := strconv.ParseInt(fields[2], 10, 64)
	require.NoError(t, err)
	assert.Equal(t, "host.cpu.temp", fields[0])
	assert.Equal(t, 55.5, value)
	assert.Equal(t, testTime.Unix(), ts)

	assert.Equal(t, "box.motherboard.0.motherboard.0.fan.cpu_fan 1200 1700000000", lines[1])
}

func TestEncodeGraphiteWithTags(t *testing.T) {
	snap := testSnapshot()
	snap.Readings = snap.Readings[:1]

	got := string(EncodeGraphite(snap, Tags{"env": "prod lab", "dc": "eu;west"}))
	assert.Equal(t,
		"host.cpu.temp;dc=eu_west;env=prod_lab;hardware_type=cpu;host=box;sensor_index=0;sensor_type=temperature 55.5 1700000000\n",
		got)
}

func TestEncodeGraphiteConfiguredTagWins(t *testing.T) {
	snap := testSnapshot()
	snap.Readings = snap.Readings[:1]

	got := string(EncodeGraphite(snap, Tags{"host": "override"}))
	assert.Contains(t, got, ";host=override;")
}

func TestEncodeGraphiteValuePrecision(t *testing.T) {
	snap := testSnapshot()
	snap.Readings = snap.Readings[:1]
	snap.Readings[0].Value = 0.1 + 0.2

	fields := strings.Fields(string(EncodeGraphite(snap, nil)))
	v, err := strconv.ParseFloat(fields[1], 64)
	require.NoError(t, err)
	assert.Equal(t, 0.1+0.2, v)
}

// graphiteListener accepts one connection per Send and forwards every line read.
func graphiteListener(t *testing.T) (config.GraphiteConfig, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	lines := make(chan string, 100)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				sc := bufio.NewScanner(c)
				for sc.Scan() {
					lines <- sc.Text()
				}
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return config.GraphiteConfig{Host: "127.0.0.1", Port: addr.Port}, lines
}

func TestGraphiteWriterSend(t *testing.T) {
	cfg, lines := graphiteListener(t)
	w := NewGraphiteWriter(cfg, nil)
	defer w.Close()

	require.NoError(t, w.Send(context.Background(), testSnapshot(), nil))

	var got []string
	for len(got) < 2 {
		select {
		case l := <-lines:
			got = append(got, l)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, "host.cpu.temp 55.5 1700000000", got[0])
}

func TestGraphiteWriterConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	w := NewGraphiteWriter(config.GraphiteConfig{Host: "127.0.0.1", Port: port}, nil)
	err = w.Send(context.Background(), testSnapshot(), nil)

	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, BackendGraphite, we.Backend)
	assert.Zero(t, we.StatusCode)
}

func TestGraphiteWriterEmptySnapshot(t *testing.T) {
	// nothing to send: no connection is attempted
	w := NewGraphiteWriter(config.GraphiteConfig{Host: "127.0.0.1", Port: 1}, nil)
	assert.NoError(t, w.Send(context.Background(), sensor.Snapshot{Host: "box", Time: testTime}, nil))
}
