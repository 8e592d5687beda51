package writer

import (
	"bufio"
	"context"
	"math"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sensor-collector/pkg/config"
	"github.com/sensor-collector/pkg/sensor"
)

const defaultGraphiteTimeout = 10 * time.Second

// GraphiteWriter sends the plaintext protocol over a new TCP connection per Send.
type GraphiteWriter struct {
	addr    string
	timeout time.Duration
	dialer  *net.Dialer
	logger  *zap.Logger
}

// NewGraphiteWriter 创建 Graphite 写入器
func NewGraphiteWriter(cfg config.GraphiteConfig, logger *zap.Logger) *GraphiteWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphiteWriter{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		timeout: defaultGraphiteTimeout,
		dialer:  &net.Dialer{Timeout: defaultGraphiteTimeout},
		logger:  logger,
	}
}

// Send writes every line of the snapshot. The first failing write aborts the
// rest of the cycle.
func (w *GraphiteWriter) Send(ctx context.Context, snap sensor.Snapshot, tags Tags) error {
	payload := EncodeGraphite(snap, tags)
	if len(payload) == 0 {
		return nil
	}

	conn, err := w.dialer.DialContext(ctx, "tcp", w.addr)
	if err != nil {
		return writeErr(BackendGraphite, err)
	}
	defer conn.Close()
	if err := conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return writeErr(BackendGraphite, err)
	}

	bw := bufio.NewWriter(conn)
	if _, err := bw.Write(payload); err != nil {
		return writeErr(BackendGraphite, err)
	}
	if err := bw.Flush(); err != nil {
		return writeErr(BackendGraphite, err)
	}
	w.logger.Debug("graphite lines sent", zap.String("addr", w.addr), zap.Int("bytes", len(payload)))
	return nil
}

// Close is a no-op: connections only live for one Send.
func (w *GraphiteWriter) Close() error { return nil }

// EncodeGraphite renders one plaintext line per reading:
//
//	<key>[;tag=value...] <value> <unix seconds>
//
// Tags are only emitted when some are configured; the reading's own metadata
// (hardware_type, sensor_type, sensor_index, host) is added to them and
// configured tags win on conflict. NaN and infinite readings are skipped.
func EncodeGraphite(snap sensor.Snapshot, tags Tags) []byte {
	var b strings.Builder
	ts := strconv.FormatInt(snap.Time.Unix(), 10)
	for _, r := range snap.Readings {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			continue
		}
		b.WriteString(r.Key)
		if len(tags) > 0 {
			writeGraphiteTags(&b, readingTags(snap.Host, r, tags))
		}
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(r.Value, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(ts)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// readingTags merges the reading metadata with the configured tags.
func readingTags(host string, r sensor.Reading, tags Tags) map[string]string {
	merged := map[string]string{
		"host":          host,
		"hardware_type": string(r.Hardware().Category),
		"sensor_type":   r.Type.String(),
		"sensor_index":  strconv.Itoa(r.Index),
	}
	for k, v := range tags {
		merged[k] = v
	}
	return merged
}

func writeGraphiteTags(b *strings.Builder, tags map[string]string) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		if k == "" || tags[k] == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(';')
		b.WriteString(graphiteTagEscaper.Replace(k))
		b.WriteByte('=')
		b.WriteString(graphiteTagEscaper.Replace(tags[k]))
	}
}

// characters with a meaning in the tagged series syntax
var graphiteTagEscaper = strings.NewReplacer(";", "_", "~", "_", "!", "_", "^", "_", "=", "_", " ", "_")
