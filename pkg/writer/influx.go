package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"
	"go.uber.org/zap"

	"github.com/sensor-collector/pkg/config"
	"github.com/sensor-collector/pkg/sensor"
)

const defaultInfluxTimeout = 30 * time.Second

// InfluxWriter posts line protocol to the InfluxDB v1 or v2 write endpoint.
type InfluxWriter struct {
	client   *http.Client
	writeURL string
	token    string
	user     string
	password string
	logger   *zap.Logger
}

// NewInfluxWriter builds the write URL once. A token selects the v2 API,
// otherwise the v1 endpoint is used with optional basic auth.
func NewInfluxWriter(cfg config.InfluxConfig, logger *zap.Logger) (*InfluxWriter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	writeURL, err := composeWriteURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("influx write url: %w", err)
	}
	w := &InfluxWriter{
		client:   &http.Client{Timeout: defaultInfluxTimeout},
		writeURL: writeURL,
		token:    cfg.Token,
		user:     cfg.User,
		password: cfg.Password,
		logger:   logger,
	}
	return w, nil
}

func composeWriteURL(cfg config.InfluxConfig) (string, error) {
	u, err := url.Parse(cfg.Address)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address %q is not an absolute url", cfg.Address)
	}
	ref := "write"
	if cfg.Token != "" {
		ref = "api/v2/write"
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u, err = u.Parse(ref)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("precision", "ns")
	if cfg.Token != "" {
		q.Set("org", cfg.Org)
		q.Set("bucket", cfg.Bucket)
	} else {
		q.Set("db", cfg.DB)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send posts the whole snapshot in one request. Transport errors and non-2xx
// answers become a *WriteError.
func (w *InfluxWriter) Send(ctx context.Context, snap sensor.Snapshot, tags Tags) error {
	payload, err := EncodeInflux(snap, tags)
	if err != nil {
		return writeErr(BackendInflux, err)
	}
	if len(payload) == 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.writeURL, bytes.NewReader(payload))
	if err != nil {
		return writeErr(BackendInflux, err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	switch {
	case w.token != "":
		req.Header.Set("Authorization", "Token "+w.token)
	case w.user != "":
		req.SetBasicAuth(w.user, w.password)
	}

	res, err := w.client.Do(req)
	if err != nil {
		return writeErr(BackendInflux, err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	if res.StatusCode/100 != 2 {
		return &WriteError{
			Backend:    BackendInflux,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("line protocol write returned %q %q", res.Status, string(body)),
		}
	}
	w.logger.Debug("influx points sent", zap.Int("readings", len(snap.Readings)), zap.Int("bytes", len(payload)))
	return nil
}

// Close releases idle keep-alive connections.
func (w *InfluxWriter) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// EncodeInflux renders the snapshot as line protocol with nanosecond
// timestamps: measurement = metric key, tags = configured tags plus host,
// hardware_type and sensor_type, single field "value". Readings whose value
// line protocol cannot carry (NaN, ±Inf) are skipped.
func EncodeInflux(snap sensor.Snapshot, tags Tags) ([]byte, error) {
	var enc lineprotocol.Encoder
	enc.SetPrecision(lineprotocol.Nanosecond)
	for _, r := range snap.Readings {
		v, ok := lineprotocol.FloatValue(r.Value)
		if !ok {
			continue
		}
		enc.StartLine(r.Key)
		for _, t := range influxTags(snap.Host, r, tags) {
			enc.AddTag(t.k, t.v)
		}
		enc.AddField("value", v)
		enc.EndLine(snap.Time)
		if err := enc.Err(); err != nil {
			return nil, fmt.Errorf("encode %s: %w", r.Key, err)
		}
	}
	return enc.Bytes(), nil
}

type tag struct {
	k, v string
}

// influxTags sorts tags by key, as the encoder requires, and drops empty keys or values.
func influxTags(host string, r sensor.Reading, configured Tags) []tag {
	m := map[string]string{
		"host":          host,
		"hardware_type": string(r.Hardware().Category),
		"sensor_type":   r.Type.String(),
	}
	for k, v := range configured {
		m[k] = v
	}
	tags := make([]tag, 0, len(m))
	for k, v := range m {
		if k == "" || v == "" {
			continue
		}
		tags = append(tags, tag{k, v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].k < tags[j].k })
	return tags
}
