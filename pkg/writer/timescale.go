package writer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"

	"github.com/sensor-collector/pkg/config"
	"github.com/sensor-collector/pkg/sensor"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS ohm_stats (
	time TIMESTAMPTZ NOT NULL,
	host TEXT,
	key TEXT,
	hardware TEXT,
	hardware_type TEXT,
	sensor TEXT,
	sensor_type TEXT,
	sensor_index INT NOT NULL,
	value DOUBLE PRECISION
)`
	createHypertableSQL = `SELECT create_hypertable('ohm_stats', 'time', if_not_exists => TRUE)`
	insertRowSQL        = `INSERT INTO ohm_stats (time, host, key, hardware, hardware_type, sensor, sensor_type, sensor_index, value)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

// TimescaleRow is one reading as stored in the ohm_stats hypertable.
type TimescaleRow struct {
	Time         time.Time
	Host         string
	Key          string
	Hardware     string
	HardwareType string
	Sensor       string
	SensorType   string
	SensorIndex  int
	Value        float64
}

// timescaleConn is the part of a database session the writer needs.
type timescaleConn interface {
	Exec(ctx context.Context, sql string) error
	SendBatch(ctx context.Context, b *pgx.Batch) error
	Close(ctx context.Context) error
}

// pgxConn adapts *pgx.Conn to timescaleConn.
type pgxConn struct {
	conn *pgx.Conn
}

func (c *pgxConn) Exec(ctx context.Context, sql string) error {
	_, err := c.conn.Exec(ctx, sql)
	return err
}

// SendBatch runs the batch in one round trip; every queued statement's
// result is checked before the batch is closed.
func (c *pgxConn) SendBatch(ctx context.Context, b *pgx.Batch) (err error) {
	br := c.conn.SendBatch(ctx, b)
	defer func() {
		if cerr := br.Close(); err == nil {
			err = cerr
		}
	}()
	for i := 0; i < b.Len(); i++ {
		if _, err = br.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}

func (c *pgxConn) Close(ctx context.Context) error { return c.conn.Close(ctx) }

func connectPgx(ctx context.Context, connString string) (timescaleConn, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &pgxConn{conn: conn}, nil
}

// TimescaleWriter inserts each snapshot as one batch. The connection is
// opened lazily and dropped after any failure so the next Send reconnects.
type TimescaleWriter struct {
	mu         sync.Mutex
	connString string
	setupTable bool
	tableReady bool
	conn       timescaleConn
	connect    func(ctx context.Context, connString string) (timescaleConn, error)
	logger     *zap.Logger
}

// NewTimescaleWriter 创建 TimescaleDB 写入器（延迟建立连接）
func NewTimescaleWriter(cfg config.TimescaleConfig, logger *zap.Logger) *TimescaleWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimescaleWriter{
		connString: cfg.Connection,
		setupTable: cfg.SetupTable,
		connect:    connectPgx,
		logger:     logger,
	}
}

func (w *TimescaleWriter) Send(ctx context.Context, snap sensor.Snapshot, _ Tags) error {
	rows := TimescaleRows(snap)
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	conn, err := w.session(ctx)
	if err != nil {
		return writeErr(BackendTimescale, err)
	}
	if err := conn.SendBatch(ctx, insertBatch(rows)); err != nil {
		w.reset(ctx)
		return writeErr(BackendTimescale, err)
	}
	w.logger.Debug("timescale rows inserted", zap.Int("rows", len(rows)))
	return nil
}

// session returns the open connection, connecting and creating the
// hypertable first when needed.
func (w *TimescaleWriter) session(ctx context.Context) (timescaleConn, error) {
	if w.conn != nil {
		return w.conn, nil
	}
	conn, err := w.connect(ctx, w.connString)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	w.conn = conn
	if w.setupTable && !w.tableReady {
		for _, stmt := range []string{createTableSQL, createHypertableSQL} {
			if err := conn.Exec(ctx, stmt); err != nil {
				w.reset(ctx)
				return nil, fmt.Errorf("setup table: %w", err)
			}
		}
		w.tableReady = true
		w.logger.Info("timescale table ready", zap.String("table", "ohm_stats"))
	}
	return conn, nil
}

func (w *TimescaleWriter) reset(ctx context.Context) {
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(ctx); err != nil {
		w.logger.Debug("close timescale connection", zap.Error(err))
	}
	w.conn = nil
}

// Close closes the connection if one is open.
func (w *TimescaleWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.conn.Close(ctx)
	w.conn = nil
	return err
}

// TimescaleRows maps readings to table rows; NaN and infinite values are skipped.
func TimescaleRows(snap sensor.Snapshot) []TimescaleRow {
	rows := make([]TimescaleRow, 0, len(snap.Readings))
	for _, r := range snap.Readings {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			continue
		}
		hw := r.Hardware()
		rows = append(rows, TimescaleRow{
			Time:         snap.Time,
			Host:         snap.Host,
			Key:          r.Key,
			Hardware:     hw.Name,
			HardwareType: string(hw.Category),
			Sensor:       r.Name,
			SensorType:   r.Type.String(),
			SensorIndex:  r.Index,
			Value:        r.Value,
		})
	}
	return rows
}

func insertBatch(rows []TimescaleRow) *pgx.Batch {
	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(insertRowSQL, r.Time, r.Host, r.Key, r.Hardware, r.HardwareType, r.Sensor, r.SensorType, r.SensorIndex, r.Value)
	}
	return b
}
