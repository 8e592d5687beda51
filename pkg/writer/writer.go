// Package writer pushes snapshots to Graphite, InfluxDB and TimescaleDB.
// Encoding is done by pure functions so each wire format can be tested
// without its transport.
package writer

import (
	"context"
	"fmt"

	"github.com/sensor-collector/pkg/sensor"
)

// Backend names used in WriteError and logs.
const (
	BackendGraphite  = "graphite"
	BackendInflux    = "influx"
	BackendTimescale = "timescale"
)

// Tags are applied to every reading by the formats that support tagging.
type Tags map[string]string

// Writer sends one snapshot per call. Implementations own their transport
// and return every failure as a *WriteError; they never panic past Send.
type Writer interface {
	Send(ctx context.Context, snap sensor.Snapshot, tags Tags) error
	Close() error
}

// WriteError is a transport or protocol failure at a backend.
type WriteError struct {
	Backend    string
	StatusCode int // HTTP status, 0 for non-HTTP backends
	Err        error
}

func (e *WriteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s write failed (status %d): %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s write failed: %v", e.Backend, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func writeErr(backend string, err error) *WriteError {
	return &WriteError{Backend: backend, Err: err}
}
