// Package sensor flattens the hardware tree into ordered snapshots of readings.
package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/sensor-collector/pkg/hardware"
)

// Reading is one sensor value captured during a collection pass.
type Reading struct {
	Key   string
	Path  []hardware.Identity // root first
	Type  hardware.SensorType
	Name  string
	Index int
	Value float64
	Time  time.Time
}

// Hardware returns the identity of the node that owns the sensor.
func (r Reading) Hardware() hardware.Identity {
	if len(r.Path) == 0 {
		return hardware.Identity{}
	}
	return r.Path[len(r.Path)-1]
}

// Snapshot is the ordered result of one collection pass. Every reading
// carries the snapshot's Time.
type Snapshot struct {
	Host     string
	Time     time.Time
	Readings []Reading
}

// Snapshotter produces snapshots. *Collector is the production implementation.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// CollectionError reports that the hardware source as a whole could not be read.
type CollectionError struct {
	Err error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("sensor collection failed: %v", e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }
