package sensor

import (
	"strconv"
	"strings"

	"github.com/sensor-collector/pkg/hardware"
)

// MetricKey builds the stable series name of a sensor:
//
//	host.<category>.<index>[.<category>.<index>...].<sensor type>.<sensor name>
//
// Every segment goes through SanitizeSegment.
func MetricKey(host string, path []hardware.Identity, typ hardware.SensorType, name string) string {
	segments := make([]string, 0, 3+2*len(path))
	segments = append(segments, SanitizeSegment(host))
	for _, id := range path {
		segments = append(segments, SanitizeSegment(string(id.Category)), strconv.Itoa(id.Index))
	}
	segments = append(segments, SanitizeSegment(typ.String()), SanitizeSegment(name))
	return strings.Join(segments, ".")
}

// SanitizeSegment lower-cases s, collapses every run of characters outside
// [a-z0-9] into one underscore and trims underscores from both ends. An empty
// result becomes "_".
func SanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
