package hardware

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/net"
)

type counterSample struct {
	sent, recv uint64
	at         time.Time
}

// networkProbe reports per-interface transferred data and throughput. The
// throughput of an interface is unreadable until a second update supplies a
// previous sample.
type networkProbe struct {
	counters func(ctx context.Context) ([]net.IOCountersStat, error)
	previous map[string]counterSample
}

func newNetworkProbe() *networkProbe {
	return &networkProbe{
		counters: func(ctx context.Context) ([]net.IOCountersStat, error) {
			return net.IOCountersWithContext(ctx, true)
		},
		previous: make(map[string]counterSample),
	}
}

func (p *networkProbe) Name() string       { return "network-probe" }
func (p *networkProbe) Category() Category { return CategoryNetwork }
func (p *networkProbe) Init() error        { return nil }
func (p *networkProbe) Close() error       { return nil }

func (p *networkProbe) Collect(ctx context.Context, u *Update) ([]*Node, error) {
	stats, err := p.counters(ctx)
	if err != nil {
		return nil, fmt.Errorf("get network counters: %w", err)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	seen := make(map[string]struct{}, len(stats))
	nodes := make([]*Node, 0, len(stats))
	for _, st := range stats {
		if isLoopback(st.Name) {
			continue
		}
		seen[st.Name] = struct{}{}
		cur := counterSample{sent: st.BytesSent, recv: st.BytesRecv, at: u.Now}
		up, down, ok := rates(p.previous[st.Name], cur)
		p.previous[st.Name] = cur

		nodes = append(nodes, &Node{
			Identity: Identity{Category: CategoryNetwork, Name: st.Name},
			Sensors: []Sensor{
				{Type: Data, Name: "Data Uploaded", Value: float64(st.BytesSent) / gib, Valid: true},
				{Type: Data, Name: "Data Downloaded", Value: float64(st.BytesRecv) / gib, Valid: true},
				{Type: Throughput, Name: "Upload Speed", Value: up, Valid: ok},
				{Type: Throughput, Name: "Download Speed", Value: down, Valid: ok},
			},
		})
	}
	for name := range p.previous {
		if _, ok := seen[name]; !ok {
			delete(p.previous, name)
		}
	}
	return nodes, nil
}

// rates returns per-second deltas between two samples. Counter resets and
// missing or out-of-order samples yield ok == false.
func rates(prev, cur counterSample) (sent, recv float64, ok bool) {
	if prev.at.IsZero() || !cur.at.After(prev.at) || cur.sent < prev.sent || cur.recv < prev.recv {
		return 0, 0, false
	}
	secs := cur.at.Sub(prev.at).Seconds()
	return float64(cur.sent-prev.sent) / secs, float64(cur.recv-prev.recv) / secs, true
}

func isLoopback(name string) bool {
	n := strings.ToLower(name)
	return n == "lo" || strings.HasPrefix(n, "loopback")
}
