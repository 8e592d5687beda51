package hardware

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

var (
	// virtual block devices that are not storage hardware
	ignoredDisks    = regexp.MustCompile(`^(loop|ram|zram|sr|fd|dm-|md)\d*`)
	partitionSuffix = regexp.MustCompile(`^p?\d+$`)
)

// storageProbe reports one node per physical disk with IO totals and rates,
// mounted partitions as children, and one node per storage sensor chip.
type storageProbe struct {
	counters   func(ctx context.Context) (map[string]disk.IOCountersStat, error)
	partitions func(ctx context.Context) ([]disk.PartitionStat, error)
	usage      func(ctx context.Context, path string) (*disk.UsageStat, error)
	previous   map[string]counterSample
}

func newStorageProbe() *storageProbe {
	return &storageProbe{
		counters: func(ctx context.Context) (map[string]disk.IOCountersStat, error) {
			return disk.IOCountersWithContext(ctx)
		},
		partitions: func(ctx context.Context) ([]disk.PartitionStat, error) {
			return disk.PartitionsWithContext(ctx, false)
		},
		usage:    disk.UsageWithContext,
		previous: make(map[string]counterSample),
	}
}

func (p *storageProbe) Name() string       { return "storage-probe" }
func (p *storageProbe) Category() Category { return CategoryStorage }
func (p *storageProbe) Init() error        { return nil }
func (p *storageProbe) Close() error       { return nil }

func (p *storageProbe) Collect(ctx context.Context, u *Update) ([]*Node, error) {
	counters, err := p.counters(ctx)
	if err != nil {
		return nil, fmt.Errorf("get disk counters: %w", err)
	}
	disks := wholeDisks(counters)

	// partitions are optional: without them disks just have no children
	parts, _ := p.partitions(ctx)
	sort.Slice(parts, func(i, j int) bool { return parts[i].Mountpoint < parts[j].Mountpoint })

	nodes := make([]*Node, 0, len(disks)+len(u.Chips[CategoryStorage]))
	for _, name := range disks {
		st := counters[name]
		cur := counterSample{sent: st.WriteBytes, recv: st.ReadBytes, at: u.Now}
		write, read, ok := rates(p.previous[name], cur)
		p.previous[name] = cur

		node := &Node{
			Identity: Identity{Category: CategoryStorage, Name: name},
			Sensors: []Sensor{
				{Type: Data, Name: "Data Read", Value: float64(st.ReadBytes) / gib, Valid: true},
				{Type: Data, Name: "Data Written", Value: float64(st.WriteBytes) / gib, Valid: true},
				{Type: Throughput, Name: "Read Rate", Value: read, Valid: ok},
				{Type: Throughput, Name: "Write Rate", Value: write, Valid: ok},
			},
		}
		for _, part := range parts {
			if !belongsTo(part.Device, name) {
				continue
			}
			node.Children = append(node.Children, p.partitionNode(ctx, part))
		}
		nodes = append(nodes, node)
	}
	for name := range p.previous {
		if _, ok := counters[name]; !ok {
			delete(p.previous, name)
		}
	}
	return append(nodes, chipNodes(CategoryStorage, u.Chips[CategoryStorage])...), nil
}

func (p *storageProbe) partitionNode(ctx context.Context, part disk.PartitionStat) *Node {
	us, err := p.usage(ctx, part.Mountpoint)
	ok := err == nil && us != nil && us.Total > 0
	var used, free, total float64
	if ok {
		used, free, total = us.UsedPercent, float64(us.Free)/gib, float64(us.Total)/gib
	}
	return &Node{
		Identity: Identity{Category: CategoryStorage, Name: part.Mountpoint},
		Sensors: []Sensor{
			{Type: Load, Name: "Used Space", Value: used, Valid: ok},
			{Type: Data, Name: "Free Space", Value: free, Valid: ok},
			{Type: Data, Name: "Total Space", Value: total, Valid: ok},
		},
	}
}

// wholeDisks returns the sorted names of physical disks, dropping virtual
// devices and partitions of another listed disk (sda1 of sda, nvme0n1p2 of nvme0n1).
func wholeDisks(counters map[string]disk.IOCountersStat) []string {
	names := make([]string, 0, len(counters))
	for name := range counters {
		if ignoredDisks.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	disks := make([]string, 0, len(names))
	for _, name := range names {
		partition := false
		for _, other := range names {
			if other != name && strings.HasPrefix(name, other) && partitionSuffix.MatchString(name[len(other):]) {
				partition = true
				break
			}
		}
		if !partition {
			disks = append(disks, name)
		}
	}
	return disks
}

// belongsTo reports whether a partition device (/dev/sda1, C:) lives on the named disk.
func belongsTo(device, diskName string) bool {
	base := filepath.Base(device)
	if base == diskName || device == diskName {
		return true
	}
	return strings.HasPrefix(base, diskName) && partitionSuffix.MatchString(base[len(diskName):])
}
