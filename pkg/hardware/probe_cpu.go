package hardware

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"
)

// cpuProbe reports per-package load and clock from gopsutil, plus the
// temperatures of CPU chips.
type cpuProbe struct {
	info    func(ctx context.Context) ([]cpu.InfoStat, error)
	percent func(ctx context.Context) ([]float64, error)
}

func newCPUProbe() *cpuProbe {
	return &cpuProbe{
		info: cpu.InfoWithContext,
		percent: func(ctx context.Context) ([]float64, error) {
			// interval 0 compares against the previous call
			return cpu.PercentWithContext(ctx, 0, true)
		},
	}
}

func (p *cpuProbe) Name() string       { return "cpu-probe" }
func (p *cpuProbe) Category() Category { return CategoryCPU }
func (p *cpuProbe) Close() error       { return nil }

// Init 预检查CPU可用性
func (p *cpuProbe) Init() error {
	if _, err := cpu.Counts(true); err != nil {
		return fmt.Errorf("get cpu counts: %w", err)
	}
	return nil
}

func (p *cpuProbe) Collect(ctx context.Context, u *Update) ([]*Node, error) {
	infos, err := p.info(ctx)
	if err != nil {
		return nil, fmt.Errorf("get cpu info: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("no cpu reported")
	}
	// 单核失败不致命：负载不可读时仅省略负载传感器
	loads, loadErr := p.percent(ctx)

	packages := make(map[string][]cpu.InfoStat)
	var ids []string
	for _, info := range infos {
		id := info.PhysicalID
		if _, ok := packages[id]; !ok {
			ids = append(ids, id)
		}
		packages[id] = append(packages[id], info)
	}
	sort.Strings(ids)

	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		cores := packages[id]
		node := &Node{Identity: Identity{Category: CategoryCPU, Name: cores[0].ModelName}}

		var total float64
		var counted int
		for _, core := range cores {
			idx := int(core.CPU)
			name := "CPU Core #" + strconv.Itoa(idx+1)
			if loadErr == nil && idx < len(loads) {
				node.Sensors = append(node.Sensors, Sensor{Type: Load, Name: name, Value: loads[idx], Valid: true})
				total += loads[idx]
				counted++
			}
			if core.Mhz > 0 {
				node.Sensors = append(node.Sensors, Sensor{Type: Clock, Name: name, Value: core.Mhz, Valid: true})
			}
		}
		if counted > 0 {
			node.Sensors = append([]Sensor{{Type: Load, Name: "CPU Total", Value: total / float64(counted), Valid: true}}, node.Sensors...)
		}
		nodes = append(nodes, node)
	}

	// The n-th instance of a CPU chip (one coretemp per socket) belongs to the
	// n-th package; instances beyond the package count become child nodes.
	for _, chip := range u.Chips[CategoryCPU] {
		if chip.Instance < len(nodes) {
			nodes[chip.Instance].Sensors = append(nodes[chip.Instance].Sensors, chip.Sensors...)
			continue
		}
		nodes[0].Children = append(nodes[0].Children, &Node{
			Identity: Identity{Category: CategoryCPU, Name: chip.Name},
			Sensors:  chip.Sensors,
		})
	}
	return nodes, nil
}
