package hardware

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

const gib = 1024 * 1024 * 1024

type memoryProbe struct {
	virtual func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	swap    func(ctx context.Context) (*mem.SwapMemoryStat, error)
}

func newMemoryProbe() *memoryProbe {
	return &memoryProbe{
		virtual: mem.VirtualMemoryWithContext,
		swap:    mem.SwapMemoryWithContext,
	}
}

func (p *memoryProbe) Name() string       { return "memory-probe" }
func (p *memoryProbe) Category() Category { return CategoryMemory }
func (p *memoryProbe) Init() error        { return nil }
func (p *memoryProbe) Close() error       { return nil }

func (p *memoryProbe) Collect(ctx context.Context, _ *Update) ([]*Node, error) {
	vm, err := p.virtual(ctx)
	if err != nil {
		return nil, fmt.Errorf("get virtual memory: %w", err)
	}
	node := &Node{
		Identity: Identity{Category: CategoryMemory, Name: "Generic Memory"},
		Sensors: []Sensor{
			{Type: Load, Name: "Memory", Value: vm.UsedPercent, Valid: true},
			{Type: Data, Name: "Memory Used", Value: float64(vm.Used) / gib, Valid: true},
			{Type: Data, Name: "Memory Available", Value: float64(vm.Available) / gib, Valid: true},
		},
	}
	// Swap is optional; an error leaves its sensors unreadable.
	sw, err := p.swap(ctx)
	swapOK := err == nil && sw != nil && sw.Total > 0
	var swapPercent, swapUsed float64
	if swapOK {
		swapPercent = sw.UsedPercent
		swapUsed = float64(sw.Used) / gib
	}
	node.Sensors = append(node.Sensors,
		Sensor{Type: Load, Name: "Virtual Memory", Value: swapPercent, Valid: swapOK},
		Sensor{Type: Data, Name: "Virtual Memory Used", Value: swapUsed, Valid: swapOK},
	)
	return []*Node{node}, nil
}
