package hardware

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// nvidiaQuery lists the nvidia-smi columns in the order parseNvidiaSMI expects.
var nvidiaQuery = []struct {
	field string
	typ   SensorType
	name  string
}{
	{"index", 0, ""},
	{"name", 0, ""},
	{"temperature.gpu", Temperature, "GPU Core"},
	{"utilization.gpu", Load, "GPU Core"},
	{"utilization.memory", Load, "GPU Memory Controller"},
	{"clocks.gr", Clock, "GPU Core"},
	{"clocks.mem", Clock, "GPU Memory"},
	{"power.draw", Power, "GPU Package"},
	{"fan.speed", Control, "GPU Fan"},
	{"memory.used", SmallData, "GPU Memory Used"},
	{"memory.total", SmallData, "GPU Memory Total"},
}

// gpuProbe reads NVIDIA GPUs through nvidia-smi and every other GPU through
// the chips (hwmon, thermal) classified as GPU.
type gpuProbe struct {
	logger   *zap.Logger
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
	smi      string
}

func newGPUProbe(logger *zap.Logger) *gpuProbe {
	return &gpuProbe{
		logger:   logger,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

func (p *gpuProbe) Name() string       { return "gpu-probe" }
func (p *gpuProbe) Category() Category { return CategoryGPU }
func (p *gpuProbe) Close() error       { return nil }

// Init locates nvidia-smi. Its absence is not an error, NVIDIA GPUs are then skipped.
func (p *gpuProbe) Init() error {
	path, err := p.lookPath("nvidia-smi")
	if err != nil || path == "" {
		p.logger.Debug("nvidia-smi not found, skipping NVIDIA GPUs")
		return nil
	}
	p.smi = path
	return nil
}

func (p *gpuProbe) Collect(ctx context.Context, u *Update) ([]*Node, error) {
	var nodes []*Node
	if p.smi != "" {
		fields := make([]string, len(nvidiaQuery))
		for i, q := range nvidiaQuery {
			fields[i] = q.field
		}
		out, err := p.run(ctx, p.smi, "--query-gpu="+strings.Join(fields, ","), "--format=csv,noheader,nounits")
		if err != nil {
			// NVIDIA GPUs drop out of this update, other GPUs are still reported.
			p.logger.Warn("nvidia-smi query failed", zap.Error(err))
		} else {
			nodes = append(nodes, parseNvidiaSMI(string(out))...)
		}
	}
	return append(nodes, chipNodes(CategoryGPU, u.Chips[CategoryGPU])...), nil
}

// parseNvidiaSMI parses csv,noheader,nounits output. Values nvidia-smi cannot
// provide ("[N/A]", "[Not Supported]") become unreadable sensors.
func parseNvidiaSMI(out string) []*Node {
	var nodes []*Node
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		cols := strings.Split(line, ",")
		if len(cols) != len(nvidiaQuery) {
			continue
		}
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		node := &Node{Identity: Identity{Category: CategoryGPU, Name: cols[1]}}
		for i, q := range nvidiaQuery[2:] {
			v, err := strconv.ParseFloat(cols[i+2], 64)
			node.Sensors = append(node.Sensors, Sensor{Type: q.typ, Name: q.name, Value: v, Valid: err == nil})
		}
		nodes = append(nodes, node)
	}
	return nodes
}
