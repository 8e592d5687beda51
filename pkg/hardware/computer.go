package hardware

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Probe 单个硬件类别的采集器（Computer 内部使用）
type Probe interface {
	Name() string                                            // 采集器名称（唯一标识）
	Category() Category                                      // 所属硬件类别
	Init() error                                             // 初始化（预检查资源）
	Collect(ctx context.Context, u *Update) ([]*Node, error) // 刷新并返回该类别的根节点
	Close() error                                            // 关闭（释放资源）
}

// Update carries the readings shared by every probe during one refresh, so
// that system-wide tables (temperatures, hwmon chips) are read once.
type Update struct {
	Now   time.Time
	Chips map[Category][]Chip
}

// Chip is a sensor chip (hwmon device, thermal zone) with the sensors read
// from it during the current refresh.
type Chip struct {
	Name    string
	Sensors []Sensor
	// Instance numbers devices that report the same chip name (two NVMe
	// drives, one coretemp per socket) in discovery order, from 0.
	Instance int
}

// instanceName names the n-th device sharing a chip name: "nvme", "nvme #2", ...
func instanceName(name string, n int) string {
	if n == 0 {
		return name
	}
	return name + " #" + strconv.Itoa(n+1)
}

// ErrNoProbes is returned by NewComputer when the enablement switches every
// category off.
var ErrNoProbes = errors.New("no hardware category enabled")

// Computer is the Source implementation backed by gopsutil, Linux hwmon,
// nvidia-smi and WMI. It keeps delta state between updates (network and
// disk rates) and is therefore not safe for concurrent use.
type Computer struct {
	probes       []Probe
	customProbes bool
	clock        clockwork.Clock
	logger       *zap.Logger
	readers      chipReaders
}

// chipReaders are the system-wide tables read once per update. Tests replace them.
type chipReaders struct {
	temperatures func(ctx context.Context) ([]Chip, error)
	hwmon        func() ([]Chip, error)
}

// Option configures a Computer.
type Option func(*Computer)

// WithClock overrides the clock used to timestamp rate computations.
func WithClock(c clockwork.Clock) Option {
	return func(cp *Computer) { cp.clock = c }
}

// WithLogger sets the logger used for per-probe failures.
func WithLogger(l *zap.Logger) Option {
	return func(cp *Computer) {
		if l != nil {
			cp.logger = l
		}
	}
}

// WithProbes replaces the registered probe table.
func WithProbes(probes ...Probe) Option {
	return func(cp *Computer) {
		cp.probes = probes
		cp.customProbes = true
	}
}

// NewComputer registers one probe per enabled category and initialises them.
func NewComputer(enable Enablement, opts ...Option) (*Computer, error) {
	c := &Computer{
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
		readers: chipReaders{
			temperatures: readTemperatures,
			hwmon:        readHwmon,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.customProbes {
		c.probes = RegisterProbes(enable, c.logger)
	}
	if len(c.probes) == 0 {
		return nil, ErrNoProbes
	}
	for _, p := range c.probes {
		if err := p.Init(); err != nil {
			return nil, fmt.Errorf("probe %s init failed: %w", p.Name(), err)
		}
		c.logger.Debug("probe initialized", zap.String("name", p.Name()))
	}
	return c, nil
}

// Update implements Source. A probe that fails is logged and its category is
// left out of the tree; the update only fails when every probe failed.
func (c *Computer) Update(ctx context.Context) ([]*Node, error) {
	u := &Update{Now: c.clock.Now(), Chips: make(map[Category][]Chip)}
	c.readChips(ctx, u)

	var (
		roots []*Node
		errs  error
		ok    int
	)
	for _, p := range c.probes {
		nodes, err := p.Collect(ctx, u)
		if err != nil {
			c.logger.Warn("probe collect failed", zap.String("name", p.Name()), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		ok++
		roots = append(roots, nodes...)
	}
	if ok == 0 {
		return nil, fmt.Errorf("all hardware probes failed: %w", errs)
	}
	assignIndices(roots)
	return roots, nil
}

func (c *Computer) readChips(ctx context.Context, u *Update) {
	var chips []Chip
	if c.readers.temperatures != nil {
		temps, err := c.readers.temperatures(ctx)
		if err != nil {
			c.logger.Debug("temperature sensors partially unavailable", zap.Error(err))
		}
		chips = append(chips, temps...)
	}
	if c.readers.hwmon != nil {
		hw, err := c.readers.hwmon()
		if err != nil {
			c.logger.Debug("hwmon unavailable", zap.Error(err))
		}
		chips = append(chips, hw...)
	}
	for cat, list := range groupChips(chips) {
		u.Chips[cat] = list
	}
}

// Close closes every probe and returns their combined error.
func (c *Computer) Close() error {
	var err error
	for _, p := range c.probes {
		err = multierr.Append(err, p.Close())
	}
	return err
}

// groupChips merges chips with the same name, classifies them and sorts
// chips by name and sensors by type then name, giving a stable order.
func groupChips(chips []Chip) map[Category][]Chip {
	merged := make(map[string]*Chip)
	var names []string
	for _, ch := range chips {
		m, ok := merged[ch.Name]
		if !ok {
			m = &Chip{Name: ch.Name, Instance: ch.Instance}
			merged[ch.Name] = m
			names = append(names, ch.Name)
		}
		m.Sensors = append(m.Sensors, ch.Sensors...)
	}
	sort.Strings(names)

	out := make(map[Category][]Chip)
	for _, name := range names {
		ch := merged[name]
		sort.SliceStable(ch.Sensors, func(i, j int) bool {
			if ch.Sensors[i].Type != ch.Sensors[j].Type {
				return ch.Sensors[i].Type < ch.Sensors[j].Type
			}
			return ch.Sensors[i].Name < ch.Sensors[j].Name
		})
		cat := ClassifyChip(name)
		out[cat] = append(out[cat], *ch)
	}
	return out
}

// chipNodes turns chips into nodes of the given category.
func chipNodes(cat Category, chips []Chip) []*Node {
	nodes := make([]*Node, 0, len(chips))
	for _, ch := range chips {
		nodes = append(nodes, &Node{
			Identity: Identity{Category: cat, Name: ch.Name},
			Sensors:  ch.Sensors,
		})
	}
	return nodes
}

// assignIndices numbers root nodes per category and sensors per type within
// each node, in tree order.
func assignIndices(roots []*Node) {
	perCategory := make(map[Category]int)
	for _, n := range roots {
		n.Identity.Index = perCategory[n.Identity.Category]
		perCategory[n.Identity.Category]++
		indexSubtree(n)
	}
}

func indexSubtree(n *Node) {
	perType := make(map[SensorType]int)
	for i := range n.Sensors {
		n.Sensors[i].Index = perType[n.Sensors[i].Type]
		perType[n.Sensors[i].Type]++
	}
	for i, child := range n.Children {
		child.Identity.Index = i
		indexSubtree(child)
	}
}
