package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registers 隔离 Prometheus 默认实现，便于单测替换
// Exposition registers and unregisters gauges through it and renders
// what it gathers.
type Registers interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// promRegistry Prometheus 实现，内部包裹了官方的 *prometheus.Registry
type promRegistry struct {
	registry *prometheus.Registry
}

// NewPromRegistry 创建 Prometheus 指标注册器；registry 为 nil 时新建
func NewPromRegistry(registry *prometheus.Registry) Registers {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &promRegistry{registry: registry}
}

// Register 实现 prometheus.Registerer
func (p *promRegistry) Register(c prometheus.Collector) error {
	return p.registry.Register(c)
}

// MustRegister 实现 prometheus.Registerer
func (p *promRegistry) MustRegister(collectors ...prometheus.Collector) {
	p.registry.MustRegister(collectors...)
}

// Unregister 实现 prometheus.Registerer
func (p *promRegistry) Unregister(c prometheus.Collector) bool {
	return p.registry.Unregister(c)
}

// Gather 实现 prometheus.Gatherer
func (p *promRegistry) Gather() ([]*dto.MetricFamily, error) {
	return p.registry.Gather()
}
