package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sensor-collector/pkg/sensor"
)

// MetricFactory 指标工厂，用于统一创建指标（counter/gauge/histogram）。
type MetricFactory struct {
	reg Registers
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// NewSensorGauge 为一个 MetricKey 创建并注册 Gauge
// The reading's identity is carried as const labels; help names the unit.
func (m *MetricFactory) NewSensorGauge(host string, r sensor.Reading) (prometheus.Gauge, error) {
	hw := r.Hardware()
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: GaugeName(r.Key),
		Help: fmt.Sprintf("%s sensor reading in %s", r.Type, r.Type.Unit()),
		ConstLabels: prometheus.Labels{
			"host":          host,
			"hardware":      hw.Name,
			"hardware_type": string(hw.Category),
			"sensor":        r.Name,
			"sensor_type":   r.Type.String(),
		},
	})
	if err := m.reg.Register(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Unregister 移除不再出现的指标
func (m *MetricFactory) Unregister(c prometheus.Collector) bool {
	return m.reg.Unregister(c)
}
