package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewAgentCollectErrorsTotal 创建「采集错误总数」指标
// 指标类型：Counter - 统计 scrape 触发的传感器采集失败次数
// 标签说明：collector: 采集来源（固定为 "sensor"）
func (m *MetricFactory) NewAgentCollectErrorsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_collect_errors_total",
		Help: "Total collection errors",
	}, []string{"collector"})
	m.reg.MustRegister(c)
	return c
}

// NewAgentCollectDurationSeconds 创建「采集耗时分布」指标
// 指标类型：Histogram - 每次 scrape 的刷新+展开耗时（秒）
// 分桶说明：0.01s ~ 5.12s 指数分桶，覆盖 WMI/nvidia-smi 较慢的场景
func (m *MetricFactory) NewAgentCollectDurationSeconds() *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_collect_duration_seconds",
		Help:    "Collection duration per collector",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"collector"})
	m.reg.MustRegister(h)
	return h
}
