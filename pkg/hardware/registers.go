package hardware

import (
	"go.uber.org/zap"
)

// Module 采集模块注册项：开关控制 + 名称 + 构造函数
type Module struct {
	Enabled bool
	Name    string
	NewFunc func() Probe
}

// RegisterProbes 采集器注册统一入口
// 新增硬件类别只需在 modules 列表添加一条，不必写重复的 if/else。
// The table order is the order categories appear in every snapshot.
func RegisterProbes(enable Enablement, logger *zap.Logger) []Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	modules := []Module{
		{
			Enabled: enable.CPU,
			Name:    string(CategoryCPU),
			NewFunc: func() Probe { return newCPUProbe() },
		},
		{
			Enabled: enable.GPU,
			Name:    string(CategoryGPU),
			NewFunc: func() Probe { return newGPUProbe(logger) },
		},
		{
			Enabled: enable.Motherboard,
			Name:    string(CategoryMotherboard),
			NewFunc: func() Probe { return newMotherboardProbe() },
		},
		{
			Enabled: enable.Memory,
			Name:    string(CategoryMemory),
			NewFunc: func() Probe { return newMemoryProbe() },
		},
		{
			Enabled: enable.Network,
			Name:    string(CategoryNetwork),
			NewFunc: func() Probe { return newNetworkProbe() },
		},
		{
			Enabled: enable.Storage,
			Name:    string(CategoryStorage),
			NewFunc: func() Probe { return newStorageProbe() },
		},
		{
			Enabled: enable.Controller,
			Name:    string(CategoryController),
			NewFunc: func() Probe { return newControllerProbe() },
		},
	}

	var registered []Probe
	var names []string
	for _, m := range modules {
		if !m.Enabled {
			logger.Debug("hardware category disabled", zap.String("name", m.Name))
			continue
		}
		registered = append(registered, m.NewFunc())
		names = append(names, m.Name)
	}
	logger.Debug("all enabled hardware probes registered", zap.Strings("enabled_probes", names))
	return registered
}
