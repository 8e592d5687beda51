package hardware

import (
	"context"
	"math"
)

// Category 硬件类别，决定节点在 MetricKey 中的第一段
type Category string

const (
	CategoryCPU         Category = "cpu"
	CategoryGPU         Category = "gpu"
	CategoryMotherboard Category = "motherboard"
	CategoryMemory      Category = "memory"
	CategoryNetwork     Category = "network"
	CategoryStorage     Category = "storage"
	CategoryController  Category = "controller"
)

// SensorType is the kind of quantity a sensor measures.
type SensorType int

const (
	Temperature SensorType = iota
	Load
	Clock
	Power
	Voltage
	Fan
	Control
	Level
	Data
	SmallData
	Throughput
	Factor
	Flow
	Noise
)

var sensorTypeNames = [...]string{
	Temperature: "temperature",
	Load:        "load",
	Clock:       "clock",
	Power:       "power",
	Voltage:     "voltage",
	Fan:         "fan",
	Control:     "control",
	Level:       "level",
	Data:        "data",
	SmallData:   "smalldata",
	Throughput:  "throughput",
	Factor:      "factor",
	Flow:        "flow",
	Noise:       "noise",
}

var sensorTypeUnits = [...]string{
	Temperature: "celsius",
	Load:        "percent",
	Clock:       "mhz",
	Power:       "watts",
	Voltage:     "volts",
	Fan:         "rpm",
	Control:     "percent",
	Level:       "percent",
	Data:        "gigabytes",
	SmallData:   "megabytes",
	Throughput:  "bytes_per_second",
	Factor:      "ratio",
	Flow:        "liters_per_hour",
	Noise:       "dba",
}

func (t SensorType) String() string {
	if t < 0 || int(t) >= len(sensorTypeNames) {
		return "unknown"
	}
	return sensorTypeNames[t]
}

// Unit returns the unit readings of this type are reported in.
func (t SensorType) Unit() string {
	if t < 0 || int(t) >= len(sensorTypeUnits) {
		return ""
	}
	return sensorTypeUnits[t]
}


// Identity 硬件节点身份：类别 + 型号标签 + 类别内稳定序号
type Identity struct {
	Category Category
	Name     string
	Index    int
}

// Sensor is a single value exposed by a hardware node. Valid is false when
// the source could not read the value during the last update.
type Sensor struct {
	Type  SensorType
	Name  string
	Index int
	Value float64
	Valid bool
}

// Readable reports whether the sensor carries a usable value.
func (s Sensor) Readable() bool {
	return s.Valid && !math.IsNaN(s.Value)
}

// Node is one piece of hardware (or a sub-component of one) in the tree
// returned by a Source.
type Node struct {
	Identity Identity
	Sensors  []Sensor
	Children []*Node
}

// Source 硬件数据源（外部协作者）
// Update refreshes the hardware tree and returns its roots in a stable order.
// Implementations are not required to be safe for concurrent use; callers must
// serialize Update. An error means the source as a whole could not be read.
type Source interface {
	Update(ctx context.Context) ([]*Node, error)
	Close() error
}

// Enablement 各硬件类别开关
type Enablement struct {
	CPU         bool
	GPU         bool
	Motherboard bool
	Memory      bool
	Network     bool
	Storage     bool
	Controller  bool
}

// AllEnabled returns an Enablement with every category switched on.
func AllEnabled() Enablement {
	return Enablement{CPU: true, GPU: true, Motherboard: true, Memory: true, Network: true, Storage: true, Controller: true}
}

// Enabled reports whether the given category is switched on.
func (e Enablement) Enabled(c Category) bool {
	switch c {
	case CategoryCPU:
		return e.CPU
	case CategoryGPU:
		return e.GPU
	case CategoryMotherboard:
		return e.Motherboard
	case CategoryMemory:
		return e.Memory
	case CategoryNetwork:
		return e.Network
	case CategoryStorage:
		return e.Storage
	case CategoryController:
		return e.Controller
	}
	return false
}
