package writer

import (
	"math"
	"time"

	"github.com/sensor-collector/pkg/hardware"
	"github.com/sensor-collector/pkg/sensor"
)

var testTime = time.Unix(1700000000, 0).UTC()

func testSnapshot() sensor.Snapshot {
	cpu := []hardware.Identity{{Category: hardware.CategoryCPU, Name: "Ryzen 7", Index: 0}}
	fan := []hardware.Identity{
		{Category: hardware.CategoryMotherboard, Name: "Board", Index: 0},
		{Category: hardware.CategoryMotherboard, Name: "nct6775", Index: 0},
	}
	return sensor.Snapshot{
		Host: "box",
		Time: testTime,
		Readings: []sensor.Reading{
			{Key: "host.cpu.temp", Path: cpu, Type: hardware.Temperature, Name: "Tctl", Value: 55.5, Time: testTime},
			{Key: "box.motherboard.0.motherboard.0.fan.cpu_fan", Path: fan, Type: hardware.Fan, Name: "CPU Fan", Index: 1, Value: 1200, Time: testTime},
			{Key: "box.cpu.0.power.package", Path: cpu, Type: hardware.Power, Name: "Package", Value: math.NaN(), Time: testTime},
		},
	}
}
