package hardware

import (
	"context"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Chip name prefixes per category. Anything unmatched belongs to the motherboard.
var chipClasses = []struct {
	category Category
	prefixes []string
}{
	{CategoryCPU, []string{"coretemp", "k10temp", "k8temp", "zenpower", "cpu", "x86", "soc"}},
	{CategoryGPU, []string{"amdgpu", "radeon", "nouveau", "i915", "nvidia"}},
	{CategoryStorage, []string{"nvme", "drivetemp"}},
	{CategoryController, []string{"corsaircpro", "corsair", "nzxt", "kraken", "d5next", "aquacomputer", "quadro", "octo", "farbwerk", "highflownext"}},
}

// ClassifyChip maps a sensor chip name to the category that owns it.
func ClassifyChip(chip string) Category {
	name := strings.ToLower(chip)
	for _, class := range chipClasses {
		for _, prefix := range class.prefixes {
			if strings.HasPrefix(name, prefix) {
				return class.category
			}
		}
	}
	return CategoryMotherboard
}

// readTemperatures reads every temperature sensor gopsutil can see and groups
// them per chip. gopsutil reports partial results together with a warnings
// error, so readings are kept even when err is non-nil.
func readTemperatures(ctx context.Context) ([]Chip, error) {
	stats, err := host.SensorsTemperaturesWithContext(ctx)
	return temperatureChips(stats), err
}

func temperatureChips(stats []host.TemperatureStat) []Chip {
	byChip := make(map[string]*Chip)
	// a label seen again under the same chip name belongs to the next device
	seen := make(map[string]map[string]int)
	var order []string
	for _, st := range stats {
		chip, label := splitSensorKey(st.SensorKey)
		if seen[chip] == nil {
			seen[chip] = make(map[string]int)
		}
		n := seen[chip][label]
		seen[chip][label]++

		name := instanceName(chip, n)
		c, ok := byChip[name]
		if !ok {
			c = &Chip{Name: name, Instance: n}
			byChip[name] = c
			order = append(order, name)
		}
		c.Sensors = append(c.Sensors, Sensor{
			Type:  Temperature,
			Name:  label,
			Value: st.Temperature,
			// 0 °C from a thermal zone means the zone could not be read.
			Valid: st.Temperature > -200 && st.Temperature != 0,
		})
	}
	sort.Strings(order)
	chips := make([]Chip, 0, len(order))
	for _, name := range order {
		chips = append(chips, *byChip[name])
	}
	return chips
}

// splitSensorKey splits a gopsutil sensor key such as "coretemp_package_id_0"
// into the chip ("coretemp") and a readable label ("package id 0").
func splitSensorKey(key string) (chip, label string) {
	key = strings.TrimSpace(key)
	chip, rest, found := strings.Cut(key, "_")
	if !found || rest == "" {
		return key, key
	}
	return chip, strings.ReplaceAll(rest, "_", " ")
}
