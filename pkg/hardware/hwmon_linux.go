//go:build linux

package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const hwmonRoot = "/sys/class/hwmon"

// hwmon attribute files read in addition to the temperatures gopsutil covers.
var hwmonAttr = regexp.MustCompile(`^(fan|in|power|pwm)(\d+)(_input|_average)?$`)

func readHwmon() ([]Chip, error) {
	return readHwmonFrom(hwmonRoot)
}

// readHwmonFrom reads fans, voltages, power and PWM duty cycles of every
// hwmon device below root. Unreadable attributes become invalid sensors.
func readHwmonFrom(root string) ([]Chip, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	var chips []Chip
	instances := make(map[string]int)
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "hwmon") {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		name := readSysfsValue(filepath.Join(dir, "name"))
		if name == "" {
			continue
		}
		// numbered before filtering so instances line up with the temperature chips
		n := instances[name]
		instances[name]++
		sensors := readHwmonDir(dir)
		if len(sensors) == 0 {
			continue
		}
		chips = append(chips, Chip{Name: instanceName(name, n), Sensors: sensors, Instance: n})
	}
	sort.SliceStable(chips, func(i, j int) bool { return chips[i].Name < chips[j].Name })
	return chips, nil
}

func readHwmonDir(dir string) []Sensor {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var sensors []Sensor
	for _, f := range files {
		m := hwmonAttr.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		kind, num, suffix := m[1], m[2], m[3]
		switch kind {
		case "fan", "in":
			if suffix != "_input" {
				continue
			}
		case "power":
			if suffix == "" {
				continue
			}
		case "pwm":
			if suffix != "" {
				continue
			}
		}
		id := kind + num
		if seen[id] {
			// power*_input and power*_average describe the same rail
			continue
		}
		seen[id] = true

		raw, err := strconv.ParseFloat(readSysfsValue(filepath.Join(dir, f.Name())), 64)
		s := Sensor{Name: hwmonLabel(dir, kind, num), Valid: err == nil}
		switch kind {
		case "fan":
			s.Type, s.Value = Fan, raw
		case "in":
			s.Type, s.Value = Voltage, raw/1000
		case "power":
			s.Type, s.Value = Power, raw/1e6
		case "pwm":
			s.Type, s.Value = Control, raw*100/255
		}
		sensors = append(sensors, s)
	}
	return sensors
}

var hwmonDefaultNames = map[string]string{
	"fan":   "Fan",
	"in":    "Voltage",
	"power": "Power",
	"pwm":   "Fan Control",
}

func hwmonLabel(dir, kind, num string) string {
	if label := readSysfsValue(filepath.Join(dir, kind+num+"_label")); label != "" {
		return label
	}
	return hwmonDefaultNames[kind] + " #" + num
}
