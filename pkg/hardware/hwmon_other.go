//go:build !linux

package hardware

// hwmon is a Linux interface; elsewhere chips come from gopsutil temperatures only.
func readHwmon() ([]Chip, error) { return nil, nil }
