//go:build linux

package hardware

import (
	"os"
	"path/filepath"
	"strings"
)

const dmiRoot = "/sys/class/dmi/id"

func boardName() string {
	return boardNameFrom(dmiRoot)
}

// boardNameFrom reads "<vendor> <board>" from a DMI directory.
func boardNameFrom(root string) string {
	vendor := readSysfsValue(filepath.Join(root, "board_vendor"))
	product := readSysfsValue(filepath.Join(root, "board_name"))
	return strings.TrimSpace(vendor + " " + product)
}

func readSysfsValue(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
