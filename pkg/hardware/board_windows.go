//go:build windows

package hardware

import (
	"strings"

	"github.com/StackExchange/wmi"
)

type win32BaseBoard struct {
	Manufacturer string
	Product      string
}

func boardName() string {
	var boards []win32BaseBoard
	if err := wmi.Query("SELECT Manufacturer, Product FROM Win32_BaseBoard", &boards); err != nil || len(boards) == 0 {
		return ""
	}
	return strings.TrimSpace(boards[0].Manufacturer + " " + boards[0].Product)
}
