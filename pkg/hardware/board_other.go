//go:build !linux && !windows

package hardware

func boardName() string { return "" }
