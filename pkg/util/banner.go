// Package util holds the startup banner.
package util

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
)

// Color ANSI 颜色码
type Color string

const (
	ColorReset Color = "\x1b[0m"
	ColorRed   Color = "\x1b[1;31m"
	ColorGreen Color = "\x1b[1;32m"
	ColorBlue  Color = "\x1b[1;34m"
)

// PrintBanner 打印整体统一颜色的 ASCII banner，version 非空时追加在下一行
func PrintBanner(w io.Writer, text, version string, color Color) {
	fig := figure.NewFigure(text, "", true)
	for _, line := range fig.Slicify() {
		fmt.Fprintln(w, string(color)+line+string(ColorReset))
	}
	if version != "" {
		fmt.Fprintf(w, "%s%s%s\n", color, version, ColorReset)
	}
}
