package agent

import (
	"github.com/spf13/cobra"
)

// initMonitorFlags 采集相关 flag；后端段没有 flag，否则默认值会让每个后端都“存在”
func initMonitorFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Duration("monitor.interval", defaultCfg.Monitor.Interval, "-> Push interval of graphite/influx/timescale | 推送间隔")
	f.String("monitor.hostname", defaultCfg.Monitor.Hostname, "-> Hostname override used as metric key prefix | 主机名覆盖")
	f.String("monitor.name_lookup", defaultCfg.Monitor.NameLookup, "-> Hostname lookup [netbios,fqdn,dns] | 主机名探测方式")
}

func initHardwareFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	hw := defaultCfg.Hardware

	f.Bool("hardware.cpu", hw.CPU, "-> Enable CPU sensors | 启用 CPU")
	f.Bool("hardware.gpu", hw.GPU, "-> Enable GPU sensors | 启用 GPU")
	f.Bool("hardware.motherboard", hw.Motherboard, "-> Enable motherboard sensors | 启用主板")
	f.Bool("hardware.memory", hw.Memory, "-> Enable memory sensors | 启用内存")
	f.Bool("hardware.network", hw.Network, "-> Enable network sensors | 启用网卡")
	f.Bool("hardware.storage", hw.Storage, "-> Enable storage sensors | 启用磁盘")
	f.Bool("hardware.controller", hw.Controller, "-> Enable fan/cooler controller sensors | 启用风扇控制器")
}
