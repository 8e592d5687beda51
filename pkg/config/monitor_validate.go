package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sensor-collector/pkg/hardware"
)

// Hostname lookup modes.
const (
	NameLookupNetbios = "netbios"
	NameLookupFQDN    = "fqdn"
	NameLookupDNS     = "dns"
)

// MaxInterval caps monitor.interval and every backend interval override.
const MaxInterval = time.Hour

// Validate 采集配置校验
func (m *MonitorConfig) Validate() error {
	if err := valid.Struct(m); err != nil {
		return err
	}
	if m.Interval <= 0 || m.Interval > MaxInterval {
		return fmt.Errorf("monitor.interval must be > 0 and at most %s, got %s", MaxInterval, m.Interval)
	}
	return nil
}

// 可在测试中替换
var (
	osHostname  = os.Hostname
	lookupCNAME = net.LookupCNAME
)

// LookupName resolves the hostname that prefixes every metric key: the
// override when set, otherwise the OS hostname, or its canonical DNS name for
// the fqdn/dns modes. A failed DNS lookup falls back to the OS hostname.
func (m *MonitorConfig) LookupName() (string, error) {
	if h := strings.TrimSpace(m.Hostname); h != "" {
		return h, nil
	}
	host, err := osHostname()
	if err != nil {
		return "", fmt.Errorf("get os hostname: %w", err)
	}
	switch strings.ToLower(m.NameLookup) {
	case NameLookupFQDN, NameLookupDNS:
		cname, err := lookupCNAME(host)
		if err != nil || cname == "" {
			return host, nil
		}
		return strings.TrimSuffix(cname, "."), nil
	default:
		// netbios: short name only
		short, _, _ := strings.Cut(host, ".")
		return short, nil
	}
}

// Enablement 转换为硬件类别开关
func (h HardwareConfig) Enablement() hardware.Enablement {
	return hardware.Enablement{
		CPU:         h.CPU,
		GPU:         h.GPU,
		Motherboard: h.Motherboard,
		Memory:      h.Memory,
		Network:     h.Network,
		Storage:     h.Storage,
		Controller:  h.Controller,
	}
}
