package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body += "\nlog:\n  path: " + filepath.Join(dir, "logs") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileGraphite(t *testing.T) {
	path := writeConfig(t, `
monitor:
  interval: 10s
  hostname: desk-01
hardware:
  gpu: false
graphite:
  host: carbon.local
  tags:
    env: lab
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Interval)
	assert.False(t, cfg.Hardware.GPU)
	assert.True(t, cfg.Hardware.CPU, "unspecified categories stay enabled")

	b, err := cfg.SelectBackend()
	require.NoError(t, err)
	g, ok := b.(GraphiteBackend)
	require.True(t, ok)
	assert.Equal(t, "carbon.local", g.Config.Host)
	assert.Equal(t, DefaultGraphitePort, g.Config.Port)
	assert.Equal(t, "lab", g.Config.Tags["env"])
	assert.Equal(t, 10*time.Second, g.Interval)
}

func TestLoadFileRejectsGraphiteAndPrometheus(t *testing.T) {
	path := writeConfig(t, `
graphite:
  host: carbon.local
prometheus:
  port: 4445
`)
	_, err := LoadFile(path)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "backend", cfgErr.Section)
	assert.Contains(t, err.Error(), "graphite, prometheus")
}

func TestLoadFileRejectsNoBackend(t *testing.T) {
	path := writeConfig(t, "monitor:\n  interval: 5s\n")
	_, err := LoadFile(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "no backend configured")
}

func TestSelectBackendIntervalOverride(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Influx = &InfluxConfig{Address: "http://influx:8086", DB: "ohm", Interval: 30 * time.Second}
	b, err := cfg.SelectBackend()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, b.(InfluxBackend).Interval)

	cfg.Influx.Interval = -time.Second
	_, err = cfg.SelectBackend()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "influx", cfgErr.Section)
}

func TestSelectBackendCapsIntervalOverride(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Graphite = &GraphiteConfig{Host: "carbon", Port: 2003, Interval: MaxInterval}
	b, err := cfg.SelectBackend()
	require.NoError(t, err)
	assert.Equal(t, MaxInterval, b.(GraphiteBackend).Interval)

	cfg.Graphite.Interval = MaxInterval + time.Second
	_, err = cfg.SelectBackend()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "graphite", cfgErr.Section)
	assert.Contains(t, err.Error(), "at most 1h0m0s")
}

func TestSelectBackendInvalidInterval(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Monitor.Interval = 0
	cfg.Timescale = &TimescaleConfig{Connection: "postgres://localhost/ohm"}
	_, err := cfg.SelectBackend()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "interval must be > 0")
}

func TestSelectBackendVariants(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Prometheus = &PrometheusConfig{Port: 9100}
	b, err := cfg.SelectBackend()
	require.NoError(t, err)
	assert.Equal(t, "prometheus", b.Name())

	cfg = NewDefaultConfig()
	cfg.Timescale = &TimescaleConfig{}
	_, err = cfg.SelectBackend()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "timescale", cfgErr.Section)

	cfg = NewDefaultConfig()
	cfg.Influx = &InfluxConfig{Address: "http://influx:8086", Token: "t"}
	_, err = cfg.SelectBackend()
	require.ErrorAs(t, err, &cfgErr, "v2 needs org and bucket")
}

func TestMonitorValidate(t *testing.T) {
	m := MonitorConfig{Interval: 5 * time.Second, NameLookup: "netbios"}
	assert.NoError(t, m.Validate())

	m.NameLookup = "wins"
	assert.Error(t, m.Validate())

	m = MonitorConfig{Interval: 2 * time.Hour}
	assert.Error(t, m.Validate())
}

func TestLookupName(t *testing.T) {
	origHost, origCNAME := osHostname, lookupCNAME
	t.Cleanup(func() { osHostname, lookupCNAME = origHost, origCNAME })
	osHostname = func() (string, error) { return "desk-01.corp.example", nil }
	lookupCNAME = func(string) (string, error) { return "desk-01.corp.example.", nil }

	m := MonitorConfig{Hostname: "  override  "}
	name, err := m.LookupName()
	require.NoError(t, err)
	assert.Equal(t, "override", name)

	m = MonitorConfig{NameLookup: NameLookupNetbios}
	name, err = m.LookupName()
	require.NoError(t, err)
	assert.Equal(t, "desk-01", name)

	m = MonitorConfig{NameLookup: NameLookupFQDN}
	name, err = m.LookupName()
	require.NoError(t, err)
	assert.Equal(t, "desk-01.corp.example", name)

	lookupCNAME = func(string) (string, error) { return "", errors.New("no such host") }
	m = MonitorConfig{NameLookup: NameLookupDNS}
	name, err = m.LookupName()
	require.NoError(t, err)
	assert.Equal(t, "desk-01.corp.example", name)
}

func TestLogValidate(t *testing.T) {
	l := NewDefaultConfig().Log
	l.Path = filepath.Join(t.TempDir(), "nested", "logs")
	require.NoError(t, l.Validate())
	assert.DirExists(t, l.Path)

	l.Level = "verbose"
	assert.Error(t, l.Validate())
}

func TestLoadConfigWithCliFlags(t *testing.T) {
	path := writeConfig(t, "prometheus:\n  host: 127.0.0.1\n")
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", path, "")
	cmd.Flags().Duration("monitor.interval", 5*time.Second, "")
	cmd.Flags().Bool("hardware.storage", true, "")
	require.NoError(t, cmd.Flags().Set("monitor.interval", "15s"))
	require.NoError(t, cmd.Flags().Set("hardware.storage", "false"))

	cfg, err := LoadConfigWithCli(cmd)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Monitor.Interval)
	assert.False(t, cfg.Hardware.Storage)
	require.NotNil(t, cfg.Prometheus)
	assert.Equal(t, DefaultPrometheusPort, cfg.Prometheus.Port)
}
