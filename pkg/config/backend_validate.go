package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ConfigurationError is a configuration the process must not start with.
type ConfigurationError struct {
	Section string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Section, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(section string, err error) *ConfigurationError {
	return &ConfigurationError{Section: section, Err: err}
}

// Backend is the single export target chosen by SelectBackend. The concrete
// type is one of GraphiteBackend, PrometheusBackend, TimescaleBackend or
// InfluxBackend.
type Backend interface {
	Name() string
	isBackend()
}

// GraphiteBackend 推送到 Graphite
type GraphiteBackend struct {
	Config   GraphiteConfig
	Interval time.Duration // effective push interval
}

// PrometheusBackend 由 Prometheus 拉取
type PrometheusBackend struct {
	Config PrometheusConfig
}

// TimescaleBackend 推送到 TimescaleDB
type TimescaleBackend struct {
	Config   TimescaleConfig
	Interval time.Duration
}

// InfluxBackend 推送到 InfluxDB
type InfluxBackend struct {
	Config   InfluxConfig
	Interval time.Duration
}

func (GraphiteBackend) Name() string   { return "graphite" }
func (PrometheusBackend) Name() string { return "prometheus" }
func (TimescaleBackend) Name() string  { return "timescale" }
func (InfluxBackend) Name() string     { return "influx" }

func (GraphiteBackend) isBackend()   {}
func (PrometheusBackend) isBackend() {}
func (TimescaleBackend) isBackend()  {}
func (InfluxBackend) isBackend()     {}

// SelectBackend validates that exactly one backend section is present and
// returns it with its effective interval resolved. Zero or several sections,
// an invalid section or a non-positive interval yield a *ConfigurationError.
func (c *Config) SelectBackend() (Backend, error) {
	var present []string
	if c.Graphite != nil {
		present = append(present, "graphite")
	}
	if c.Prometheus != nil {
		present = append(present, "prometheus")
	}
	if c.Timescale != nil {
		present = append(present, "timescale")
	}
	if c.Influx != nil {
		present = append(present, "influx")
	}
	switch len(present) {
	case 0:
		return nil, configErr("backend", fmt.Errorf("no backend configured, expected exactly one of graphite, prometheus, timescale, influx"))
	case 1:
	default:
		sort.Strings(present)
		return nil, configErr("backend", fmt.Errorf("several backends configured (%s), expected exactly one", strings.Join(present, ", ")))
	}

	switch {
	case c.Graphite != nil:
		if err := valid.Struct(c.Graphite); err != nil {
			return nil, configErr("graphite", err)
		}
		interval, err := c.effectiveInterval("graphite", c.Graphite.Interval)
		if err != nil {
			return nil, err
		}
		return GraphiteBackend{Config: *c.Graphite, Interval: interval}, nil
	case c.Prometheus != nil:
		if err := valid.Struct(c.Prometheus); err != nil {
			return nil, configErr("prometheus", err)
		}
		return PrometheusBackend{Config: *c.Prometheus}, nil
	case c.Timescale != nil:
		if err := valid.Struct(c.Timescale); err != nil {
			return nil, configErr("timescale", err)
		}
		interval, err := c.effectiveInterval("timescale", c.Timescale.Interval)
		if err != nil {
			return nil, err
		}
		return TimescaleBackend{Config: *c.Timescale, Interval: interval}, nil
	default:
		if err := valid.Struct(c.Influx); err != nil {
			return nil, configErr("influx", err)
		}
		interval, err := c.effectiveInterval("influx", c.Influx.Interval)
		if err != nil {
			return nil, err
		}
		return InfluxBackend{Config: *c.Influx, Interval: interval}, nil
	}
}

// effectiveInterval 后端间隔覆盖优先，否则使用 monitor.interval
func (c *Config) effectiveInterval(section string, override time.Duration) (time.Duration, error) {
	interval := c.Monitor.Interval
	if override != 0 {
		interval = override
	}
	if interval <= 0 || interval > MaxInterval {
		return 0, configErr(section, fmt.Errorf("interval must be > 0 and at most %s, got %s", MaxInterval, interval))
	}
	return interval, nil
}
