package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// Config 全局配置结构体（聚合所有核心模块）
// Exactly one of the backend sections must be present; see SelectBackend.
type Config struct {
	Monitor    MonitorConfig     `yaml:"monitor" mapstructure:"monitor" comment:"采集配置"`
	Hardware   HardwareConfig    `yaml:"hardware" mapstructure:"hardware" comment:"硬件类别开关"`
	Graphite   *GraphiteConfig   `yaml:"graphite" mapstructure:"graphite" comment:"Graphite 推送"`
	Prometheus *PrometheusConfig `yaml:"prometheus" mapstructure:"prometheus" comment:"Prometheus 拉取"`
	Timescale  *TimescaleConfig  `yaml:"timescale" mapstructure:"timescale" comment:"TimescaleDB 推送"`
	Influx     *InfluxConfig     `yaml:"influx" mapstructure:"influx" comment:"InfluxDB 推送"`
	Log        ZapLogConfig      `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// MonitorConfig 采集全局配置
type MonitorConfig struct {
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" env:"MONITOR_INTERVAL" validate:"required,gt=0" comment:"推送间隔（如5s）" default:"5s"`
	Hostname   string        `yaml:"hostname" mapstructure:"hostname" env:"MONITOR_HOSTNAME" comment:"主机名覆盖，空则自动探测"`
	NameLookup string        `yaml:"name_lookup" mapstructure:"name_lookup" env:"MONITOR_NAME_LOOKUP" validate:"omitempty,oneof=netbios fqdn dns" comment:"主机名探测方式" default:"netbios"`
}

// HardwareConfig 各硬件类别开关（默认全部启用）
type HardwareConfig struct {
	CPU         bool `yaml:"cpu" mapstructure:"cpu" default:"true"`
	GPU         bool `yaml:"gpu" mapstructure:"gpu" default:"true"`
	Motherboard bool `yaml:"motherboard" mapstructure:"motherboard" default:"true"`
	Memory      bool `yaml:"memory" mapstructure:"memory" default:"true"`
	Network     bool `yaml:"network" mapstructure:"network" default:"true"`
	Storage     bool `yaml:"storage" mapstructure:"storage" default:"true"`
	Controller  bool `yaml:"controller" mapstructure:"controller" default:"true"`
}

// GraphiteConfig Graphite plaintext 推送配置
type GraphiteConfig struct {
	Host     string            `yaml:"host" mapstructure:"host" validate:"required" comment:"Carbon 地址"`
	Port     int               `yaml:"port" mapstructure:"port" validate:"min=1,max=65535" comment:"Carbon 端口" default:"2003"`
	Tags     map[string]string `yaml:"tags" mapstructure:"tags" comment:"附加标签"`
	Interval time.Duration     `yaml:"interval" mapstructure:"interval" validate:"gte=0" comment:"覆盖 monitor.interval"`
}

// PrometheusConfig Prometheus 拉取监听配置
type PrometheusConfig struct {
	Host string `yaml:"host" mapstructure:"host" comment:"监听地址，空为所有接口"`
	Port int    `yaml:"port" mapstructure:"port" validate:"min=1,max=65535" comment:"监听端口" default:"4445"`
}

// TimescaleConfig TimescaleDB 推送配置
type TimescaleConfig struct {
	Connection string        `yaml:"connection" mapstructure:"connection" validate:"required" comment:"PostgreSQL 连接串"`
	SetupTable bool          `yaml:"setup_table" mapstructure:"setup_table" comment:"启动时创建 hypertable"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0" comment:"覆盖 monitor.interval"`
}

// InfluxConfig InfluxDB 推送配置；设置 token 时使用 v2 API
type InfluxConfig struct {
	Address  string            `yaml:"address" mapstructure:"address" validate:"required,url" comment:"InfluxDB 地址"`
	DB       string            `yaml:"db" mapstructure:"db" validate:"required_without=Token" comment:"v1 数据库"`
	User     string            `yaml:"user" mapstructure:"user" comment:"v1 用户"`
	Password string            `yaml:"password" mapstructure:"password" comment:"v1 密码"`
	Token    string            `yaml:"token" mapstructure:"token" comment:"v2 token"`
	Org      string            `yaml:"org" mapstructure:"org" validate:"required_with=Token" comment:"v2 org"`
	Bucket   string            `yaml:"bucket" mapstructure:"bucket" validate:"required_with=Token" comment:"v2 bucket"`
	Tags     map[string]string `yaml:"tags" mapstructure:"tags" comment:"附加标签"`
	Interval time.Duration     `yaml:"interval" mapstructure:"interval" validate:"gte=0" comment:"覆盖 monitor.interval"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"json"`
	Path      string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" env:"LOG_MAX_BACKUP" validate:"gte=0" comment:"日志文件最大备份数" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
}

const (
	DefaultGraphitePort   = 2003
	DefaultPrometheusPort = 4445
)

// NewDefaultConfig 创建默认配置（不含任何后端段，后端必须显式配置）
func NewDefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Interval:   5 * time.Second,
			NameLookup: NameLookupNetbios,
		},
		Hardware: HardwareConfig{
			CPU:         true,
			GPU:         true,
			Motherboard: true,
			Memory:      true,
			Network:     true,
			Storage:     true,
			Controller:  true,
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "json",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
		},
	}
}

// LoadConfigWithCli 支持 time.Duration，(Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}
	return load(v)
}

// LoadFile 仅从 YAML 文件（+ENV）加载配置
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()

	// 3. 绑定环境变量 ENV -> Viper （MONITOR_INTERVAL -> monitor.interval）
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 解码反序列化到结构体（支持 time.Duration）
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyBackendDefaults()

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyBackendDefaults fills ports left out of a present backend section.
func (c *Config) applyBackendDefaults() {
	if c.Graphite != nil && c.Graphite.Port == 0 {
		c.Graphite.Port = DefaultGraphitePort
	}
	if c.Prometheus != nil && c.Prometheus.Port == 0 {
		c.Prometheus.Port = DefaultPrometheusPort
	}
}

// Validate 配置校验；所有失败都以 *ConfigurationError 返回
func (c *Config) Validate() error {
	// 	1，校验采集配置
	if err := c.Monitor.Validate(); err != nil {
		return configErr("monitor", err)
	}
	// 	2，校验后端（恰好一个）
	if _, err := c.SelectBackend(); err != nil {
		return err
	}
	// 	3，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return configErr("log", err)
	}
	return nil
}
