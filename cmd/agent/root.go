package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sensor-collector/pkg/config"
	"github.com/sensor-collector/pkg/hardware"
	"github.com/sensor-collector/pkg/logger"
	"github.com/sensor-collector/pkg/monitor"
	"github.com/sensor-collector/pkg/sensor"
	"github.com/sensor-collector/pkg/signal"
	"github.com/sensor-collector/pkg/util"
)

const projectName = "sensor-collector"

// Version is set at build time with -ldflags "-X".
var Version = "dev"

var (
	cfgFile    string
	defaultCfg = config.NewDefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   projectName,
	Short: "Hardware sensor collector exporting to Graphite, InfluxDB, TimescaleDB or Prometheus",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithCli(cmd)
		if err != nil {
			// 统一输出错误到 stderr，不返回给 cobra
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		if err := run(cmd.Context(), cfg); err != nil {
			fmt.Fprintf(os.Stderr, "服务启动失败: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "-> Config file path | 配置文件路径")
	// 注册分组 flag
	initMonitorFlags(rootCmd)
	initHardwareFlags(rootCmd)
	initLogFlags(rootCmd)
	rootCmd.AddCommand(checkCmd)
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	util.PrintBanner(os.Stdout, projectName, Version, util.ColorBlue)

	if _, err := logger.InitLogger(&cfg.Log); err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()
	logger.Info("log initialized",
		zap.String("path", cfg.Log.Path),
		zap.String("level", cfg.Log.Level),
		zap.String("format", cfg.Log.Format))
	logger.Debug("configuration loaded", zap.String("path", cfgFile), zap.Duration("interval", cfg.Monitor.Interval))

	host, err := cfg.Monitor.LookupName()
	if err != nil {
		return fmt.Errorf("resolve hostname: %w", err)
	}
	backend, err := cfg.SelectBackend()
	if err != nil {
		return err
	}

	computer, err := hardware.NewComputer(cfg.Hardware.Enablement(), hardware.WithLogger(logger.Named("hardware")))
	if err != nil {
		return fmt.Errorf("open hardware: %w", err)
	}
	collector := sensor.NewCollector(computer, host, sensor.WithLogger(logger.Named("sensor")))
	logger.Info("collector ready", zap.String("host", host), zap.String("backend", backend.Name()))

	manager, err := monitor.NewManager(backend, collector, monitor.WithLogger(logger.Named("monitor")))
	if err != nil {
		return multierr.Append(fmt.Errorf("create %s manager: %w", backend.Name(), err), computer.Close())
	}
	if err := manager.Start(); err != nil {
		logger.Error("start manager failed", zap.String("backend", backend.Name()), zap.Error(err))
		return multierr.Combine(fmt.Errorf("start %s manager: %w", backend.Name(), err), manager.Dispose(), computer.Close())
	}

	// 关闭顺序：manager（等待在途周期）→ 硬件
	return signal.WaitForShutdown(ctx, logger.Named("signal"), func() error {
		err := manager.Dispose()
		if closeErr := computer.Close(); closeErr != nil {
			logger.Warn("close hardware probes", zap.Error(closeErr))
			err = multierr.Append(err, closeErr)
		}
		return err
	})
}
