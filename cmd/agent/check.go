package agent

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sensor-collector/pkg/config"
	"github.com/sensor-collector/pkg/util"
)

// checkCmd 校验配置文件：只读文件和环境变量，不启动采集
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config file and print the selected backend | 校验配置文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkConfig(os.Stdout, cfgFile); err != nil {
			cmd.SilenceUsage = true
			return err
		}
		return nil
	},
}

func checkConfig(w io.Writer, path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		fmt.Fprintf(w, "%sinvalid%s %s: %v\n", util.ColorRed, util.ColorReset, path, err)
		return err
	}
	backend, err := cfg.SelectBackend()
	if err != nil {
		fmt.Fprintf(w, "%sinvalid%s %s: %v\n", util.ColorRed, util.ColorReset, path, err)
		return err
	}
	host, err := cfg.Monitor.LookupName()
	if err != nil {
		host = "?"
	}
	fmt.Fprintf(w, "%sok%s %s: backend=%s host=%s", util.ColorGreen, util.ColorReset, path, backend.Name(), host)
	switch b := backend.(type) {
	case config.GraphiteBackend:
		fmt.Fprintf(w, " interval=%s", b.Interval)
	case config.InfluxBackend:
		fmt.Fprintf(w, " interval=%s", b.Interval)
	case config.TimescaleBackend:
		fmt.Fprintf(w, " interval=%s", b.Interval)
	case config.PrometheusBackend:
		fmt.Fprintf(w, " listen=%s:%d", b.Config.Host, b.Config.Port)
	}
	fmt.Fprintln(w)
	return nil
}
