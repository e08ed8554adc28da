// Package commands gridpointer 命令行。
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gridpointer/config"
	"gridpointer/logger"
)

// globalOptions 所有子命令共享的参数
type globalOptions struct {
	ConfigPath string
	LogLevel   string
	LogFile    string
}

var global = &globalOptions{}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gridpointer",
		Short: "Drive the pointer across a screen grid from keyboard and gamepad.",
		Long: `gridpointer reads keyboard and gamepad input and moves the pointer
between the cells of a grid laid over the screen, with eased motion.`,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&global.ConfigPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/gridpointer/config.toml).")
	cmd.PersistentFlags().StringVar(&global.LogLevel, "log-level", "", "Override log level: debug, info, warn, error.")
	cmd.PersistentFlags().StringVar(&global.LogFile, "log-file", "", "Override log file (rotated).")

	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addRun(topLevel)
	addPreview(topLevel)
	addDemo(topLevel)
	addDevices(topLevel)
	addConfig(topLevel)
	addVersion(topLevel)
}

// configPath 命令行 > 环境变量 > 默认位置
func (o *globalOptions) configPath() (string, error) {
	if o.ConfigPath != "" {
		return o.ConfigPath, nil
	}
	return config.DefaultPath()
}

// loadConfig 读取配置（不存在时写入默认配置）
func (o *globalOptions) loadConfig() (*config.Config, string, error) {
	path, err := o.configPath()
	if err != nil {
		return nil, "", err
	}
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, path, err
	}
	if created {
		_, _ = fmt.Fprintf(os.Stderr, "wrote default config to %s\n", path)
	}
	return cfg, path, nil
}

// initLogger 按配置与命令行参数初始化日志；quiet 时只写文件
func (o *globalOptions) initLogger(cfg *config.Config, quiet bool) error {
	opts := logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Quiet: quiet}
	if o.LogLevel != "" {
		opts.Level = o.LogLevel
	}
	if o.LogFile != "" {
		opts.File = o.LogFile
	}
	return logger.Init(opts)
}
