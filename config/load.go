package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	// DefaultFileName 配置文件名
	DefaultFileName = "config.toml"
	// EnvPrefix 环境变量前缀，例如 GRIDPOINTER_MOVEMENT_TWEEN_MS
	EnvPrefix = "GRIDPOINTER"
)

// DefaultPath 返回 $XDG_CONFIG_HOME/gridpointer/config.toml
func DefaultPath() (string, error) {
	if override := os.Getenv("GRIDPOINTER_CONFIG"); override != "" {
		return homedir.Expand(override)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := homedir.Dir()
		if herr != nil {
			return "", fmt.Errorf("could not determine config directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "gridpointer", DefaultFileName), nil
}

// newViper 创建独立的 viper 实例（热更新时每次重新解析，互不干扰）
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("grid.cols", d.Grid.Cols)
	v.SetDefault("grid.rows", d.Grid.Rows)
	v.SetDefault("grid.start_col", d.Grid.StartCol)
	v.SetDefault("grid.start_row", d.Grid.StartRow)
	v.SetDefault("movement.dash_cells", d.Movement.DashCells)
	v.SetDefault("movement.tween_ms", d.Movement.TweenMS)
	v.SetDefault("movement.analog_cells", d.Movement.AnalogCells)
	v.SetDefault("movement.analog_tween_ms", d.Movement.AnalogTweenMS)
	v.SetDefault("input.keyboard_device", d.Input.KeyboardDevice)
	v.SetDefault("input.gamepad_device", d.Input.GamepadDevice)
	v.SetDefault("input.device_paths", d.Input.DevicePaths)
	v.SetDefault("input.dead_zone", d.Input.DeadZone)
	v.SetDefault("input.grab", d.Input.Grab)
	v.SetDefault("display.target_monitor", d.Display.TargetMonitor)
	v.SetDefault("display.width", d.Display.Width)
	v.SetDefault("display.height", d.Display.Height)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	return v
}

func decode(v *viper.Viper, source string) (*Config, error) {
	cfg := &Config{}
	if err := v.UnmarshalExact(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	cfg.Source = source
	if cfg.Input.DevicePaths == nil {
		cfg.Input.DevicePaths = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", source, err)
	}
	return cfg, nil
}

// Load 读取并校验配置文件；文件不存在时返回错误，由调用方决定是否回退默认值
func Load(path string) (*Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v, path)
}

// Parse 从 TOML 文本解析配置
func Parse(data []byte) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return decode(v, "<inline>")
}

// LoadOrCreate 读取配置；文件不存在时写入默认配置后返回默认值
func LoadOrCreate(path string) (*Config, bool, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, false, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return nil, false, err
		}
		cfg := Default()
		cfg.Source = path
		return cfg, true, nil
	}
	cfg, err := Load(path)
	return cfg, false, err
}

// WriteDefault 将默认配置写入 path（会创建目录）
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	v := newViper()
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write default config %s: %w", path, err)
	}
	return nil
}
