package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/humidity_monitor/pkg/pathing"
	"github.com/NotCoffee418/humidity_monitor/pkg/port_reader"
	"github.com/NotCoffee418/humidity_monitor/pkg/serialport"
	"gopkg.in/yaml.v3"
)

var ActiveConfig *HumidityMonitorConfig

var ErrInvalidConfig = errors.New("invalid config")

func Default() *HumidityMonitorConfig {
	return &HumidityMonitorConfig{
		SerialDevice:           "/dev/ttyUSB0",
		Baudrate:               serialport.DefaultBaudRate,
		ReadTimeoutMs:          int(serialport.DefaultReadTimeout.Milliseconds()),
		Driver:                 serialport.DriverBugst,
		PollIntervalMs:         int(port_reader.DefaultPollInterval.Milliseconds()),
		MaxConsecutiveTimeouts: port_reader.DefaultMaxConsecutiveTimeouts,
		ListenAddress:          "0.0.0.0",
		ListenPort:             9040,
		SessionLogEnabled:      true,
		LogLevel:               "info",
	}
}

// LoadConfig loads the config from the config dir, creating a default one if missing.
func LoadConfig() error {
	cfg, err := LoadConfigFile(pathing.GetConfigPath())
	if err != nil {
		return err
	}
	ActiveConfig = cfg
	return nil
}

// LoadConfigFile loads path, writing defaults there first when it does not exist.
// .yaml and .yml files are read as YAML, everything else as TOML.
func LoadConfigFile(path string) (*HumidityMonitorConfig, error) {
	// Create default if not exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := writeConfigFile(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// Missing keys keep their default
	cfg := Default()
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func writeConfigFile(path string, cfg *HumidityMonitorConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	cfgFile, err := os.Create(path)
	if err != nil {
		return err
	}
	defer cfgFile.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(cfgFile)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
	return toml.NewEncoder(cfgFile).Encode(cfg)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (c *HumidityMonitorConfig) Validate() error {
	switch c.Driver {
	case serialport.DriverBugst, serialport.DriverJacobsa, serialport.DriverTarm:
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, c.Driver)
	}
	if c.Baudrate <= 0 {
		return fmt.Errorf("%w: baudrate must be positive", ErrInvalidConfig)
	}
	if c.ReadTimeoutMs <= 0 || c.PollIntervalMs <= 0 {
		return fmt.Errorf("%w: read timeout and poll interval must be positive", ErrInvalidConfig)
	}
	if c.MaxConsecutiveTimeouts <= 0 {
		return fmt.Errorf("%w: max_consecutive_timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c *HumidityMonitorConfig) SerialConfig(device string) serialport.Config {
	if device == "" {
		device = c.SerialDevice
	}
	return serialport.Config{
		Device:      device,
		BaudRate:    c.Baudrate,
		ReadTimeout: time.Duration(c.ReadTimeoutMs) * time.Millisecond,
		Driver:      c.Driver,
	}
}

func (c *HumidityMonitorConfig) ReaderOptions() port_reader.Options {
	return port_reader.Options{
		PollInterval:           time.Duration(c.PollIntervalMs) * time.Millisecond,
		MaxConsecutiveTimeouts: c.MaxConsecutiveTimeouts,
	}
}

func (c *HumidityMonitorConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenAddress, c.ListenPort)
}
