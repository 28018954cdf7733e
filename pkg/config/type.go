package config

type HumidityMonitorConfig struct {
	SerialDevice  string `toml:"serial_device" yaml:"serial_device"`
	Baudrate      int    `toml:"baudrate" yaml:"baudrate"`
	ReadTimeoutMs int    `toml:"read_timeout_ms" yaml:"read_timeout_ms"`

	// One of bugst, jacobsa, tarm
	Driver string `toml:"driver" yaml:"driver"`

	PollIntervalMs         int `toml:"poll_interval_ms" yaml:"poll_interval_ms"`
	MaxConsecutiveTimeouts int `toml:"max_consecutive_timeouts" yaml:"max_consecutive_timeouts"`

	// Sent to the device on request, e.g. a student ID
	Identifier string `toml:"identifier" yaml:"identifier"`

	ListenAddress     string `toml:"listen_address" yaml:"listen_address"`
	ListenPort        int    `toml:"listen_port" yaml:"listen_port"`
	SessionLogEnabled bool   `toml:"session_log_enabled" yaml:"session_log_enabled"`
	LogLevel          string `toml:"log_level" yaml:"log_level"`
}
