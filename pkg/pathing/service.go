package pathing

import (
	"os"
	"path/filepath"
)

const (
	configDirEnv = "HUMIDITY_MONITOR_CONFIG_DIR"
	dataDirEnv   = "HUMIDITY_MONITOR_DATA_DIR"
)

// EnsureDirs creates the config and data directories when missing.
// Called on startup by the binaries.
func EnsureDirs() error {
	for _, dir := range []string{GetConfigDir(), GetDataDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func GetSessionDbPath() string {
	return filepath.Join(GetDataDir(), "humidity-sessions.db")
}

func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "humidity_monitor.toml")
}

func GetDataDir() string {
	if dir := os.Getenv(dataDirEnv); dir != "" {
		return dir
	}
	return "/var/lib/humidity_monitor"
}

func GetConfigDir() string {
	if dir := os.Getenv(configDirEnv); dir != "" {
		return dir
	}
	return "/etc/humidity_monitor"
}
