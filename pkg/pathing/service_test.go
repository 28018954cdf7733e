package pathing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirsFromEnvironment(t *testing.T) {
	root := t.TempDir()
	t.Setenv(configDirEnv, filepath.Join(root, "etc"))
	t.Setenv(dataDirEnv, filepath.Join(root, "lib"))

	require.NoError(t, EnsureDirs())

	for _, dir := range []string{GetConfigDir(), GetDataDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
	require.Equal(t, filepath.Join(root, "etc", "humidity_monitor.toml"), GetConfigPath())
	require.Equal(t, filepath.Join(root, "lib", "humidity-sessions.db"), GetSessionDbPath())
}

func TestDefaultDirs(t *testing.T) {
	t.Setenv(configDirEnv, "")
	t.Setenv(dataDirEnv, "")
	require.Equal(t, "/etc/humidity_monitor", GetConfigDir())
	require.Equal(t, "/var/lib/humidity_monitor", GetDataDir())
}
