package config

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetDataDirMovesDefaults(t *testing.T) {
	conf := NewDefaultConfig()
	conf.MonitorFile = "/var/log/report.info"

	conf.SetDataDir("/tmp/node")

	assert.Equal(t, filepath.Join("/tmp/node", DefaultKeyfile), conf.Keyfile)
	assert.Equal(t, filepath.Join("/tmp/node", DefaultP2PKeyfile), conf.P2PKeyfile)
	assert.Equal(t, filepath.Join("/tmp/node", DefaultBadgerFile), conf.DatabaseDir)
	assert.Equal(t, filepath.Join("/tmp/node", DefaultBootstrapFile), conf.BootstrapPath)
	assert.Equal(t, "/var/log/report.info", conf.MonitorFile)
}

func TestDefaults(t *testing.T) {
	conf := NewDefaultConfig()

	assert.Equal(t, DefaultNetwork, conf.Network)
	assert.Equal(t, 42, conf.BlockThreshold)
	assert.Equal(t, uint16(3), conf.BlockTimeout)
	assert.Equal(t, "127.0.0.1:8000", conf.RestAddr)
	assert.Equal(t, "127.0.0.1:8001", conf.BridgeAddr)
	assert.Empty(t, conf.MonitorAddr)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, LogLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, LogLevel("warn"))
	assert.Equal(t, logrus.InfoLevel, LogLevel("bogus"))
}

func TestTestConfigLogger(t *testing.T) {
	conf := NewTestConfig(t, logrus.DebugLevel)

	entry := conf.Logger()
	assert.Equal(t, "warden", entry.Data["prefix"])
	assert.True(t, conf.NoP2P)
	entry.Debug("test logger works")
}
