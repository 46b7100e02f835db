package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// 未指定文件时全部使用默认值
func TestLoadDefaults(t *testing.T) {
	settings, err := NewLoader().Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", settings.Server.Addr)
	assert.Equal(t, 4, settings.Bus.WorkerCount)
	assert.Equal(t, 10000, settings.Bus.MaxQueueSize)
	assert.Equal(t, 10000, settings.Bus.ConnectionLimit)
	assert.Equal(t, 30*time.Second, settings.Bus.HeartbeatInterval)
	assert.Equal(t, 90*time.Second, settings.Bus.ConnectionTimeout)
	assert.True(t, settings.Bus.PerformanceMetrics)
	assert.False(t, settings.Mirror.Enabled)
	assert.Equal(t, "netgate:events", settings.Mirror.Channel)
	assert.Equal(t, "info", settings.Log.Level)
}

// 文件值覆盖默认值，未出现的键保留默认
func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  tls_addr: ":9443"
  cert_file: /etc/certs/server.pem
  key_file: /etc/certs/server.key
bus:
  worker_count: 8
  rate_limit_per_sec: 100
  rate_limit_burst: 20
mirror:
  enabled: true
  addr: 127.0.0.1:6379
  types:
    - connection.opened
    - connection.closed
log:
  level: debug
  file: /var/log/netgate.log
`)

	settings, err := NewLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", settings.Server.Addr)
	assert.Equal(t, ":9443", settings.Server.TLSAddr)
	assert.Equal(t, 8, settings.Bus.WorkerCount)
	assert.Equal(t, float64(100), settings.Bus.RateLimitPerSecond)
	assert.Equal(t, 20, settings.Bus.RateLimitBurst)
	assert.Equal(t, 10000, settings.Bus.MaxQueueSize, "未配置的键保留默认值")
	assert.True(t, settings.Mirror.Enabled)
	assert.Equal(t, []string{"connection.opened", "connection.closed"}, settings.Mirror.Types)
	assert.Equal(t, "debug", settings.Log.Level)
	assert.Equal(t, "/var/log/netgate.log", settings.Log.File)
}

// 文件不存在时报错
func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().Load("/nonexistent/netgate.yaml")
	assert.Error(t, err)
}

// 文件变更触发 onChange，新配置生效
func TestWatchReload(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")

	changed := make(chan *Settings, 1)
	loader := NewLoader(WithOnChange(func(s *Settings) {
		select {
		case changed <- s:
		default:
		}
	}))
	_, err := loader.Load(path)
	require.NoError(t, err)

	loader.StartWatch()
	defer loader.StopWatch()

	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7070\"\n"), 0o644))

	select {
	case s := <-changed:
		assert.Equal(t, ":7070", s.Server.Addr)
		assert.Equal(t, ":7070", loader.Settings().Server.Addr)
	case <-time.After(3 * time.Second):
		t.Fatal("配置变更未触发回调")
	}
}
