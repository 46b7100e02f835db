package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// ServerSettings HTTP 服务配置
type ServerSettings struct {
	Addr      string `mapstructure:"addr"`       // 明文监听地址
	TLSAddr   string `mapstructure:"tls_addr"`   // TLS 监听地址，空表示不启用
	CertFile  string `mapstructure:"cert_file"`  // 证书路径
	KeyFile   string `mapstructure:"key_file"`   // 私钥路径
	StaticDir string `mapstructure:"static_dir"` // 管理界面静态文件目录
}

// BusSettings 事件总线配置
type BusSettings struct {
	WorkerCount        int           `mapstructure:"worker_count"`        // 分发 worker 数
	MaxQueueSize       int           `mapstructure:"max_queue_size"`      // 队列容量
	ConnectionLimit    int           `mapstructure:"connection_limit"`    // 最大连接数
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_sec"`  // 每秒消息数，0 不限
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`    // 突发额度
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`  // 心跳间隔
	ConnectionTimeout  time.Duration `mapstructure:"connection_timeout"`  // 连接超时
	AuthRequired       bool          `mapstructure:"auth_required"`       // 是否要求认证
	Debug              bool          `mapstructure:"debug"`               // 调试模式
	EventLogging       bool          `mapstructure:"event_logging"`       // 逐事件日志
	PerformanceMetrics bool          `mapstructure:"performance_metrics"` // 回调耗时统计
}

// MirrorSettings 事件镜像配置
type MirrorSettings struct {
	Enabled  bool     `mapstructure:"enabled"`  // 是否启用
	Addr     string   `mapstructure:"addr"`     // redis 地址
	Password string   `mapstructure:"password"` // redis 密码
	DB       int      `mapstructure:"db"`       // redis 库
	Channel  string   `mapstructure:"channel"`  // 发布频道
	Types    []string `mapstructure:"types"`    // 镜像的事件类型，空表示全部
}

// LogSettings 日志配置
type LogSettings struct {
	Level      string `mapstructure:"level"`        // 日志级别
	File       string `mapstructure:"file"`         // 日志文件路径，空表示仅控制台
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单文件上限
	MaxBackups int    `mapstructure:"max_backups"`  // 保留文件数
	MaxAgeDays int    `mapstructure:"max_age_days"` // 保留天数
}

// Settings 全量配置
type Settings struct {
	Server ServerSettings `mapstructure:"server"`
	Bus    BusSettings    `mapstructure:"bus"`
	Mirror MirrorSettings `mapstructure:"mirror"`
	Log    LogSettings    `mapstructure:"log"`
}

// Loader 配置加载器，支持文件监控热更新
type Loader struct {
	viper    *viper.Viper
	mu       sync.RWMutex
	settings *Settings
	watching bool
	onChange func(*Settings)
	onError  func(error)
}

// Option 加载器选项
type Option func(*Loader)

// WithOnChange 设置配置变更回调
func WithOnChange(fn func(*Settings)) Option {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// WithOnError 设置错误回调
func WithOnError(fn func(error)) Option {
	return func(l *Loader) {
		l.onError = fn
	}
}

// NewLoader 创建加载器
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		viper: viper.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// setDefaults 写入默认值
func (l *Loader) setDefaults() {
	l.viper.SetDefault("server.addr", ":8080")
	l.viper.SetDefault("server.static_dir", "./ui")
	l.viper.SetDefault("bus.worker_count", 4)
	l.viper.SetDefault("bus.max_queue_size", 10000)
	l.viper.SetDefault("bus.connection_limit", 10000)
	l.viper.SetDefault("bus.rate_limit_per_sec", 0)
	l.viper.SetDefault("bus.rate_limit_burst", 1)
	l.viper.SetDefault("bus.heartbeat_interval", 30*time.Second)
	l.viper.SetDefault("bus.connection_timeout", 90*time.Second)
	l.viper.SetDefault("bus.performance_metrics", true)
	l.viper.SetDefault("mirror.channel", "netgate:events")
	l.viper.SetDefault("log.level", "info")
	l.viper.SetDefault("log.max_size_mb", 100)
	l.viper.SetDefault("log.max_backups", 5)
	l.viper.SetDefault("log.max_age_days", 30)
}

// Load 读取并解析配置文件
// path 为空时仅使用默认值
func (l *Loader) Load(path string) (*Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setDefaults()
	if path != "" {
		l.viper.SetConfigFile(path)
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	settings, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	l.settings = settings
	return settings, nil
}

// unmarshal 解析到结构体
func (l *Loader) unmarshal() (*Settings, error) {
	var settings Settings
	if err := l.viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &settings, nil
}

// Settings 当前配置快照
func (l *Loader) Settings() *Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.settings
}
