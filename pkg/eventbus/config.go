package eventbus

import (
	"fmt"
	"time"
)

// 默认值
const (
	DefaultQueueCapacity   = 10000
	DefaultWorkerCount     = 4
	DefaultConnectionLimit = 10000
)

// Config 事件总线配置
type Config struct {
	// 分发配置
	WorkerCount   int // 分发 worker 数量
	QueueCapacity int // 事件队列容量

	// 连接配置
	ConnectionLimit   int           // 最大连接数，OnValidate 超限拒绝
	HeartbeatInterval time.Duration // 心跳间隔
	ConnectionTimeout time.Duration // 连接超时

	// 限流配置（按连接）
	RateLimitPerSecond float64 // 每秒消息数，0 表示不限流
	RateLimitBurst     int     // 突发额度

	// 行为开关
	AuthRequired       bool // 是否要求认证
	Debug              bool // 调试模式
	EventLogging       bool // 是否逐事件记录日志
	PerformanceMetrics bool // 是否记录回调耗时

	// 日志器
	Logger Logger
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		WorkerCount:        DefaultWorkerCount,
		QueueCapacity:      DefaultQueueCapacity,
		ConnectionLimit:    DefaultConnectionLimit,
		HeartbeatInterval:  30 * time.Second,
		ConnectionTimeout:  90 * time.Second,
		RateLimitPerSecond: 0,
		RateLimitBurst:     1,
		PerformanceMetrics: true,
		Logger:             &NopLogger{},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: WorkerCount must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: QueueCapacity must be positive, got %d", ErrInvalidConfig, c.QueueCapacity)
	}
	if c.ConnectionLimit < 0 {
		return fmt.Errorf("%w: ConnectionLimit cannot be negative, got %d", ErrInvalidConfig, c.ConnectionLimit)
	}
	if c.RateLimitPerSecond < 0 {
		return fmt.Errorf("%w: RateLimitPerSecond cannot be negative, got %v", ErrInvalidConfig, c.RateLimitPerSecond)
	}
	if c.RateLimitPerSecond > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("%w: RateLimitBurst must be positive when rate limiting, got %d", ErrInvalidConfig, c.RateLimitBurst)
	}
	if c.HeartbeatInterval < 0 || c.ConnectionTimeout < 0 {
		return fmt.Errorf("%w: intervals cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Option 配置选项
type Option func(*Config)

// WithWorkerCount 设置分发 worker 数量
func WithWorkerCount(n int) Option {
	return func(c *Config) {
		c.WorkerCount = n
	}
}

// WithQueueCapacity 设置队列容量
func WithQueueCapacity(n int) Option {
	return func(c *Config) {
		c.QueueCapacity = n
	}
}

// WithConnectionLimit 设置最大连接数
func WithConnectionLimit(n int) Option {
	return func(c *Config) {
		c.ConnectionLimit = n
	}
}

// WithRateLimit 设置按连接限流
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Config) {
		c.RateLimitPerSecond = perSecond
		c.RateLimitBurst = burst
	}
}

// WithHeartbeatInterval 设置心跳间隔
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.HeartbeatInterval = interval
	}
}

// WithConnectionTimeout 设置连接超时
func WithConnectionTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ConnectionTimeout = timeout
	}
}

// WithAuthRequired 设置是否要求认证
func WithAuthRequired(required bool) Option {
	return func(c *Config) {
		c.AuthRequired = required
	}
}

// WithDebug 设置调试模式
func WithDebug(debug bool) Option {
	return func(c *Config) {
		c.Debug = debug
	}
}

// WithEventLogging 设置逐事件日志
func WithEventLogging(enable bool) Option {
	return func(c *Config) {
		c.EventLogging = enable
	}
}

// WithPerformanceMetrics 设置回调耗时统计
func WithPerformanceMetrics(enable bool) Option {
	return func(c *Config) {
		c.PerformanceMetrics = enable
	}
}

// WithLogger 设置日志器
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
