package mirror

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokmz/netgate/pkg/eventbus"
)

// DefaultChannel 默认发布频道
const DefaultChannel = "netgate:events"

// Options 镜像配置
type Options struct {
	Addr     string        // redis 地址
	Password string        // redis 密码
	DB       int           // redis 库
	Channel  string        // 发布频道
	Types    []string      // 镜像的事件类型，空表示全部
	Timeout  time.Duration // 单次发布超时
}

// envelope 发布到频道的事件信封
type envelope struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Timestamp time.Time      `json:"timestamp"`
	ConnID    uint64         `json:"conn_id,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Mirror 事件镜像
// 把总线上匹配的事件以 JSON 形式发布到 redis 频道，供外部监控系统订阅。
// 发布失败只记日志，不影响总线分发
type Mirror struct {
	client  *redis.Client
	channel string
	types   []string
	timeout time.Duration
	logger  eventbus.Logger

	bus        *eventbus.Bus
	callbackID uint64
}

// New 创建镜像
func New(opts Options, logger eventbus.Logger) *Mirror {
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if logger == nil {
		logger = &eventbus.NopLogger{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	return &Mirror{
		client:  client,
		channel: opts.Channel,
		types:   opts.Types,
		timeout: opts.Timeout,
		logger:  logger,
	}
}

// Start 校验 redis 可达并向总线注册镜像回调
// 类型集合为空时镜像全部事件
func (m *Mirror) Start(ctx context.Context, bus *eventbus.Bus) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return err
	}

	filter := eventbus.Filter{}
	for _, t := range m.types {
		filter.Types = append(filter.Types, eventbus.EventType(t))
	}

	m.bus = bus
	m.callbackID = bus.RegisterCallbackWithPriority(filter, eventbus.PriorityLow, m.publish)
	m.logger.Info("事件镜像已启动: channel=%s types=%d", m.channel, len(m.types))
	return nil
}

// publish 把事件发布到 redis 频道
func (m *Mirror) publish(ev *eventbus.Event) {
	env := envelope{
		ID:        ev.ID,
		Type:      string(ev.Type),
		Priority:  ev.Priority.String(),
		Timestamp: ev.Timestamp,
		Payload:   ev.Payload,
		Metadata:  ev.Metadata,
	}
	if id, ok := ev.ConnectionID(); ok {
		env.ConnID = id
	}

	data, err := json.Marshal(env)
	if err != nil {
		m.logger.Error("事件镜像序列化失败: event=%s err=%v", ev.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.client.Publish(ctx, m.channel, data).Err(); err != nil {
		m.logger.Warn("事件镜像发布失败: event=%s err=%v", ev.ID, err)
	}
}

// Stop 注销回调并关闭 redis 连接
func (m *Mirror) Stop() error {
	if m.bus != nil {
		m.bus.UnregisterCallback(m.callbackID)
		m.bus = nil
	}
	return m.client.Close()
}
