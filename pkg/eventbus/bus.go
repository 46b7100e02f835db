package eventbus

import (
	"context"
	"sync/atomic"
)

// Bus 事件总线核心
// 将传输层回调翻译为规范事件，经有界队列由 worker 池分发给订阅者
// 连接注册表、回调注册表、队列与统计各自持锁，互不嵌套
type Bus struct {
	config    *Config
	logger    Logger
	transport Transport

	conns     *ConnectionRegistry
	callbacks *CallbackRegistry
	queue     *EventQueue
	stats     *Statistics
	disp      *dispatcher
	limiters  *rateLimiters

	started atomic.Bool
	closed  atomic.Bool
}

// New 创建事件总线
// transport 允许为空，传输层与总线互相持有时可先建总线，再通过 SetTransport 绑定
func New(transport Transport, opts ...Option) (*Bus, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = &NopLogger{}
	}

	b := &Bus{
		config:    config,
		logger:    config.Logger,
		transport: transport,
		conns:     NewConnectionRegistry(),
		callbacks: NewCallbackRegistry(),
		stats:     NewStatistics(),
		limiters:  newRateLimiters(config.RateLimitPerSecond, config.RateLimitBurst),
	}
	b.queue = NewEventQueue(config.QueueCapacity, config.Logger)
	b.disp = newDispatcher(b.queue, b.callbacks, b.stats, config.Logger, config.WorkerCount, config.PerformanceMetrics)

	return b, nil
}

// SetTransport 绑定传输层，须在 Start 前调用
func (b *Bus) SetTransport(transport Transport) {
	b.transport = transport
}

// Start 启动分发 worker 并发布启动事件
func (b *Bus) Start() error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if b.transport == nil {
		return ErrNoTransport
	}
	if !b.started.CompareAndSwap(false, true) {
		return nil
	}

	b.disp.start()
	b.logger.Info("事件总线已启动: workers=%d queue=%d", b.config.WorkerCount, b.config.QueueCapacity)
	b.Publish(NewEvent(EventServerStarted, PriorityHigh, SystemContext{
		Component: "eventbus",
		Detail:    "dispatcher started",
		Healthy:   true,
	}))
	return nil
}

// Shutdown 关闭总线
// 设置停止标记并唤醒全部 worker，队列中剩余事件直接丢弃
func (b *Bus) Shutdown(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	// 停止事件只能尽力发布，非已消费保证
	b.Publish(NewEvent(EventServerStopped, PriorityHigh, SystemContext{
		Component: "eventbus",
		Detail:    "shutting down",
	}))

	b.queue.Shutdown()

	done := make(chan struct{})
	go func() {
		b.disp.wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("事件总线已关闭: dropped=%d", b.queue.Dropped())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish 发布事件到队列，永不阻塞调用方
// 队列关闭后为静默空操作
func (b *Bus) Publish(ev *Event) bool {
	if ev == nil {
		return false
	}
	if b.config.EventLogging {
		b.logger.Debug("发布事件: type=%s priority=%s id=%s", string(ev.Type), ev.Priority.String(), ev.ID)
	}
	return b.queue.Publish(ev)
}

// Pause 暂停事件分发，入队不受影响
func (b *Bus) Pause() { b.queue.Pause() }

// Resume 恢复事件分发
func (b *Bus) Resume() { b.queue.Resume() }

// Connections 连接注册表
func (b *Bus) Connections() *ConnectionRegistry { return b.conns }

// Stats 统计快照
func (b *Bus) Stats() StatsSnapshot { return b.stats.Snapshot() }

// ResetStats 重置统计
func (b *Bus) ResetStats() { b.stats.Reset() }

// QueueDropped 队列累计淘汰事件数
func (b *Bus) QueueDropped() uint64 { return b.queue.Dropped() }

// ---------------------------------------------------------------------------
// 生命周期适配：传输层入站回调
// ---------------------------------------------------------------------------

// OnOpen 连接建立
func (b *Bus) OnOpen(handle Handle) uint64 {
	remote := b.transport.RemoteEndpoint(handle)
	userAgent := b.transport.RequestHeader(handle, "User-Agent")

	id := b.conns.Register(handle, remote, userAgent, nil)
	b.limiters.add(id)
	b.stats.ConnectionOpened()

	snap, _ := b.conns.Lookup(id)
	b.Publish(NewEvent(EventConnectionOpened, PriorityHigh, ConnectionContext{Conn: snap}))

	b.logger.Info("连接建立: id=%d remote=%s", id, remote)
	return id
}

// OnClose 连接关闭
func (b *Bus) OnClose(handle Handle, reason string) {
	id, ok := b.conns.IDByHandle(handle)
	if !ok {
		return
	}
	snap, _ := b.conns.Lookup(id)
	b.conns.Unregister(id)
	b.limiters.remove(id)
	b.stats.ConnectionClosed()

	b.Publish(NewEvent(EventConnectionClosed, PriorityHigh, ConnectionContext{
		Conn:   snap,
		Reason: reason,
	}))

	b.logger.Info("连接关闭: id=%d reason=%s", id, reason)
}

// OnMessage 收到消息
// 限流在入口执行：超限消息记录日志后丢弃，不进入队列
func (b *Bus) OnMessage(handle Handle, payload []byte, binary bool) {
	id, ok := b.conns.IDByHandle(handle)
	if !ok {
		return
	}

	if !b.limiters.allow(id) {
		b.logger.Warn("消息超出限流额度，已丢弃: id=%d size=%d", id, len(payload))
		return
	}

	b.conns.UpdateActivity(id)
	b.stats.MessageReceived()

	snap, _ := b.conns.Lookup(id)
	t := EventMessageReceived
	if binary {
		t = EventBinaryMessageReceived
	}
	b.Publish(NewEvent(t, PriorityNormal, MessageContext{
		Conn:   snap,
		Data:   payload,
		Binary: binary,
	}))
}

// OnValidate 升级前同步校验
// 默认策略：仅在活跃连接数达到上限时拒绝
func (b *Bus) OnValidate(handle Handle) bool {
	allowed := b.config.ConnectionLimit <= 0 || b.conns.Count() < b.config.ConnectionLimit

	b.Publish(NewEvent(EventValidationRequest, PriorityNormal, RequestContext{
		RemoteAddr: b.transport.RemoteEndpoint(handle),
	}))

	if !allowed {
		b.logger.Warn("连接数达到上限，拒绝升级: limit=%d", b.config.ConnectionLimit)
	}
	return allowed
}

// OnHTTPUpgrade HTTP 升级请求
func (b *Bus) OnHTTPUpgrade(handle Handle, meta RequestMeta) {
	ctx := RequestContext{
		Method:     meta.Method,
		Path:       meta.Path,
		RemoteAddr: b.transport.RemoteEndpoint(handle),
		Headers:    meta.Headers,
	}
	if snap, ok := b.conns.LookupByHandle(handle); ok {
		ctx.Conn = snap
	}
	b.Publish(NewEvent(EventHTTPUpgrade, PriorityNormal, ctx))
}

// OnPing 收到 Ping
func (b *Bus) OnPing(handle Handle, payload []byte) {
	if id, ok := b.conns.IDByHandle(handle); ok {
		b.conns.UpdateActivity(id)
	}
	snap, _ := b.conns.LookupByHandle(handle)
	b.Publish(NewEvent(EventPing, PriorityLow, ConnectionContext{Conn: snap}))
}

// OnPong 收到 Pong
func (b *Bus) OnPong(handle Handle, payload []byte) {
	if id, ok := b.conns.IDByHandle(handle); ok {
		b.conns.UpdateActivity(id)
	}
	snap, _ := b.conns.LookupByHandle(handle)
	b.Publish(NewEvent(EventPong, PriorityLow, ConnectionContext{Conn: snap}))
}

// OnPongTimeout 心跳超时
// 发布心跳事件后额外发布 CONNECTION_TIMEOUT
func (b *Bus) OnPongTimeout(handle Handle) {
	snap, ok := b.conns.LookupByHandle(handle)
	if !ok {
		return
	}
	b.Publish(NewEvent(EventHeartbeat, PriorityNormal, SystemContext{
		Component: "transport",
		Detail:    "pong timeout",
	}))
	b.Publish(NewEvent(EventConnectionTimeout, PriorityHigh, ConnectionContext{
		Conn:   snap,
		Reason: "pong timeout",
	}))
	b.logger.Warn("心跳超时: id=%d remote=%s", snap.ID, snap.RemoteAddr)
}

// Authenticate 标记连接已认证并发布认证事件
func (b *Bus) Authenticate(id uint64) bool {
	if !b.conns.SetAuthenticated(id, true) {
		return false
	}
	snap, _ := b.conns.Lookup(id)
	b.Publish(NewEvent(EventAuthentication, PriorityHigh, RequestContext{Conn: snap}))
	return true
}

// EmitHealthCheck 发布健康检查事件
func (b *Bus) EmitHealthCheck(component, detail string, healthy bool) {
	priority := PriorityNormal
	if !healthy {
		priority = PriorityCritical
	}
	b.Publish(NewEvent(EventHealthCheck, priority, SystemContext{
		Component: component,
		Detail:    detail,
		Healthy:   healthy,
	}))
}

// ---------------------------------------------------------------------------
// 订阅接口
// ---------------------------------------------------------------------------

// RegisterCallback 注册通用回调
func (b *Bus) RegisterCallback(filter Filter, handler Handler) uint64 {
	return b.callbacks.Register(filter, handler)
}

// RegisterCallbackWithPriority 以指定优先级注册通用回调
func (b *Bus) RegisterCallbackWithPriority(filter Filter, priority Priority, handler Handler) uint64 {
	return b.callbacks.RegisterWithPriority(filter, priority, handler)
}

// UnregisterCallback 注销回调
func (b *Bus) UnregisterCallback(id uint64) bool {
	return b.callbacks.Unregister(id)
}

// UnregisterAllCallbacks 注销全部回调
func (b *Bus) UnregisterAllCallbacks() {
	b.callbacks.UnregisterAll()
}

// ActivateCallback 激活回调
func (b *Bus) ActivateCallback(id uint64) bool {
	return b.callbacks.Activate(id)
}

// DeactivateCallback 停用回调
func (b *Bus) DeactivateCallback(id uint64) bool {
	return b.callbacks.Deactivate(id)
}

// GetRegisteredCallbacks 查询注册信息
func (b *Bus) GetRegisteredCallbacks() []CallbackInfo {
	return b.callbacks.Infos()
}

// ListCallbacks 返回会接收指定事件类型的注册 ID
func (b *Bus) ListCallbacks(t EventType) []uint64 {
	return b.callbacks.List(t)
}

// ---------------------------------------------------------------------------
// 分类便捷订阅：预设过滤器并收窄载荷类型
// ---------------------------------------------------------------------------

// OnConnectionOpened 订阅连接建立事件
func (b *Bus) OnConnectionOpened(fn func(*Event, ConnectionContext)) uint64 {
	return b.subscribeConnection(EventConnectionOpened, fn)
}

// OnConnectionClosed 订阅连接关闭事件
func (b *Bus) OnConnectionClosed(fn func(*Event, ConnectionContext)) uint64 {
	return b.subscribeConnection(EventConnectionClosed, fn)
}

// OnConnectionTimeout 订阅连接超时事件
func (b *Bus) OnConnectionTimeout(fn func(*Event, ConnectionContext)) uint64 {
	return b.subscribeConnection(EventConnectionTimeout, fn)
}

// OnMessageReceived 订阅文本消息事件
func (b *Bus) OnMessageReceived(fn func(*Event, MessageContext)) uint64 {
	return b.subscribeMessage(EventMessageReceived, fn)
}

// OnBinaryMessageReceived 订阅二进制消息事件
func (b *Bus) OnBinaryMessageReceived(fn func(*Event, MessageContext)) uint64 {
	return b.subscribeMessage(EventBinaryMessageReceived, fn)
}

// OnAuthentication 订阅认证事件
func (b *Bus) OnAuthentication(fn func(*Event, RequestContext)) uint64 {
	return b.callbacks.Register(Filter{Types: []EventType{EventAuthentication}}, func(ev *Event) {
		if ctx, ok := ev.Payload.(RequestContext); ok {
			fn(ev, ctx)
		}
	})
}

// OnHeartbeat 订阅心跳事件
func (b *Bus) OnHeartbeat(fn func(*Event, SystemContext)) uint64 {
	return b.subscribeSystem(EventHeartbeat, fn)
}

// OnHealthCheck 订阅健康检查事件
func (b *Bus) OnHealthCheck(fn func(*Event, SystemContext)) uint64 {
	return b.subscribeSystem(EventHealthCheck, fn)
}

func (b *Bus) subscribeConnection(t EventType, fn func(*Event, ConnectionContext)) uint64 {
	return b.callbacks.Register(Filter{Types: []EventType{t}}, func(ev *Event) {
		if ctx, ok := ev.Payload.(ConnectionContext); ok {
			fn(ev, ctx)
		}
	})
}

func (b *Bus) subscribeMessage(t EventType, fn func(*Event, MessageContext)) uint64 {
	return b.callbacks.Register(Filter{Types: []EventType{t}}, func(ev *Event) {
		if ctx, ok := ev.Payload.(MessageContext); ok {
			fn(ev, ctx)
		}
	})
}

func (b *Bus) subscribeSystem(t EventType, fn func(*Event, SystemContext)) uint64 {
	return b.callbacks.Register(Filter{Types: []EventType{t}}, func(ev *Event) {
		if ctx, ok := ev.Payload.(SystemContext); ok {
			fn(ev, ctx)
		}
	})
}
