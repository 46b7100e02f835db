package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	// 连接事件
	EventConnectionOpened  EventType = "connection.opened"  // 连接建立
	EventConnectionClosed  EventType = "connection.closed"  // 连接关闭
	EventConnectionFailed  EventType = "connection.failed"  // 连接失败
	EventConnectionTimeout EventType = "connection.timeout" // 连接超时
	EventConnectionError   EventType = "connection.error"   // 连接错误

	// 消息事件
	EventMessageReceived       EventType = "message.received"        // 收到文本消息
	EventMessageSent           EventType = "message.sent"            // 发送消息成功
	EventMessageFailed         EventType = "message.failed"          // 发送消息失败
	EventBinaryMessageReceived EventType = "message.binary_received" // 收到二进制消息

	// 请求事件
	EventHTTPUpgrade       EventType = "request.http_upgrade" // HTTP 升级请求
	EventAuthentication    EventType = "request.auth"         // 认证请求
	EventAuthorization     EventType = "request.authz"        // 授权请求
	EventValidationRequest EventType = "request.validation"   // 升级前校验请求

	// 数据事件
	EventDataValidation     EventType = "data.validation"     // 数据校验
	EventDataTransformation EventType = "data.transformation" // 数据转换
	EventDataProcessing     EventType = "data.processing"     // 数据处理
	EventDataPersistence    EventType = "data.persistence"    // 数据持久化

	// 系统事件
	EventServerStarted EventType = "server.started"      // 服务启动
	EventServerStopped EventType = "server.stopped"      // 服务停止
	EventHealthCheck   EventType = "system.health_check" // 健康检查
	EventHeartbeat     EventType = "system.heartbeat"    // 心跳
	EventPing          EventType = "system.ping"         // Ping
	EventPong          EventType = "system.pong"         // Pong

	// EventCustom 自定义事件
	EventCustom EventType = "custom"
)

// Priority 事件优先级，数值越小越紧急
// 零值表示未设置，过滤时视为不设上限
type Priority int

const (
	PriorityCritical Priority = iota + 1 // 紧急
	PriorityHigh                         // 高
	PriorityNormal                       // 普通
	PriorityLow                          // 低
)

// String 返回优先级名称
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// AtLeast 判断优先级是否不低于给定上限
// 上限为 Normal 时，Low 事件被排除，Critical/High/Normal 通过；上限为零值时不过滤
func (p Priority) AtLeast(ceiling Priority) bool {
	if ceiling == 0 {
		return true
	}
	return p <= ceiling
}

// PayloadKind 载荷类别判别值
type PayloadKind uint8

const (
	PayloadConnection PayloadKind = iota // 连接上下文
	PayloadMessage                       // 消息上下文
	PayloadRequest                       // 请求上下文
	PayloadData                          // 数据上下文
	PayloadSystem                        // 系统上下文
)

// Payload 事件载荷，封闭联合类型
// 实现集合固定为五种上下文，不允许外部扩展
type Payload interface {
	Kind() PayloadKind
}

// ConnectionContext 连接上下文
type ConnectionContext struct {
	Conn   Connection // 连接快照
	Reason string     // 关闭/失败原因
	Code   int        // 关闭码
}

func (ConnectionContext) Kind() PayloadKind { return PayloadConnection }

// MessageContext 消息上下文
type MessageContext struct {
	Conn   Connection // 连接快照
	Data   []byte     // 消息内容
	Binary bool       // 是否二进制
}

func (MessageContext) Kind() PayloadKind { return PayloadMessage }

// RequestContext 请求上下文
type RequestContext struct {
	Conn       Connection        // 连接快照（升级前可能为零值）
	Method     string            // HTTP 方法
	Path       string            // 请求路径
	RemoteAddr string            // 远端地址
	Headers    map[string]string // 请求头
}

func (RequestContext) Kind() PayloadKind { return PayloadRequest }

// DataContext 数据上下文
type DataContext struct {
	Conn  Connection // 关联连接快照（可能为零值）
	Name  string     // 数据对象名称
	Value string     // 数据内容
}

func (DataContext) Kind() PayloadKind { return PayloadData }

// SystemContext 系统上下文，不关联具体连接
type SystemContext struct {
	Component string // 组件名称
	Detail    string // 描述信息
	Healthy   bool   // 健康状态
}

func (SystemContext) Kind() PayloadKind { return PayloadSystem }

// Event 事件
// 由生命周期适配器或内部触发器创建，被某个分发 worker 消费一次后丢弃
type Event struct {
	ID        string         // 唯一 ID
	Type      EventType      // 事件类型
	Priority  Priority       // 优先级
	Timestamp time.Time      // 创建时间
	Payload   Payload        // 载荷
	Metadata  map[string]any // 附加元数据
}

// NewEvent 创建事件
func NewEvent(t EventType, priority Priority, payload Payload) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Priority:  priority,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// ConnectionID 返回事件关联的连接 ID
// 系统事件或未关联连接时返回 false
func (e *Event) ConnectionID() (uint64, bool) {
	switch p := e.Payload.(type) {
	case ConnectionContext:
		return p.Conn.ID, p.Conn.ID != 0
	case MessageContext:
		return p.Conn.ID, p.Conn.ID != 0
	case RequestContext:
		return p.Conn.ID, p.Conn.ID != 0
	case DataContext:
		return p.Conn.ID, p.Conn.ID != 0
	case SystemContext:
		return 0, false
	default:
		return 0, false
	}
}
