package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle 传输层连接句柄
// 由传输适配器持有并保证可比较（用作 map 键），总线不解释其内容
type Handle = any

// MetaKind 元数据值类别
type MetaKind uint8

const (
	MetaKindString MetaKind = iota // 字符串
	MetaKindInt                    // 整数
	MetaKindBool                   // 布尔
	MetaKindFloat                  // 浮点
)

// MetaValue 带类别标记的元数据值
type MetaValue struct {
	kind MetaKind
	s    string
	i    int64
	b    bool
	f    float64
}

// StringValue 创建字符串元数据值
func StringValue(v string) MetaValue { return MetaValue{kind: MetaKindString, s: v} }

// IntValue 创建整数元数据值
func IntValue(v int64) MetaValue { return MetaValue{kind: MetaKindInt, i: v} }

// BoolValue 创建布尔元数据值
func BoolValue(v bool) MetaValue { return MetaValue{kind: MetaKindBool, b: v} }

// FloatValue 创建浮点元数据值
func FloatValue(v float64) MetaValue { return MetaValue{kind: MetaKindFloat, f: v} }

// Kind 返回值类别
func (v MetaValue) Kind() MetaKind { return v.kind }

// String 返回字符串值
func (v MetaValue) String() (string, bool) { return v.s, v.kind == MetaKindString }

// Int 返回整数值
func (v MetaValue) Int() (int64, bool) { return v.i, v.kind == MetaKindInt }

// Bool 返回布尔值
func (v MetaValue) Bool() (bool, bool) { return v.b, v.kind == MetaKindBool }

// Float 返回浮点值
func (v MetaValue) Float() (float64, bool) { return v.f, v.kind == MetaKindFloat }

// Connection 连接状态快照
type Connection struct {
	ID            uint64               // 连接 ID，单调递增，存活期内不复用
	RemoteAddr    string               // 远端地址
	UserAgent     string               // User-Agent
	ConnectedAt   time.Time            // 建立时间
	LastActivity  time.Time            // 最近活动时间
	Headers       map[string]string    // 升级请求头
	Metadata      map[string]MetaValue // 业务元数据
	Authenticated bool                 // 是否已认证
	SessionID     string               // 会话 ID
}

// clone 深拷贝快照，map 不与注册表共享
func (c *Connection) clone() Connection {
	snap := *c
	if c.Headers != nil {
		snap.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			snap.Headers[k] = v
		}
	}
	if c.Metadata != nil {
		snap.Metadata = make(map[string]MetaValue, len(c.Metadata))
		for k, v := range c.Metadata {
			snap.Metadata[k] = v
		}
	}
	return snap
}

// connEntry 注册表内部条目
type connEntry struct {
	conn   Connection
	handle Handle
}

// ConnectionRegistry 连接注册表
// 读多写少：分发 worker 并发查询走读锁，连接建立/断开走写锁
type ConnectionRegistry struct {
	mu      sync.RWMutex
	nextID  uint64
	entries map[uint64]*connEntry
	handles map[Handle]uint64
}

// NewConnectionRegistry 创建连接注册表
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		entries: make(map[uint64]*connEntry),
		handles: make(map[Handle]uint64),
	}
}

// Register 登记新连接并分配 ID
func (r *ConnectionRegistry) Register(handle Handle, remoteAddr, userAgent string, headers map[string]string) uint64 {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.entries[id] = &connEntry{
		conn: Connection{
			ID:           id,
			RemoteAddr:   remoteAddr,
			UserAgent:    userAgent,
			ConnectedAt:  now,
			LastActivity: now,
			Headers:      headers,
			Metadata:     make(map[string]MetaValue),
			SessionID:    uuid.NewString(),
		},
		handle: handle,
	}
	r.handles[handle] = id

	return id
}

// Unregister 从所有索引中移除连接
// 未知 ID 返回 false
func (r *ConnectionRegistry) Unregister(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return false
	}
	delete(r.entries, id)
	delete(r.handles, entry.handle)
	return true
}

// Lookup 按 ID 查询快照
func (r *ConnectionRegistry) Lookup(id uint64) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return Connection{}, false
	}
	return entry.conn.clone(), true
}

// LookupByHandle 按传输句柄查询快照
func (r *ConnectionRegistry) LookupByHandle(handle Handle) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.handles[handle]
	if !ok {
		return Connection{}, false
	}
	return r.entries[id].conn.clone(), true
}

// IDByHandle 按传输句柄查询连接 ID
func (r *ConnectionRegistry) IDByHandle(handle Handle) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.handles[handle]
	return id, ok
}

// HandleOf 返回连接对应的传输句柄
func (r *ConnectionRegistry) HandleOf(id uint64) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return entry.handle, true
}

// UpdateActivity 刷新最近活动时间
func (r *ConnectionRegistry) UpdateActivity(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return false
	}
	entry.conn.LastActivity = time.Now()
	return true
}

// SetMetadata 写入元数据
func (r *ConnectionRegistry) SetMetadata(id uint64, key string, value MetaValue) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return false
	}
	entry.conn.Metadata[key] = value
	return true
}

// GetMetadata 读取元数据
func (r *ConnectionRegistry) GetMetadata(id uint64, key string) (MetaValue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return MetaValue{}, false
	}
	value, ok := entry.conn.Metadata[key]
	return value, ok
}

// SetAuthenticated 标记连接已认证
func (r *ConnectionRegistry) SetAuthenticated(id uint64, authenticated bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return false
	}
	entry.conn.Authenticated = authenticated
	return true
}

// Count 当前连接数
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ActiveIDs 返回所有活跃连接 ID
func (r *ConnectionRegistry) ActiveIDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}
