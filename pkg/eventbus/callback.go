package eventbus

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Handler 事件回调处理器
// 在分发 worker 内同步执行，不拥有独立协程
type Handler func(*Event)

// Filter 订阅过滤器
// 所有条件同时满足时事件才会投递；零值过滤器匹配一切事件
type Filter struct {
	Types         []EventType       // 感兴趣的事件类型，空表示全部
	ConnectionIDs []uint64          // 感兴趣的连接 ID，空表示全部
	MinPriority   Priority          // 优先级上限，事件优先级不低于该值才投递
	MaxAge        time.Duration     // 事件最大年龄，0 表示不限
	Predicate     func(*Event) bool // 自定义谓词，可选
}

// CallbackRegistration 回调注册项
// 由注册表独占持有，计数字段用原子操作更新以避免与分发争锁
type CallbackRegistration struct {
	ID           uint64    // 注册 ID
	Priority     Priority  // 回调优先级，决定同一事件内的执行顺序
	Filter       Filter    // 过滤器
	RegisteredAt time.Time // 注册时间

	handler   Handler
	active    atomic.Bool
	execCount atomic.Int64
	execNanos atomic.Int64

	// 预编译的匹配集合
	typeSet map[EventType]struct{}
	connSet map[uint64]struct{}
}

// Active 是否处于激活状态
func (r *CallbackRegistration) Active() bool { return r.active.Load() }

// ExecCount 累计执行次数
func (r *CallbackRegistration) ExecCount() int64 { return r.execCount.Load() }

// ExecTotal 累计执行耗时
func (r *CallbackRegistration) ExecTotal() time.Duration {
	return time.Duration(r.execNanos.Load())
}

// record 记录一次执行
func (r *CallbackRegistration) record(d time.Duration) {
	r.execCount.Add(1)
	r.execNanos.Add(int64(d))
}

// matches 匹配规则，所有条件须同时成立
func (r *CallbackRegistration) matches(ev *Event, now time.Time) bool {
	// 1. 类型集合为空或包含事件类型
	if len(r.typeSet) > 0 {
		if _, ok := r.typeSet[ev.Type]; !ok {
			return false
		}
	}
	// 2. 事件优先级不低于上限
	if !ev.Priority.AtLeast(r.Filter.MinPriority) {
		return false
	}
	// 3. 事件年龄不超过 MaxAge
	if r.Filter.MaxAge > 0 && now.Sub(ev.Timestamp) > r.Filter.MaxAge {
		return false
	}
	// 4. 连接集合为空或包含事件关联连接；无关联连接的事件直接通过
	if len(r.connSet) > 0 {
		if id, ok := ev.ConnectionID(); ok {
			if _, want := r.connSet[id]; !want {
				return false
			}
		}
	}
	// 5. 自定义谓词
	if r.Filter.Predicate != nil && !r.Filter.Predicate(ev) {
		return false
	}
	return true
}

// CallbackInfo 回调注册信息快照（对外查询用）
type CallbackInfo struct {
	ID           uint64        `json:"id"`
	Priority     string        `json:"priority"`
	Active       bool          `json:"active"`
	Types        []EventType   `json:"types,omitempty"`
	RegisteredAt time.Time     `json:"registered_at"`
	ExecCount    int64         `json:"exec_count"`
	ExecTotal    time.Duration `json:"exec_total"`
}

// CallbackRegistry 回调注册表
type CallbackRegistry struct {
	mu     sync.RWMutex
	nextID uint64
	regs   map[uint64]*CallbackRegistration
}

// NewCallbackRegistry 创建回调注册表
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{
		regs: make(map[uint64]*CallbackRegistration),
	}
}

// Register 注册回调，默认优先级 Normal
func (c *CallbackRegistry) Register(filter Filter, handler Handler) uint64 {
	return c.RegisterWithPriority(filter, PriorityNormal, handler)
}

// RegisterWithPriority 以指定优先级注册回调
func (c *CallbackRegistry) RegisterWithPriority(filter Filter, priority Priority, handler Handler) uint64 {
	reg := &CallbackRegistration{
		Priority:     priority,
		Filter:       filter,
		RegisteredAt: time.Now(),
		handler:      handler,
	}
	reg.active.Store(true)

	if len(filter.Types) > 0 {
		reg.typeSet = make(map[EventType]struct{}, len(filter.Types))
		for _, t := range filter.Types {
			reg.typeSet[t] = struct{}{}
		}
	}
	if len(filter.ConnectionIDs) > 0 {
		reg.connSet = make(map[uint64]struct{}, len(filter.ConnectionIDs))
		for _, id := range filter.ConnectionIDs {
			reg.connSet[id] = struct{}{}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	reg.ID = c.nextID
	c.regs[reg.ID] = reg
	return reg.ID
}

// Unregister 注销回调，未知 ID 返回 false
// 只影响后续分发，执行中的调用不会被打断
func (c *CallbackRegistry) Unregister(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.regs[id]; !ok {
		return false
	}
	delete(c.regs, id)
	return true
}

// UnregisterAll 注销所有回调
func (c *CallbackRegistry) UnregisterAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs = make(map[uint64]*CallbackRegistration)
}

// Activate 激活回调
func (c *CallbackRegistry) Activate(id uint64) bool {
	c.mu.RLock()
	reg, ok := c.regs[id]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	reg.active.Store(true)
	return true
}

// Deactivate 停用回调，注册项保留
func (c *CallbackRegistry) Deactivate(id uint64) bool {
	c.mu.RLock()
	reg, ok := c.regs[id]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	reg.active.Store(false)
	return true
}

// List 返回会接收指定事件类型的注册 ID（按 ID 升序）
func (c *CallbackRegistry) List(t EventType) []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]uint64, 0, len(c.regs))
	for id, reg := range c.regs {
		if len(reg.typeSet) > 0 {
			if _, ok := reg.typeSet[t]; !ok {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Infos 返回所有注册项的信息快照
func (c *CallbackRegistry) Infos() []CallbackInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]CallbackInfo, 0, len(c.regs))
	for _, reg := range c.regs {
		infos = append(infos, CallbackInfo{
			ID:           reg.ID,
			Priority:     reg.Priority.String(),
			Active:       reg.Active(),
			Types:        reg.Filter.Types,
			RegisteredAt: reg.RegisteredAt,
			ExecCount:    reg.ExecCount(),
			ExecTotal:    reg.ExecTotal(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Count 注册数量
func (c *CallbackRegistry) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.regs)
}

// match 复制当前激活且匹配的注册项
// 在读锁内完成复制与排序，调用方在锁外执行回调，处理器内可自由增删订阅
func (c *CallbackRegistry) match(ev *Event, now time.Time) []*CallbackRegistration {
	c.mu.RLock()
	matched := make([]*CallbackRegistration, 0, 4)
	for _, reg := range c.regs {
		if reg.Active() && reg.matches(ev, now) {
			matched = append(matched, reg)
		}
	}
	c.mu.RUnlock()

	// 稳定顺序：优先级升序（Critical 最先），同优先级按注册顺序
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}
