package eventbus

import (
	"sync"
)

// EventQueue 有界事件队列
// 溢出时淘汰最旧事件，生产者永不阻塞；暂停时继续入队，消费者阻塞等待
type EventQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []*Event
	capacity int
	paused   bool
	stopped  bool
	dropped  uint64
	logger   Logger
}

// NewEventQueue 创建事件队列
func NewEventQueue(capacity int, logger Logger) *EventQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if logger == nil {
		logger = &NopLogger{}
	}
	q := &EventQueue{
		items:    make([]*Event, 0, capacity),
		capacity: capacity,
		logger:   logger,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Publish 入队事件
// 队列满时先淘汰队首（最旧）再追加；关闭后静默丢弃并返回 false
func (q *EventQueue) Publish(ev *Event) bool {
	if ev == nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	if len(q.items) >= q.capacity {
		evicted := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.dropped++
		q.logger.Warn("事件队列已满，淘汰最旧事件: type=%s id=%s", string(evicted.Type), evicted.ID)
	}

	q.items = append(q.items, ev)
	q.cond.Signal()
	return true
}

// Dequeue 出队事件，队列为空或处于暂停状态时阻塞
// 队列关闭后返回 false，worker 以此为退出信号（不清空剩余事件）
func (q *EventQueue) Dequeue() (*Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for (len(q.items) == 0 || q.paused) && !q.stopped {
		q.cond.Wait()
	}

	if q.stopped {
		return nil, false
	}

	ev := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ev, true
}

// Pause 暂停消费，入队不受影响
func (q *EventQueue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

// Resume 恢复消费
func (q *EventQueue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	q.cond.Broadcast()
}

// Shutdown 关闭队列并唤醒所有 worker，剩余事件直接丢弃
func (q *EventQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.cond.Broadcast()
}

// Len 当前队列长度
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped 累计淘汰事件数
func (q *EventQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// snapshot 返回当前队列内容（测试用）
func (q *EventQueue) snapshot() []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Event, len(q.items))
	copy(out, q.items)
	return out
}
