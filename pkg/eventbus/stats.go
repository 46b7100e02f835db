package eventbus

import (
	"sync"
	"time"
)

// StatsSnapshot 统计快照，可直接序列化为 JSON
type StatsSnapshot struct {
	ConnectionsTotal  uint64               `json:"connections_total"`
	ConnectionsActive uint64               `json:"connections_active"`
	MessagesSent      uint64               `json:"messages_sent"`
	MessagesReceived  uint64               `json:"messages_received"`
	EventsProcessed   uint64               `json:"events_processed"`
	CallbacksExecuted uint64               `json:"callbacks_executed"`
	AvgCallbackMillis float64              `json:"avg_callback_ms"`
	EventsByType      map[EventType]uint64 `json:"events_by_type"`
}

// Statistics 聚合统计
// 单调计数器 + 回调耗时增量均值，仅在显式 Reset 时清零
type Statistics struct {
	mu sync.Mutex

	connectionsTotal  uint64
	connectionsActive uint64
	messagesSent      uint64
	messagesReceived  uint64
	eventsProcessed   uint64
	callbacksExecuted uint64
	avgCallbackMillis float64
	eventsByType      map[EventType]uint64
}

// NewStatistics 创建统计器
func NewStatistics() *Statistics {
	return &Statistics{
		eventsByType: make(map[EventType]uint64),
	}
}

// ConnectionOpened 记录连接建立
func (s *Statistics) ConnectionOpened() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionsTotal++
	s.connectionsActive++
}

// ConnectionClosed 记录连接断开
func (s *Statistics) ConnectionClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectionsActive > 0 {
		s.connectionsActive--
	}
}

// MessageSent 记录消息发送成功
func (s *Statistics) MessageSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messagesSent++
}

// MessageReceived 记录收到消息
func (s *Statistics) MessageReceived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messagesReceived++
}

// EventProcessed 记录事件处理完成并累加分类型计数
func (s *Statistics) EventProcessed(t EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsProcessed++
	s.eventsByType[t]++
}

// CallbackExecuted 记录一次回调执行并更新增量均值
// avg = (avg*(n-1) + new) / n，n 为自增后的累计执行次数
func (s *Statistics) CallbackExecuted(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacksExecuted++
	n := float64(s.callbacksExecuted)
	ms := float64(d) / float64(time.Millisecond)
	s.avgCallbackMillis = (s.avgCallbackMillis*(n-1) + ms) / n
}

// Snapshot 获取统计快照
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := make(map[EventType]uint64, len(s.eventsByType))
	for t, n := range s.eventsByType {
		byType[t] = n
	}
	return StatsSnapshot{
		ConnectionsTotal:  s.connectionsTotal,
		ConnectionsActive: s.connectionsActive,
		MessagesSent:      s.messagesSent,
		MessagesReceived:  s.messagesReceived,
		EventsProcessed:   s.eventsProcessed,
		CallbacksExecuted: s.callbacksExecuted,
		AvgCallbackMillis: s.avgCallbackMillis,
		EventsByType:      byType,
	}
}

// Reset 重置所有计数
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionsTotal = 0
	s.connectionsActive = 0
	s.messagesSent = 0
	s.messagesReceived = 0
	s.eventsProcessed = 0
	s.callbacksExecuted = 0
	s.avgCallbackMillis = 0
	s.eventsByType = make(map[EventType]uint64)
}
