package eventbus

import (
	"math"
	"testing"
	"time"
)

// 回调耗时增量均值：avg = (avg*(n-1) + new) / n
func TestStatsIncrementalAverage(t *testing.T) {
	s := NewStatistics()

	samples := []time.Duration{
		2 * time.Millisecond,
		4 * time.Millisecond,
		6 * time.Millisecond,
	}
	for _, d := range samples {
		s.CallbackExecuted(d)
	}

	snap := s.Snapshot()
	if snap.CallbacksExecuted != 3 {
		t.Fatalf("执行次数 = %d, 期望 3", snap.CallbacksExecuted)
	}
	if math.Abs(snap.AvgCallbackMillis-4.0) > 1e-9 {
		t.Fatalf("均值 = %f, 期望 4.0", snap.AvgCallbackMillis)
	}
}

// 连接计数：活跃数不会减到负数
func TestStatsConnections(t *testing.T) {
	s := NewStatistics()

	s.ConnectionOpened()
	s.ConnectionOpened()
	s.ConnectionClosed()

	snap := s.Snapshot()
	if snap.ConnectionsTotal != 2 {
		t.Fatalf("累计连接数 = %d, 期望 2", snap.ConnectionsTotal)
	}
	if snap.ConnectionsActive != 1 {
		t.Fatalf("活跃连接数 = %d, 期望 1", snap.ConnectionsActive)
	}

	s.ConnectionClosed()
	s.ConnectionClosed()
	if s.Snapshot().ConnectionsActive != 0 {
		t.Fatal("活跃连接数不应为负")
	}
}

// 分类型事件计数
func TestStatsEventsByType(t *testing.T) {
	s := NewStatistics()
	s.EventProcessed(EventMessageReceived)
	s.EventProcessed(EventMessageReceived)
	s.EventProcessed(EventConnectionOpened)

	snap := s.Snapshot()
	if snap.EventsProcessed != 3 {
		t.Fatalf("事件总数 = %d, 期望 3", snap.EventsProcessed)
	}
	if snap.EventsByType[EventMessageReceived] != 2 {
		t.Fatal("分类型计数错误")
	}

	// 快照持有独立 map
	snap.EventsByType[EventCustom] = 99
	if s.Snapshot().EventsByType[EventCustom] != 0 {
		t.Fatal("快照 map 与内部状态共享")
	}
}

// Reset 清零所有计数
func TestStatsReset(t *testing.T) {
	s := NewStatistics()
	s.ConnectionOpened()
	s.MessageSent()
	s.MessageReceived()
	s.EventProcessed(EventCustom)
	s.CallbackExecuted(time.Millisecond)

	s.Reset()
	snap := s.Snapshot()
	if snap.ConnectionsTotal != 0 || snap.MessagesSent != 0 || snap.MessagesReceived != 0 ||
		snap.EventsProcessed != 0 || snap.CallbacksExecuted != 0 || snap.AvgCallbackMillis != 0 {
		t.Fatalf("重置后仍有残留计数: %+v", snap)
	}
	if len(snap.EventsByType) != 0 {
		t.Fatal("重置后分类型计数未清空")
	}
}
