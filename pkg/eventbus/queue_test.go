package eventbus

import (
	"testing"
	"time"
)

func newTestEvent(t EventType) *Event {
	return NewEvent(t, PriorityNormal, SystemContext{Component: "test"})
}

// 队列满时淘汰最旧事件，生产者不阻塞
func TestQueueDropOldest(t *testing.T) {
	q := NewEventQueue(2, nil)
	q.Pause()

	e1 := newTestEvent(EventCustom)
	e2 := newTestEvent(EventCustom)
	e3 := newTestEvent(EventCustom)

	if !q.Publish(e1) || !q.Publish(e2) {
		t.Fatal("入队失败")
	}
	if !q.Publish(e3) {
		t.Fatal("队列满时入队应当成功（淘汰最旧）")
	}

	if q.Len() != 2 {
		t.Fatalf("队列长度 = %d, 期望 2", q.Len())
	}
	if q.Dropped() != 1 {
		t.Fatalf("淘汰计数 = %d, 期望 1", q.Dropped())
	}

	items := q.snapshot()
	if items[0].ID != e2.ID || items[1].ID != e3.ID {
		t.Fatal("淘汰的不是最旧事件")
	}
}

// 暂停只阻塞消费者，入队照常
func TestQueuePauseResume(t *testing.T) {
	q := NewEventQueue(8, nil)
	q.Pause()

	e1 := newTestEvent(EventCustom)
	q.Publish(e1)

	got := make(chan *Event, 1)
	go func() {
		ev, ok := q.Dequeue()
		if ok {
			got <- ev
		}
	}()

	select {
	case <-got:
		t.Fatal("暂停期间不应出队")
	case <-time.After(50 * time.Millisecond):
	}

	q.Resume()
	select {
	case ev := <-got:
		if ev.ID != e1.ID {
			t.Fatal("出队事件不匹配")
		}
	case <-time.After(time.Second):
		t.Fatal("恢复后出队超时")
	}
}

// 关闭唤醒所有阻塞的 worker 并丢弃剩余事件
func TestQueueShutdown(t *testing.T) {
	q := NewEventQueue(8, nil)
	q.Publish(newTestEvent(EventCustom))

	done := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			for {
				if _, ok := q.Dequeue(); !ok {
					done <- true
					return
				}
			}
		}()
	}

	q.Shutdown()
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("关闭后 worker 未退出")
		}
	}

	if q.Publish(newTestEvent(EventCustom)) {
		t.Fatal("关闭后入队应返回 false")
	}
}

// 出队顺序为 FIFO
func TestQueueFIFO(t *testing.T) {
	q := NewEventQueue(8, nil)
	events := []*Event{
		newTestEvent(EventConnectionOpened),
		newTestEvent(EventMessageReceived),
		newTestEvent(EventConnectionClosed),
	}
	for _, ev := range events {
		q.Publish(ev)
	}

	for i, want := range events {
		ev, ok := q.Dequeue()
		if !ok {
			t.Fatalf("第 %d 次出队失败", i)
		}
		if ev.ID != want.ID {
			t.Fatalf("第 %d 次出队顺序错误", i)
		}
	}
}
