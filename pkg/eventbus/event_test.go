package eventbus

import (
	"testing"
)

// 优先级上限判断：零值上限不过滤
func TestPriorityAtLeast(t *testing.T) {
	if !PriorityLow.AtLeast(0) {
		t.Fatal("零值上限应放行一切优先级")
	}
	if !PriorityCritical.AtLeast(PriorityNormal) {
		t.Fatal("Critical 应通过 Normal 上限")
	}
	if PriorityLow.AtLeast(PriorityNormal) {
		t.Fatal("Low 不应通过 Normal 上限")
	}
}

// ConnectionID 对各载荷类型的提取
func TestEventConnectionID(t *testing.T) {
	cases := []struct {
		name    string
		payload Payload
		wantID  uint64
		wantOK  bool
	}{
		{"连接载荷", ConnectionContext{Conn: Connection{ID: 7}}, 7, true},
		{"消息载荷", MessageContext{Conn: Connection{ID: 8}}, 8, true},
		{"请求载荷无连接", RequestContext{RemoteAddr: "1.2.3.4"}, 0, false},
		{"数据载荷", DataContext{Conn: Connection{ID: 9}}, 9, true},
		{"系统载荷", SystemContext{Component: "x"}, 0, false},
	}
	for _, tc := range cases {
		ev := NewEvent(EventCustom, PriorityNormal, tc.payload)
		id, ok := ev.ConnectionID()
		if id != tc.wantID || ok != tc.wantOK {
			t.Fatalf("%s: got (%d, %v), want (%d, %v)", tc.name, id, ok, tc.wantID, tc.wantOK)
		}
	}
}

// 每个事件分配唯一 ID 与时间戳
func TestNewEvent(t *testing.T) {
	e1 := NewEvent(EventCustom, PriorityHigh, SystemContext{})
	e2 := NewEvent(EventCustom, PriorityHigh, SystemContext{})
	if e1.ID == "" || e1.ID == e2.ID {
		t.Fatal("事件 ID 应唯一且非空")
	}
	if e1.Timestamp.IsZero() {
		t.Fatal("事件时间戳未设置")
	}
	if e1.Priority != PriorityHigh {
		t.Fatal("事件优先级未设置")
	}
}
