package eventbus

import (
	"testing"
)

// 连接 ID 单调递增且不复用
func TestRegistryMonotonicIDs(t *testing.T) {
	r := NewConnectionRegistry()

	var last uint64
	for i := 0; i < 10; i++ {
		id := r.Register(&struct{}{}, "127.0.0.1:1000", "", nil)
		if id <= last {
			t.Fatalf("ID 未递增: %d <= %d", id, last)
		}
		last = id
	}

	r.Unregister(last)
	id := r.Register(&struct{}{}, "127.0.0.1:1001", "", nil)
	if id <= last {
		t.Fatalf("注销后 ID 被复用: %d", id)
	}
}

// 注销后所有索引同步移除
func TestRegistryUnregister(t *testing.T) {
	r := NewConnectionRegistry()
	handle := &struct{}{}
	id := r.Register(handle, "10.0.0.1:5000", "agent/1.0", nil)

	if _, ok := r.Lookup(id); !ok {
		t.Fatal("注册后查询失败")
	}
	if got, ok := r.IDByHandle(handle); !ok || got != id {
		t.Fatal("句柄索引缺失")
	}

	if !r.Unregister(id) {
		t.Fatal("注销失败")
	}
	if _, ok := r.Lookup(id); ok {
		t.Fatal("注销后仍可按 ID 查询")
	}
	if _, ok := r.IDByHandle(handle); ok {
		t.Fatal("注销后仍可按句柄查询")
	}
	if _, ok := r.HandleOf(id); ok {
		t.Fatal("注销后仍可取句柄")
	}
	if r.Unregister(id) {
		t.Fatal("重复注销应返回 false")
	}
}

// 元数据读写与认证标记
func TestRegistryMetadata(t *testing.T) {
	r := NewConnectionRegistry()
	id := r.Register(&struct{}{}, "10.0.0.1:5000", "", nil)

	if !r.SetMetadata(id, "device", StringValue("switch-01")) {
		t.Fatal("写入元数据失败")
	}
	if !r.SetMetadata(id, "port_count", IntValue(48)) {
		t.Fatal("写入元数据失败")
	}

	v, ok := r.GetMetadata(id, "device")
	if !ok {
		t.Fatal("读取元数据失败")
	}
	if s, ok := v.String(); !ok || s != "switch-01" {
		t.Fatalf("元数据值错误: %v", v)
	}
	if _, ok := v.Int(); ok {
		t.Fatal("字符串值不应可按整数读取")
	}

	if _, ok := r.GetMetadata(id, "missing"); ok {
		t.Fatal("不存在的键应返回 false")
	}

	if !r.SetAuthenticated(id, true) {
		t.Fatal("认证标记失败")
	}
	snap, _ := r.Lookup(id)
	if !snap.Authenticated {
		t.Fatal("认证状态未生效")
	}
}

// Lookup 返回的是快照，修改不影响注册表
func TestRegistrySnapshotIsolation(t *testing.T) {
	r := NewConnectionRegistry()
	id := r.Register(&struct{}{}, "10.0.0.1:5000", "", map[string]string{"X-Token": "abc"})
	r.SetMetadata(id, "k", StringValue("v"))

	snap, _ := r.Lookup(id)
	snap.Headers["X-Token"] = "tampered"
	snap.Metadata["k"] = StringValue("tampered")

	again, _ := r.Lookup(id)
	if again.Headers["X-Token"] != "abc" {
		t.Fatal("快照修改污染了注册表的请求头")
	}
	if v, _ := again.Metadata["k"].String(); v != "v" {
		t.Fatal("快照修改污染了注册表的元数据")
	}
}

// Count 与 ActiveIDs
func TestRegistryCount(t *testing.T) {
	r := NewConnectionRegistry()
	id1 := r.Register(&struct{}{}, "a", "", nil)
	id2 := r.Register(&struct{}{}, "b", "", nil)

	if r.Count() != 2 {
		t.Fatalf("连接数 = %d, 期望 2", r.Count())
	}

	ids := r.ActiveIDs()
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[id1] || !seen[id2] {
		t.Fatal("ActiveIDs 缺少已注册连接")
	}
}
