package eventbus

import (
	"sort"
	"sync"
)

// DoneFunc 单条发送完成回调
type DoneFunc func(success bool)

// BroadcastDoneFunc 广播完成回调，参数为发送失败的连接 ID 列表
type BroadcastDoneFunc func(failed []uint64)

// GroupDoneFunc 定向群发完成回调，参数为每个连接的发送结果
type GroupDoneFunc func(results map[uint64]bool)

// SendMessage 向指定连接发送文本消息
// 发送结果以布尔值报告并通过事件回流，传输错误不向上抛出
func (b *Bus) SendMessage(id uint64, text string, done DoneFunc) bool {
	return b.send(id, []byte(text), false, done)
}

// SendBinary 向指定连接发送二进制消息
func (b *Bus) SendBinary(id uint64, data []byte, done DoneFunc) bool {
	return b.send(id, data, true, done)
}

// send 解析句柄并经传输层发送，成功/失败都回流为事件
func (b *Bus) send(id uint64, payload []byte, binary bool, done DoneFunc) bool {
	handle, ok := b.conns.HandleOf(id)
	if !ok {
		b.logger.Debug("发送目标连接不存在: id=%d", id)
		if done != nil {
			done(false)
		}
		return false
	}

	snap, _ := b.conns.Lookup(id)
	err := b.transport.Send(handle, payload, binary)
	if err != nil {
		b.Publish(NewEvent(EventMessageFailed, PriorityHigh, MessageContext{
			Conn:   snap,
			Data:   payload,
			Binary: binary,
		}))
		b.logger.Warn("消息发送失败: id=%d err=%v", id, err)
		if done != nil {
			done(false)
		}
		return false
	}

	b.stats.MessageSent()
	b.Publish(NewEvent(EventMessageSent, PriorityNormal, MessageContext{
		Conn:   snap,
		Data:   payload,
		Binary: binary,
	}))
	if done != nil {
		done(true)
	}
	return true
}

// Broadcast 向所有活跃连接广播文本消息
// 全部发送完成后聚合失败 ID 列表（升序）
func (b *Bus) Broadcast(text string, done BroadcastDoneFunc) []uint64 {
	return b.broadcast([]byte(text), false, done)
}

// BroadcastBinary 向所有活跃连接广播二进制消息
func (b *Bus) BroadcastBinary(data []byte, done BroadcastDoneFunc) []uint64 {
	return b.broadcast(data, true, done)
}

func (b *Bus) broadcast(payload []byte, binary bool, done BroadcastDoneFunc) []uint64 {
	ids := b.conns.ActiveIDs()

	var (
		mu     sync.Mutex
		failed []uint64
		wg     sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if !b.send(id, payload, binary, nil) {
				mu.Lock()
				failed = append(failed, id)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	if done != nil {
		done(failed)
	}
	return failed
}

// SendToConnections 向指定连接集合发送文本消息，返回每个连接的结果
func (b *Bus) SendToConnections(ids []uint64, text string, done GroupDoneFunc) map[uint64]bool {
	return b.sendToConnections(ids, []byte(text), false, done)
}

// SendBinaryToConnections 向指定连接集合发送二进制消息
func (b *Bus) SendBinaryToConnections(ids []uint64, data []byte, done GroupDoneFunc) map[uint64]bool {
	return b.sendToConnections(ids, data, true, done)
}

func (b *Bus) sendToConnections(ids []uint64, payload []byte, binary bool, done GroupDoneFunc) map[uint64]bool {
	var (
		mu      sync.Mutex
		results = make(map[uint64]bool, len(ids))
		wg      sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			ok := b.send(id, payload, binary, nil)
			mu.Lock()
			results[id] = ok
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if done != nil {
		done(results)
	}
	return results
}
