package websocket

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Conn 单个 WebSocket 连接，作为总线侧的传输句柄
type Conn struct {
	ws     *websocket.Conn
	remote string
	header http.Header

	// 写锁：gorilla 连接不允许并发写
	mu sync.Mutex

	lastPong  atomic.Int64 // Unix 纳秒
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// newConn 创建连接句柄，升级成功前 ws 为空
func newConn(r *http.Request) *Conn {
	return &Conn{
		remote: r.RemoteAddr,
		header: r.Header,
		done:   make(chan struct{}),
	}
}

// markClosed 标记连接关闭并通知 ping 协程退出
func (c *Conn) markClosed() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
}

// IsClosed 是否已关闭
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// RemoteAddr 远端地址
func (c *Conn) RemoteAddr() string {
	return c.remote
}
