package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tokmz/netgate/pkg/eventbus"
)

// 错误定义
var (
	ErrUpgradeRejected  = errors.New("websocket: upgrade rejected")
	ErrInvalidHandle    = errors.New("websocket: invalid handle")
	ErrConnectionClosed = errors.New("websocket: connection closed")
	ErrServerClosed     = errors.New("websocket: server closed")
)

// EventSink 总线入站接口
// 传输层只负责协议，所有语义都经由这些入口交给总线
type EventSink interface {
	OnOpen(handle eventbus.Handle) uint64
	OnClose(handle eventbus.Handle, reason string)
	OnMessage(handle eventbus.Handle, payload []byte, binary bool)
	OnValidate(handle eventbus.Handle) bool
	OnHTTPUpgrade(handle eventbus.Handle, meta eventbus.RequestMeta)
	OnPing(handle eventbus.Handle, payload []byte)
	OnPong(handle eventbus.Handle, payload []byte)
	OnPongTimeout(handle eventbus.Handle)
}

// Config 传输配置
type Config struct {
	ReadBufferSize    int                      // 读缓冲区大小
	WriteBufferSize   int                      // 写缓冲区大小
	MaxMessageSize    int64                    // 最大消息大小
	WriteWait         time.Duration            // 写超时
	PingInterval      time.Duration            // 心跳间隔
	PongWait          time.Duration            // Pong 等待时间
	AllowedOrigins    []string                 // Origin 白名单
	CheckOrigin       func(*http.Request) bool // 自定义 Origin 检查
	EnableCompression bool                     // 是否启用压缩
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MaxMessageSize:  512 * 1024, // 512KB
		WriteWait:       10 * time.Second,
		PingInterval:    30 * time.Second,
		PongWait:        90 * time.Second,
	}
}

// Server WebSocket 传输适配器
// 明文与 TLS 监听由外层 HTTP 服务负责，这里只有一份升级与收发逻辑
type Server struct {
	sink     EventSink
	config   *Config
	upgrader websocket.Upgrader
	logger   eventbus.Logger

	conns  sync.Map // *Conn -> struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewServer 创建传输适配器
func NewServer(sink EventSink, config *Config, logger eventbus.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = &eventbus.NopLogger{}
	}

	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		if len(config.AllowedOrigins) > 0 {
			checkOrigin = whitelistChecker(config.AllowedOrigins)
		} else {
			checkOrigin = sameOriginChecker
		}
	}

	return &Server{
		sink:   sink,
		config: config,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			CheckOrigin:       checkOrigin,
			EnableCompression: config.EnableCompression,
		},
	}
}

// sameOriginChecker 默认同源检查，空 Origin 视为非浏览器客户端放行
func sameOriginChecker(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// whitelistChecker 创建白名单检查器
func whitelistChecker(allowedOrigins []string) func(*http.Request) bool {
	whitelist := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		whitelist[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return false
		}
		return whitelist[origin]
	}
}

// HandleUpgrade 处理 WebSocket 升级
// 升级前先经总线校验（连接数上限），拒绝时返回 503
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) error {
	if s.closed.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return ErrServerClosed
	}

	c := newConn(r)

	if !s.sink.OnValidate(c) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return ErrUpgradeRejected
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c.ws = ws
	c.lastPong.Store(time.Now().UnixNano())

	s.conns.Store(c, struct{}{})

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}
	s.sink.OnHTTPUpgrade(c, eventbus.RequestMeta{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: headers,
	})
	s.sink.OnOpen(c)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.readLoop(c)
	}()
	go func() {
		defer s.wg.Done()
		s.pingLoop(c)
	}()

	return nil
}

// readLoop 读取消息并喂给总线，连接断开时上报 OnClose
func (s *Server) readLoop(c *Conn) {
	c.ws.SetReadLimit(s.config.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.config.PongWait))

	c.ws.SetPongHandler(func(appData string) error {
		c.lastPong.Store(time.Now().UnixNano())
		s.sink.OnPong(c, []byte(appData))
		return c.ws.SetReadDeadline(time.Now().Add(s.config.PongWait))
	})
	c.ws.SetPingHandler(func(appData string) error {
		s.sink.OnPing(c, []byte(appData))
		// gorilla 默认的 Pong 回复被自定义 handler 覆盖，这里补上
		err := c.ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(s.config.WriteWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	reason := "connection closed"
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("连接异常断开: remote=%s err=%v", c.remote, err)
			}
			reason = err.Error()
			break
		}
		s.sink.OnMessage(c, data, messageType == websocket.BinaryMessage)
	}

	s.conns.Delete(c)
	c.markClosed()
	_ = c.ws.Close()
	s.sink.OnClose(c, reason)
}

// pingLoop 周期发送 Ping 并检测 Pong 超时
func (s *Server) pingLoop(c *Conn) {
	interval := s.config.PingInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, c.lastPong.Load())) > s.config.PongWait {
				s.sink.OnPongTimeout(c)
				_ = s.Close(c, websocket.ClosePolicyViolation, "pong timeout")
				return
			}
			c.mu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// ---------------------------------------------------------------------------
// eventbus.Transport 实现（出站方向）
// ---------------------------------------------------------------------------

// Send 发送数据帧
func (s *Server) Send(handle eventbus.Handle, payload []byte, binary bool) error {
	c, ok := handle.(*Conn)
	if !ok {
		return ErrInvalidHandle
	}
	if c.IsClosed() || c.ws == nil {
		return ErrConnectionClosed
	}

	messageType := websocket.TextMessage
	if binary {
		messageType = websocket.BinaryMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(s.config.WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}

// Close 关闭连接，尽力发送关闭帧
func (s *Server) Close(handle eventbus.Handle, code int, reason string) error {
	c, ok := handle.(*Conn)
	if !ok {
		return ErrInvalidHandle
	}
	if c.ws == nil {
		c.markClosed()
		return nil
	}

	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(s.config.WriteWait))
	c.mu.Unlock()

	c.markClosed()
	return c.ws.Close()
}

// RemoteEndpoint 返回远端地址
func (s *Server) RemoteEndpoint(handle eventbus.Handle) string {
	c, ok := handle.(*Conn)
	if !ok {
		return ""
	}
	return c.remote
}

// RequestHeader 返回升级请求头
func (s *Server) RequestHeader(handle eventbus.Handle, name string) string {
	c, ok := handle.(*Conn)
	if !ok || c.header == nil {
		return ""
	}
	return c.header.Get(name)
}

// Shutdown 关闭所有连接并等待收发协程退出
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.conns.Range(func(key, _ any) bool {
		if c, ok := key.(*Conn); ok {
			_ = s.Close(c, websocket.CloseGoingAway, "server shutting down")
		}
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
