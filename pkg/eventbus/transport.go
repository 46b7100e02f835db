package eventbus

// Transport 传输适配器出站接口
// 握手、分帧、TLS 由适配器负责，总线只通过句柄回写数据
type Transport interface {
	// Send 发送数据帧，binary 为 true 时使用二进制帧
	Send(handle Handle, payload []byte, binary bool) error

	// Close 关闭连接
	Close(handle Handle, code int, reason string) error

	// RemoteEndpoint 返回远端地址
	RemoteEndpoint(handle Handle) string

	// RequestHeader 返回升级请求头
	RequestHeader(handle Handle, name string) string
}

// RequestMeta HTTP 升级请求的元信息
type RequestMeta struct {
	Method  string            // HTTP 方法
	Path    string            // 请求路径
	Headers map[string]string // 请求头
}
