package eventbus

import "errors"

// 错误定义
var (
	// 连接相关错误
	ErrTooManyConnections = errors.New("eventbus: too many connections")
	ErrConnectionNotFound = errors.New("eventbus: connection not found")

	// 总线生命周期错误
	ErrBusClosed     = errors.New("eventbus: bus closed")
	ErrBusNotStarted = errors.New("eventbus: bus not started")
	ErrNoTransport   = errors.New("eventbus: transport not set")

	// 回调相关错误
	ErrCallbackNotFound = errors.New("eventbus: callback not found")

	// 配置相关错误
	ErrInvalidConfig = errors.New("eventbus: invalid config")
)
