package eventbus

import (
	"log"

	"go.uber.org/zap"
)

// Logger 日志接口
// 各组件在构造时显式注入，不依赖全局单例
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StdLogger 标准库 log 适配器
type StdLogger struct{}

func (l *StdLogger) Debug(msg string, args ...any) {
	if len(args) == 0 {
		log.Print("[DEBUG] " + msg)
	} else {
		log.Printf("[DEBUG] "+msg, args...)
	}
}

func (l *StdLogger) Info(msg string, args ...any) {
	if len(args) == 0 {
		log.Print("[INFO] " + msg)
	} else {
		log.Printf("[INFO] "+msg, args...)
	}
}

func (l *StdLogger) Warn(msg string, args ...any) {
	if len(args) == 0 {
		log.Print("[WARN] " + msg)
	} else {
		log.Printf("[WARN] "+msg, args...)
	}
}

func (l *StdLogger) Error(msg string, args ...any) {
	if len(args) == 0 {
		log.Print("[ERROR] " + msg)
	} else {
		log.Printf("[ERROR] "+msg, args...)
	}
}

// NopLogger 空日志实现
type NopLogger struct{}

func (l *NopLogger) Debug(msg string, args ...any) {}

func (l *NopLogger) Info(msg string, args ...any) {}

func (l *NopLogger) Warn(msg string, args ...any) {}

func (l *NopLogger) Error(msg string, args ...any) {}

// ZapLogger zap 日志适配器
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger 创建 zap 日志适配器
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

func (l *ZapLogger) Debug(msg string, args ...any) {
	if len(args) == 0 {
		l.logger.Debug(msg)
		return
	}
	l.logger.Sugar().Debugf(msg, args...)
}

func (l *ZapLogger) Info(msg string, args ...any) {
	if len(args) == 0 {
		l.logger.Info(msg)
		return
	}
	l.logger.Sugar().Infof(msg, args...)
}

func (l *ZapLogger) Warn(msg string, args ...any) {
	if len(args) == 0 {
		l.logger.Warn(msg)
		return
	}
	l.logger.Sugar().Warnf(msg, args...)
}

func (l *ZapLogger) Error(msg string, args ...any) {
	if len(args) == 0 {
		l.logger.Error(msg)
		return
	}
	l.logger.Sugar().Errorf(msg, args...)
}
