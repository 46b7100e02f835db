package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tokmz/netgate/pkg/config"
	"github.com/tokmz/netgate/pkg/eventbus"
	"github.com/tokmz/netgate/pkg/mirror"
	"github.com/tokmz/netgate/pkg/server"
	"github.com/tokmz/netgate/pkg/transport/websocket"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	// 加载配置
	loader := config.NewLoader(config.WithOnError(func(err error) {
		fmt.Fprintf(os.Stderr, "配置热更新失败: %v\n", err)
	}))
	settings, err := loader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *configPath != "" {
		loader.StartWatch()
		defer loader.StopWatch()
	}

	// 初始化日志
	zapLogger, err := newZapLogger(settings.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	logger := eventbus.NewZapLogger(zapLogger)

	// 创建总线与传输
	wsConfig := websocket.DefaultConfig()
	wsConfig.PingInterval = settings.Bus.HeartbeatInterval
	wsConfig.PongWait = settings.Bus.ConnectionTimeout

	bus, err := eventbus.New(nil,
		eventbus.WithWorkerCount(settings.Bus.WorkerCount),
		eventbus.WithQueueCapacity(settings.Bus.MaxQueueSize),
		eventbus.WithConnectionLimit(settings.Bus.ConnectionLimit),
		eventbus.WithRateLimit(settings.Bus.RateLimitPerSecond, settings.Bus.RateLimitBurst),
		eventbus.WithHeartbeatInterval(settings.Bus.HeartbeatInterval),
		eventbus.WithConnectionTimeout(settings.Bus.ConnectionTimeout),
		eventbus.WithAuthRequired(settings.Bus.AuthRequired),
		eventbus.WithDebug(settings.Bus.Debug),
		eventbus.WithEventLogging(settings.Bus.EventLogging),
		eventbus.WithPerformanceMetrics(settings.Bus.PerformanceMetrics),
		eventbus.WithLogger(logger),
	)
	if err != nil {
		logger.Error("创建事件总线失败: %v", err)
		os.Exit(1)
	}
	ws := websocket.NewServer(bus, wsConfig, logger)
	bus.SetTransport(ws)

	// 业务回调示例：回显文本消息，记录连接生命周期
	bus.OnConnectionOpened(func(ev *eventbus.Event, ctx eventbus.ConnectionContext) {
		logger.Info("设备上线: conn=%d remote=%s", ctx.Conn.ID, ctx.Conn.RemoteAddr)
	})
	bus.OnConnectionClosed(func(ev *eventbus.Event, ctx eventbus.ConnectionContext) {
		logger.Info("设备下线: conn=%d reason=%s", ctx.Conn.ID, ctx.Reason)
	})
	bus.OnMessageReceived(func(ev *eventbus.Event, ctx eventbus.MessageContext) {
		bus.SendMessage(ctx.Conn.ID, string(ctx.Data), nil)
	})
	bus.OnConnectionTimeout(func(ev *eventbus.Event, ctx eventbus.ConnectionContext) {
		logger.Warn("连接心跳超时: conn=%d", ctx.Conn.ID)
	})

	if err := bus.Start(); err != nil {
		logger.Error("启动事件总线失败: %v", err)
		os.Exit(1)
	}

	// 事件镜像（可选）
	var m *mirror.Mirror
	if settings.Mirror.Enabled {
		m = mirror.New(mirror.Options{
			Addr:     settings.Mirror.Addr,
			Password: settings.Mirror.Password,
			DB:       settings.Mirror.DB,
			Channel:  settings.Mirror.Channel,
			Types:    settings.Mirror.Types,
		}, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.Start(ctx, bus); err != nil {
			logger.Warn("事件镜像不可用: %v", err)
			m = nil
		}
		cancel()
	}

	// 启动 HTTP 服务，收到退出信号后优雅关停
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(bus, ws, settings.Server, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("HTTP 服务异常退出: %v", err)
	}

	if m != nil {
		_ = m.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bus.Shutdown(shutdownCtx); err != nil {
		logger.Warn("事件总线关停超时: %v", err)
	}
}

// newZapLogger 按配置创建 zap 日志器，指定文件时启用滚动切割
func newZapLogger(settings config.LogSettings) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(settings.Level)
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", settings.Level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		),
	}
	if settings.File != "" {
		writer := &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    settings.MaxSizeMB,
			MaxBackups: settings.MaxBackups,
			MaxAge:     settings.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(writer),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
