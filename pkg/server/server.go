package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/tokmz/netgate/pkg/config"
	"github.com/tokmz/netgate/pkg/eventbus"
	"github.com/tokmz/netgate/pkg/transport/websocket"
)

// Server 内嵌 HTTP 服务
// 管理界面静态文件、REST API 与 WebSocket 升级入口共用一个 gin 引擎，
// 明文与 TLS 监听只是同一处理器的两个监听器
type Server struct {
	engine   *gin.Engine
	bus      *eventbus.Bus
	ws       *websocket.Server
	settings config.ServerSettings
	logger   eventbus.Logger

	plain *http.Server
	tls   *http.Server
}

// New 创建服务
func New(bus *eventbus.Bus, ws *websocket.Server, settings config.ServerSettings, logger eventbus.Logger) *Server {
	if logger == nil {
		logger = &eventbus.NopLogger{}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		bus:      bus,
		ws:       ws,
		settings: settings,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

// registerRoutes 注册路由
func (s *Server) registerRoutes() {
	if s.settings.StaticDir != "" {
		s.engine.Static("/ui", s.settings.StaticDir)
		s.engine.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/ui/")
		})
	}

	s.engine.GET("/ws", func(c *gin.Context) {
		if err := s.ws.HandleUpgrade(c.Writer, c.Request); err != nil {
			s.logger.Warn("WebSocket 升级失败: remote=%s err=%v", c.Request.RemoteAddr, err)
		}
	})

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    0,
				"message": "success",
				"data":    s.bus.Stats(),
			})
		})

		v1.POST("/stats/reset", func(c *gin.Context) {
			s.bus.ResetStats()
			c.JSON(http.StatusOK, gin.H{
				"code":    0,
				"message": "success",
			})
		})

		v1.GET("/callbacks", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    0,
				"message": "success",
				"data":    s.bus.GetRegisteredCallbacks(),
			})
		})

		v1.GET("/connections", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    0,
				"message": "success",
				"data": gin.H{
					"active": s.bus.Connections().Count(),
					"ids":    s.bus.Connections().ActiveIDs(),
				},
			})
		})
	}
}

// Handler 返回底层处理器（测试用）
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 启动监听，阻塞直到 ctx 取消或任一监听器出错
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.settings.Addr != "" {
		s.plain = &http.Server{Addr: s.settings.Addr, Handler: s.engine}
		g.Go(func() error {
			s.logger.Info("HTTP 监听已启动: addr=%s", s.settings.Addr)
			if err := s.plain.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	if s.settings.TLSAddr != "" {
		s.tls = &http.Server{Addr: s.settings.TLSAddr, Handler: s.engine}
		g.Go(func() error {
			s.logger.Info("HTTPS 监听已启动: addr=%s", s.settings.TLSAddr)
			if err := s.tls.ListenAndServeTLS(s.settings.CertFile, s.settings.KeyFile); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown 依次关闭监听器与 WebSocket 连接
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, srv := range []*http.Server{s.plain, s.tls} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.ws.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
