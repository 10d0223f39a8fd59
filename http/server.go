// Package http 提供预测API和静态页面
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"icecream/monitoring"
	"icecream/service"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// DefaultServerConfig 默认服务器配置, 监听 0.0.0.0:5000
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           5000,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, handlers *Handlers) *Server {
	return &Server{
		server: &http.Server{
			Addr:         net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
			Handler:      NewHandler(config, handlers),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
		logger: handlers.logger,
	}
}

// NewHandler 路由加中间件链, 不含监听
func NewHandler(config ServerConfig, handlers *Handlers) http.Handler {
	mux := http.NewServeMux()
	RegisterHandlers(mux, handlers)

	chain := Chain(
		RecoveryMiddleware(handlers.logger),   // 1. 最外层, 捕获panic
		RequestIDMiddleware,                   // 2. 请求ID
		LoggerMiddleware(handlers.logger),     // 3. 访问日志
		SecurityHeadersMiddleware,             // 4. 安全头
		CORSMiddleware(config.AllowedOrigins), // 5. CORS
		MetricsMiddleware(handlers.metrics),   // 6. 最内层, 读取匹配的路由
	)
	return chain(mux)
}

// Start 启动服务器, 阻塞直到停止
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器, 最多等待5秒
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}

// StaticConfig 首页、数据文件和静态目录
type StaticConfig struct {
	Dir      string
	Index    string
	DataPath string
}

// Handlers 路由处理器依赖, 构造后只读
type Handlers struct {
	svc     *service.Service
	static  StaticConfig
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewHandlers 创建路由处理器
func NewHandlers(svc *service.Service, static StaticConfig, logger *zap.Logger, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		svc:     svc,
		static:  static,
		logger:  logger,
		metrics: metrics,
	}
}
