package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/quickbite/internal/config"
)

// HTTPService HTTP 服务封装（gin 引擎与 /ws 共用同一监听）
type HTTPService struct {
	name   string
	server *http.Server
}

// NewHTTPService 创建 HTTP 服务
func NewHTTPService(cfg config.ServerConfig, handler http.Handler) *HTTPService {
	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, cfg.Port),
		Handler: handler,
	}
	if cfg.ReadHeaderTimeoutSeconds > 0 {
		server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	}
	if cfg.IdleTimeoutSeconds > 0 {
		server.IdleTimeout = time.Duration(cfg.IdleTimeoutSeconds) * time.Second
	}
	return &HTTPService{
		name:   "http",
		server: server,
	}
}

// Addr 监听地址
func (s *HTTPService) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Name 服务名称
func (s *HTTPService) Name() string {
	if s == nil || s.name == "" {
		return "http"
	}
	return s.name
}

// Start 启动服务
func (s *HTTPService) Start(context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("http server not initialized")
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 停止服务（WebSocket 连接已被劫持，由 Hub 自行关闭）
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
