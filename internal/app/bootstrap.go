package app

import (
	"errors"
	"net"
	"time"

	"github.com/quickbite/internal/config"
	"github.com/quickbite/internal/logger"
	"github.com/quickbite/internal/provider"
	"github.com/quickbite/internal/router"
	"github.com/quickbite/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, *provider.Container, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service

	// 初始化 HTTP 服务与实时推送
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		httpService := NewHTTPService(cfg.Server, engine)
		services = append(services, httpService)
		if container.Hub != nil {
			services = append(services, container.Hub)
		}
	}

	// 初始化 Worker 服务
	if mode == ModeAll || mode == ModeWorker {
		if cfg.Queue.Enabled {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, container, err
			}
			services = append(services, workerService)
		} else {
			logger.Infow("app_queue_disabled_inline_notifications")
		}
		sweeper, err := worker.NewCartSweeper(cfg.Cart, container.CartService)
		if err != nil {
			logger.Warnw("app_cart_sweeper_disabled", "error", err)
		} else {
			services = append(services, sweeper)
		}
	}

	// 如果没有服务被启动（例如模式错误或配置导致都没起），应该报错或至少打日志
	if len(services) == 0 {
		return nil, container, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), container, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	if opts.Config == nil {
		return errors.New("config is nil")
	}
	if opts.ShutdownTimeout <= 0 && opts.Config.Server.ShutdownTimeoutSeconds > 0 {
		opts.ShutdownTimeout = time.Duration(opts.Config.Server.ShutdownTimeoutSeconds) * time.Second
	}
	opts = normalizeOptions(opts)

	runner, container, err := BuildRunner(opts.Config, opts.Mode)
	if container != nil {
		defer func() {
			if err := container.Close(); err != nil {
				opts.Logger.Warnw("app_close_resources_failed", "error", err)
			}
		}()
	}
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(opts.Config.Server.Host, opts.Config.Server.Port)
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
