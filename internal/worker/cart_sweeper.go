package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/quickbite/internal/config"
	"github.com/quickbite/internal/logger"

	"github.com/robfig/cron/v3"
)

const defaultSweepSpec = "@every 5m"

// CartExpirer 过期购物车清理
type CartExpirer interface {
	ExpireStale(maxIdle time.Duration) (int64, error)
}

// CartSweeper 定时将长时间未更新的购物车标记为过期
type CartSweeper struct {
	name    string
	cron    *cron.Cron
	spec    string
	maxIdle time.Duration
	carts   CartExpirer
	mu      sync.Mutex
}

// NewCartSweeper 创建购物车清理服务
func NewCartSweeper(cfg config.CartConfig, carts CartExpirer) (*CartSweeper, error) {
	if carts == nil {
		return nil, errors.New("cart expirer is nil")
	}
	if cfg.ExpireAfterMinutes <= 0 {
		return nil, errors.New("cart expiry disabled")
	}
	spec := strings.TrimSpace(cfg.SweepCron)
	if spec == "" {
		spec = defaultSweepSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, err
	}
	return &CartSweeper{
		name:    "cart_sweeper",
		cron:    cron.New(),
		spec:    spec,
		maxIdle: time.Duration(cfg.ExpireAfterMinutes) * time.Minute,
		carts:   carts,
	}, nil
}

// Name 服务名称
func (s *CartSweeper) Name() string {
	return s.name
}

// Start 注册定时任务并阻塞到 ctx 结束
func (s *CartSweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, s.Sweep); err != nil {
		logger.Errorw("cart_sweeper_schedule_failed", "spec", s.spec, "error", err)
		return err
	}
	s.cron.Start()
	logger.Infow("cart_sweeper_started", "spec", s.spec, "max_idle", s.maxIdle.String())
	<-ctx.Done()
	return nil
}

// Stop 停止调度并等待进行中的清理结束
func (s *CartSweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep 执行一次清理
func (s *CartSweeper) Sweep() {
	// 上一轮未结束时跳过
	if !s.mu.TryLock() {
		logger.Debugw("cart_sweeper_skip_running")
		return
	}
	defer s.mu.Unlock()
	expired, err := s.carts.ExpireStale(s.maxIdle)
	if err != nil {
		logger.Warnw("cart_sweeper_failed", "error", err)
		return
	}
	if expired > 0 {
		logger.Infow("cart_sweeper_expired", "count", expired)
	}
}
