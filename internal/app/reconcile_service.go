package app

import (
	"context"
	"errors"
	"time"

	"github.com/matajir-next/internal/logger"
)

// ReconcileFunc 执行一轮全量库存计数重算
type ReconcileFunc func(ctx context.Context) error

// ReconcileService 进程内定时重算库存计数
type ReconcileService struct {
	name      string
	reconcile ReconcileFunc
	interval  time.Duration
	stopped   chan struct{}
}

// NewReconcileService 创建定时重算服务
func NewReconcileService(reconcile ReconcileFunc, interval time.Duration) *ReconcileService {
	return &ReconcileService{
		name:      "reconcile",
		reconcile: reconcile,
		interval:  interval,
		stopped:   make(chan struct{}),
	}
}

// Name 服务名称
func (s *ReconcileService) Name() string {
	if s == nil || s.name == "" {
		return "reconcile"
	}
	return s.name
}

// Start 启动服务，阻塞至 ctx 取消
func (s *ReconcileService) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("reconcile service not initialized")
	}
	defer close(s.stopped)
	if s.reconcile == nil || s.interval <= 0 {
		return errors.New("reconcile service not initialized")
	}

	runOnce := func() {
		if err := s.reconcile(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnw("app_local_reconcile_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

// Stop 等待当前一轮重算结束
func (s *ReconcileService) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
