package app

import (
	"context"
	"errors"
	"time"

	"github.com/matajir-next/internal/config"
	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/provider"
	"github.com/matajir-next/internal/router"
	"github.com/matajir-next/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service
	reconcileInterval := time.Duration(cfg.Inventory.ReconcileIntervalMinutes) * time.Minute

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(cfg.Server, engine))
	}

	// 初始化 Worker 服务，队列未启用时由进程内定时任务兜底计数重算
	if mode == ModeAll || mode == ModeWorker {
		if cfg.Queue.Enabled && container.QueueClient != nil {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer, reconcileInterval)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else if mode == ModeWorker {
			return nil, errors.New("worker mode requires queue to be enabled")
		} else if reconcileInterval > 0 {
			logger.Warnw("app_queue_disabled_use_local_reconcile", "interval", reconcileInterval.String())
			inventory := container.InventoryService
			services = append(services, NewReconcileService(func(ctx context.Context) error {
				_, err := inventory.Reconcile(ctx, "")
				return err
			}, reconcileInterval))
		}
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	runner := NewRunner(services...)
	runner.OnStop(func(context.Context) {
		container.Close()
	})
	return runner, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}
	if opts.Telemetry != nil {
		telemetryProvider := opts.Telemetry
		runner.OnStop(func(ctx context.Context) {
			if err := telemetryProvider.Shutdown(ctx); err != nil {
				opts.Logger.Warnw("telemetry_shutdown_failed", "error", err)
			}
		})
	}

	opts.Logger.Infow("app_start", "addr", opts.Config.Server.Addr(), "mode", opts.Mode, "inventory_backend", opts.Config.Inventory.Backend)
	return RunWithOptions(runner, opts)
}
