package provider

import (
	"time"

	"github.com/matajir-next/internal/authz"
	"github.com/matajir-next/internal/cache"
	"github.com/matajir-next/internal/config"
	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/models"
	"github.com/matajir-next/internal/queue"
	"github.com/matajir-next/internal/repository"
	"github.com/matajir-next/internal/service"
	"github.com/matajir-next/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	Redis       *redis.Client
	StatsCache  cache.Store
	QueueClient *queue.Client
	Metrics     *telemetry.InventoryMetrics

	// Repositories
	InventoryStore repository.InventoryStore
	OrderRepo      repository.OrderRepository

	// Services
	AuthzService      *authz.Service
	TokenIssuer       *service.OperatorTokenIssuer
	ProductService    *service.ProductService
	CodeImportService *service.CodeImportService
	AllocatorService  *service.AllocatorService
	InventoryService  *service.InventoryService
	CheckoutService   *service.CheckoutService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	redisClient := cache.NewRedisClient(&cfg.Redis)

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	metrics, err := telemetry.NewInventoryMetrics(telemetry.Meter())
	if err != nil {
		logger.Warnw("provider_init_inventory_metrics_failed", "error", err)
		metrics = nil
	}

	c := &Container{
		Config:      cfg,
		DB:          models.DB,
		Redis:       redisClient,
		StatsCache:  cache.NewStore(redisClient, cfg.Redis.Prefix),
		QueueClient: queueClient,
		Metrics:     metrics,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	if c.Config.Inventory.Backend == "memory" {
		logger.Warnw("provider_inventory_memory_backend", "hint", "codes and orders are lost on restart")
		c.InventoryStore = repository.NewMemoryInventoryStore()
		c.OrderRepo = repository.NewMemoryOrderRepository()
		return
	}
	c.InventoryStore = repository.NewGormInventoryStore(c.DB)
	c.OrderRepo = repository.NewOrderRepository(c.DB)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.TokenIssuer = service.NewOperatorTokenIssuer(c.Config.JWT.SecretKey, c.Config.JWT.Issuer, c.Config.JWT.ExpireHours)

	var publisher service.InventoryTaskPublisher
	if c.QueueClient != nil {
		publisher = c.QueueClient
	}
	if c.Config.Inventory.SyntheticFallback {
		logger.Warnw("provider_synthetic_fallback_enabled", "hint", "exhausted pools will be served generated codes")
	}

	inv := c.Config.Inventory
	c.ProductService = service.NewProductService(c.InventoryStore)
	c.CodeImportService = service.NewCodeImportService(c.InventoryStore, c.StatsCache, c.Metrics, inv.MaxImportSize)
	c.AllocatorService = service.NewAllocatorService(c.InventoryStore, service.AllocatorOptions{
		SyntheticFallback: inv.SyntheticFallback,
		MaxRetries:        inv.AllocateMaxRetries,
		LowStockThreshold: inv.LowStockThreshold,
		MaxQuantity:       inv.MaxAllocateQuantity,
	}, publisher, c.StatsCache, c.Metrics)
	c.InventoryService = service.NewInventoryService(c.InventoryStore, c.StatsCache, time.Duration(inv.StatsCacheTTLSeconds)*time.Second)
	c.CheckoutService = service.NewCheckoutService(c.AllocatorService, c.InventoryStore, c.OrderRepo, c.Metrics)
}

// Close 释放外部连接
func (c *Container) Close() {
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Warnw("provider_close_redis_failed", "error", err)
		}
	}
}
