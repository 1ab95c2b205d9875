package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matajir-next/internal/config"
	"github.com/matajir-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault

	lowStockAlertDedupeWindow = 10 * time.Minute
	releaseRetryMaxAttempts   = 10
)

// Client 队列客户端封装
type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue}, nil
	}
	opt := buildRedisOpt(cfg)
	client := asynq.NewClient(opt)
	return &Client{
		client:       client,
		enabled:      true,
		defaultQueue: DefaultQueue,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueInventoryReconcile 推送库存重算任务
func (c *Client) EnqueueInventoryReconcile(payload InventoryReconcilePayload, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewInventoryReconcileTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, c.defaultQueue, opts...)
}

// EnqueueLowStockAlert 推送低库存告警任务，同一商品在窗口期内只保留一条
func (c *Client) EnqueueLowStockAlert(payload InventoryLowStockAlertPayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewInventoryLowStockAlertTask(payload)
	if err != nil {
		return err
	}
	err = c.enqueue(task, c.defaultQueue, asynq.Unique(lowStockAlertDedupeWindow))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// EnqueueReleaseRetry 推送补偿释放重试任务
func (c *Client) EnqueueReleaseRetry(payload InventoryReleaseRetryPayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewInventoryReleaseRetryTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, constants.QueueCritical, asynq.MaxRetry(releaseRetryMaxAttempts), asynq.ProcessIn(time.Second))
}

func (c *Client) enqueue(task *asynq.Task, queueName string, opts ...asynq.Option) error {
	options := append([]asynq.Option{asynq.Queue(queueName)}, opts...)
	_, err := c.client.Enqueue(task, options...)
	return err
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 3, constants.QueueCritical: 6}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
