package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matajir-next/internal/config"

	"github.com/redis/go-redis/v9"
)

// Store JSON 缓存读写接口，未启用 Redis 时使用空实现
type Store interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Enabled() bool
}

// RedisStore 基于 Redis 的缓存实现
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient 按配置创建 Redis 客户端，未启用时返回 nil
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	addr := strings.TrimSpace(cfg.Host)
	if addr == "" {
		addr = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", addr, port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewStore 创建缓存实现，client 为空时返回空实现
func NewStore(client *redis.Client, prefix string) Store {
	if client == nil {
		return NoopStore{}
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "mj"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Enabled 判断缓存是否启用
func (s *RedisStore) Enabled() bool {
	return s != nil && s.client != nil
}

// Client 获取 Redis 客户端
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// GetJSON 获取 JSON 缓存
func (s *RedisStore) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := s.client.Get(ctx, s.buildKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 写入 JSON 缓存
func (s *RedisStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.buildKey(key), payload, ttl).Err()
}

// Del 删除缓存
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	built := make([]string, 0, len(keys))
	for _, key := range keys {
		built = append(built, s.buildKey(key))
	}
	return s.client.Del(ctx, built...).Err()
}

func (s *RedisStore) buildKey(key string) string {
	return buildKey(s.prefix, key)
}

func buildKey(prefix, key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return prefix
	}
	return fmt.Sprintf("%s:%s", prefix, trimmed)
}

// NoopStore 空缓存实现
type NoopStore struct{}

// GetJSON 始终未命中
func (NoopStore) GetJSON(context.Context, string, interface{}) (bool, error) { return false, nil }

// SetJSON 忽略写入
func (NoopStore) SetJSON(context.Context, string, interface{}, time.Duration) error { return nil }

// Del 忽略删除
func (NoopStore) Del(context.Context, ...string) error { return nil }

// Enabled 始终为 false
func (NoopStore) Enabled() bool { return false }
