package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	handlershared "github.com/matajir-next/internal/http/handlers/shared"
	"github.com/matajir-next/internal/http/response"
	"github.com/matajir-next/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitCostFunc 单次请求消耗的配额，返回 <=0 时按 1 计
type RateLimitCostFunc func(*gin.Context) int64

// RateLimitRule 限流规则，窗口内累计消耗超过 Quota 即拒绝
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	Quota         int
	BlockSeconds  int
	Cost          RateLimitCostFunc
}

// 返回 {累计消耗, 剩余秒数}
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCRBY", KEYS[1], ARGV[2])
if current == tonumber(ARGV[2]) then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimitMiddleware Redis 频率限制中间件
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.Quota <= 0 {
			c.Next()
			return
		}

		key := rateLimitKey(c, rule.Prefix, keyFunc)
		cost := int64(1)
		if rule.Cost != nil {
			if n := rule.Cost(c); n > 0 {
				cost = n
			}
		}

		ctx := c.Request.Context()
		result, err := rateLimitScript.Run(ctx, client, []string{key}, rule.WindowSeconds, cost).Int64Slice()
		if err != nil || len(result) < 2 {
			// Redis 不可用时放行
			logger.Ctx(ctx).Warnw("rate_limit_unavailable", "key", key, "error", err)
			c.Next()
			return
		}
		used, ttlSeconds := result[0], result[1]
		if used <= int64(rule.Quota) {
			c.Next()
			return
		}

		waitSeconds := int(ttlSeconds)
		// 首次越界时延长封禁
		if used-cost <= int64(rule.Quota) && rule.BlockSeconds > waitSeconds {
			if err := client.Expire(ctx, key, time.Duration(rule.BlockSeconds)*time.Second).Err(); err == nil {
				waitSeconds = rule.BlockSeconds
			}
		}
		if waitSeconds < 1 {
			waitSeconds = max(rule.WindowSeconds, 1)
		}
		logger.Ctx(ctx).Infow("rate_limit_rejected", "key", key, "used", used, "quota", rule.Quota, "retry_after", waitSeconds)
		c.Header("Retry-After", strconv.Itoa(waitSeconds))
		response.ErrorWithData(c, response.CodeTooManyRequests, handlershared.Message("error.too_many_requests"), gin.H{
			"retry_after": waitSeconds,
		})
		c.Abort()
	}
}

func rateLimitKey(c *gin.Context, prefix string, keyFunc RateLimitKeyFunc) string {
	key := ""
	if keyFunc != nil {
		key = strings.TrimSpace(keyFunc(c))
	}
	if key == "" {
		key = c.ClientIP()
	}
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

// CostByCheckoutQuantity 按下单件数计费，整单购买大量卡码时更快触发限流
func CostByCheckoutQuantity(c *gin.Context) int64 {
	payload := readJSONBody(c)
	items, ok := payload["items"].([]interface{})
	if !ok {
		return 1
	}
	var total int64
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if quantity, ok := item["quantity"].(float64); ok && quantity > 0 {
			total += int64(quantity)
		}
	}
	if total <= 0 {
		return 1
	}
	return total
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByIPAndJSONField 使用 IP + JSON 字段作为限流 key
func KeyByIPAndJSONField(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		value := strings.ToLower(strings.TrimSpace(readJSONField(c, field)))
		if value == "" {
			return c.ClientIP()
		}
		return fmt.Sprintf("%s|%s", value, c.ClientIP())
	}
}

func readJSONField(c *gin.Context, field string) string {
	text, _ := readJSONBody(c)[field].(string)
	return strings.TrimSpace(text)
}

// readJSONBody 读取 JSON 请求体并回填 Body，解析失败返回 nil
func readJSONBody(c *gin.Context) map[string]interface{} {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	return payload
}
