package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matajir-next/internal/authz"
	"github.com/matajir-next/internal/config"
	adminhandlers "github.com/matajir-next/internal/http/handlers/admin"
	publichandlers "github.com/matajir-next/internal/http/handlers/public"
	"github.com/matajir-next/internal/http/response"
	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/provider"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "mj"
	}
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.RateLimit.Checkout.WindowSeconds,
		Quota:         cfg.RateLimit.Checkout.Quota,
		BlockSeconds:  cfg.RateLimit.Checkout.BlockSeconds,
		Cost:          CostByCheckoutQuantity,
	}

	// 中间件
	r.Use(gin.Recovery())
	if cfg.Telemetry.Enabled {
		r.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger.Z()))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/health", func(ctx *gin.Context) {
		response.Success(ctx, gin.H{
			"status":  "ok",
			"version": cfg.App.Version,
			"backend": cfg.Inventory.Backend,
		})
	})

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		apiV1.GET("/products", publicHandler.GetProducts)
		apiV1.POST("/checkout", RateLimitMiddleware(c.Redis, checkoutRule, KeyByIPAndJSONField("user_ref")), publicHandler.Checkout)
		apiV1.GET("/orders/:order_no", publicHandler.GetOrder)
		apiV1.POST("/orders/:order_no/reveal", publicHandler.RevealOrderCodes)

		// 运营接口（需鉴权）
		admin := apiV1.Group("/admin")
		admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.TokenIssuer), OperatorRBACMiddleware(c.AuthzService))
		{
			// 商品
			admin.GET("/products", adminHandler.GetProducts)
			admin.POST("/products", adminHandler.CreateProduct)

			// 卡码
			admin.GET("/products/:id/codes", adminHandler.GetCodes)
			admin.POST("/products/:id/codes", adminHandler.ImportCodes)
			admin.POST("/products/:id/codes/import", adminHandler.ImportCodesCSV)
			admin.GET("/products/:id/codes/export", adminHandler.ExportCodes)
			admin.GET("/products/:id/codes/stats", adminHandler.GetCodeStats)
			admin.GET("/products/:id/batches", adminHandler.GetCodeBatches)

			// 库存
			admin.GET("/inventory/stats", adminHandler.GetInventoryStats)
			admin.POST("/inventory/reconcile", adminHandler.ReconcileInventory)

			// 订单
			admin.GET("/orders", adminHandler.GetOrders)
			admin.GET("/orders/:order_no", adminHandler.GetOrder)
			admin.POST("/orders/:order_no/void", adminHandler.VoidOrder)

			admin.GET("/authz/permissions", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminPermissionCatalog(r))
			})
		}
	}

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

// buildAdminPermissionCatalog 从已注册路由生成运营端权限目录
func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 || segments[0] != "admin" {
		return segments[0]
	}
	switch segments[1] {
	case "products":
		if len(segments) > 3 && (segments[3] == "codes" || segments[3] == "batches") {
			return "codes"
		}
		return "products"
	default:
		return segments[1]
	}
}
