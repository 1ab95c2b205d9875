package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/matajir-next/internal/authz"
	"github.com/matajir-next/internal/cache"
	"github.com/matajir-next/internal/config"
	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/models"
	"github.com/matajir-next/internal/repository"
	"github.com/matajir-next/internal/service"

	"github.com/shopspring/decimal"
)

type demoProduct struct {
	ID        string
	Name      string
	Category  string
	Price     float64
	Threshold int
	Codes     int
}

func main() {
	var operator string
	var roles string
	flag.StringVar(&operator, "operator", "admin", "签发令牌的运营账号")
	flag.StringVar(&roles, "roles", "", "运营账号角色，逗号分隔；为空时签发超级管理员令牌")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()
	store := repository.NewGormInventoryStore(models.DB)
	products := service.NewProductService(store)
	importer := service.NewCodeImportService(store, cache.NoopStore{}, nil, cfg.Inventory.MaxImportSize)

	demo := []demoProduct{
		{ID: "steam-20", Name: "Steam Wallet 20", Category: "game", Price: 20.00, Codes: 20},
		{ID: "netflix-1m", Name: "Netflix 1 Month", Category: "video", Price: 9.99, Threshold: 3, Codes: 5},
		{ID: "spotify-3m", Name: "Spotify Premium 3 Months", Category: "music", Price: 29.90, Codes: 0},
	}
	for _, item := range demo {
		_, err := products.Create(ctx, service.CreateProductInput{
			ID:                item.ID,
			Name:              item.Name,
			Category:          item.Category,
			PriceAmount:       decimal.NewFromFloat(item.Price),
			LowStockThreshold: item.Threshold,
		})
		switch {
		case err == nil:
			stdLog.Printf("Created product: %s", item.ID)
		case errors.Is(err, service.ErrProductExists):
			stdLog.Printf("Product already exists: %s", item.ID)
		default:
			stdLog.Printf("Failed to create product %s: %v", item.ID, err)
			continue
		}

		if item.Codes == 0 {
			continue
		}
		codes := make([]string, 0, item.Codes)
		for i := 1; i <= item.Codes; i++ {
			codes = append(codes, fmt.Sprintf("DEMO-%s-%04d", strings.ToUpper(item.ID), i))
		}
		result, err := importer.ImportText(ctx, service.ImportInput{
			ProductID: item.ID,
			Codes:     codes,
			Note:      "seed",
			CreatedBy: "seed",
		})
		if err != nil {
			stdLog.Printf("Failed to import codes for %s: %v", item.ID, err)
			continue
		}
		stdLog.Printf("Imported codes for %s: inserted=%d duplicates=%d stock=%d", item.ID, result.Inserted, result.Duplicates, result.Stock)
	}

	// 初始化内置角色并绑定运营账号
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}
	roleList := splitRoles(roles)
	if len(roleList) > 0 {
		if err := authzService.SetOperatorRoles(operator, roleList); err != nil {
			stdLog.Fatalf("Failed to bind operator roles: %v", err)
		}
		for _, role := range roleList {
			policies, err := authzService.RolePermissions(role)
			if err != nil {
				stdLog.Printf("Failed to list permissions for %s: %v", role, err)
				continue
			}
			for _, policy := range policies {
				stdLog.Printf("  %s %s", role, policy.Permission())
			}
		}
	}

	issuer := service.NewOperatorTokenIssuer(cfg.JWT.SecretKey, cfg.JWT.Issuer, cfg.JWT.ExpireHours)
	token, expiresAt, err := issuer.Issue(operator, roleList, len(roleList) == 0)
	if err != nil {
		stdLog.Fatalf("Failed to issue operator token: %v", err)
	}
	stdLog.Printf("Operator token for %s (expires %s):", operator, expiresAt.Format("2006-01-02 15:04:05"))
	fmt.Println(token)
	stdLog.Println("Seed completed!")
}

func splitRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		if role := strings.TrimSpace(part); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
