package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/matajir-next/internal/app"
	"github.com/matajir-next/internal/config"
	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/models"
	"github.com/matajir-next/internal/telemetry"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiGreen = "\033[32m"
	ansiCyan  = "\033[36m"
)

func main() {
	// 解析命令行参数
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	// 加载配置
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	printStartupBanner(cfg)

	if cfg.Server.Mode == "release" {
		if isWeakSecret(cfg.JWT.SecretKey) {
			stdLog.Fatalf("JWT secret 过弱或仍为默认值，请在生产环境中配置强随机密钥")
		}
		if cfg.Inventory.SyntheticFallback {
			stdLog.Printf("警告: 已启用兜底卡码生成，库存耗尽时将交付无效卡码，仅适用于离线演示环境")
		}
	} else if isWeakSecret(cfg.JWT.SecretKey) {
		stdLog.Printf("警告: JWT secret 过弱或仍为默认值，建议在生产环境中更换")
	}

	// 初始化链路追踪与指标
	telemetryProvider, err := telemetry.Init(context.Background(), cfg.Telemetry, cfg.App.Version)
	if err != nil {
		stdLog.Printf("警告: 初始化 OpenTelemetry 失败，已降级为空实现: %v", err)
		telemetryProvider = nil
	}

	// 初始化数据库（memory 后端仍需数据库保存 RBAC 策略）
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}

	// 自动迁移数据库表
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config:    cfg,
		Logger:    logger.S(),
		Telemetry: telemetryProvider,
		Signals:   []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:      mode,
	}); err != nil {
		stdLog.Fatalf("服务运行失败: %v", err)
	}
}

func printStartupBanner(cfg *config.Config) {
	fmt.Println(ansiCyan + "███╗   ███╗ █████╗ ████████╗ █████╗      ██╗██╗██████╗ " + ansiReset)
	fmt.Println(ansiCyan + "████╗ ████║██╔══██╗╚══██╔══╝██╔══██╗     ██║██║██╔══██╗" + ansiReset)
	fmt.Println(ansiCyan + "██╔████╔██║███████║   ██║   ███████║     ██║██║██████╔╝" + ansiReset)
	fmt.Println(ansiCyan + "██║╚██╔╝██║██╔══██║   ██║   ██╔══██║██   ██║██║██╔══██╗" + ansiReset)
	fmt.Println(ansiCyan + "██║ ╚═╝ ██║██║  ██║   ██║   ██║  ██║╚█████╔╝██║██║  ██║" + ansiReset)
	fmt.Println(ansiCyan + "╚═╝     ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝ ╚════╝ ╚═╝╚═╝  ╚═╝" + ansiReset)
	fmt.Println(ansiGreen + ansiBold + "Matajir inventory service " + cfg.App.Version + ansiReset)
	fmt.Println(ansiDim + "backend=" + cfg.Inventory.Backend + " database=" + cfg.Database.Driver + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------------" + ansiReset)
}

func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	if strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key") {
		return true
	}
	return false
}
