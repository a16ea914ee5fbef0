package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"content-forge-api/internal/config"
	"content-forge-api/internal/domain/entity"
	"content-forge-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化数据层（仅 PostgreSQL）
	layer, cleanup, err := wire.InitializeBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 3. 建表
	if err := layer.PgClient.AutoMigrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// 4. 写入模型限额目录（已存在的模型只更新上限，保留计数与评分）
	if err := wire.ProvisionModels(ctx, cfg, layer.ModelRepo); err != nil {
		log.Fatalf("failed to provision models: %v", err)
	}
	fmt.Printf("Provisioned %d models.\n", len(cfg.Generation.Models))

	// 5. 创建管理员
	adminID := strings.TrimSpace(cfg.Bootstrap.AdminUserID)
	if adminID == "" {
		fmt.Println("No admin user configured, skipping.")
		fmt.Println("Bootstrap completed successfully.")
		return
	}

	user, err := layer.Ledger.EnsureUser(ctx, adminID)
	if err != nil {
		log.Fatalf("failed to ensure admin user: %v", err)
	}
	if !user.IsAdmin() {
		user.Role = entity.RoleAdmin
		if err := layer.UserRepo.Save(ctx, user); err != nil {
			log.Fatalf("failed to promote admin user: %v", err)
		}
		fmt.Printf("User %s promoted to admin.\n", adminID)
	} else {
		fmt.Printf("Admin user %s already exists.\n", adminID)
	}

	fmt.Println("Bootstrap completed successfully.")
}
