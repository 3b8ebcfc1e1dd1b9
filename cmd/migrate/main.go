package main

import (
	"flag"
	"fmt"
	"os"

	"aegisx/backend/internal/config"
	"aegisx/backend/internal/logger"
	"aegisx/backend/internal/storage"
)

// main 独立的数据库迁移入口，供部署流水线调用。
func main() {
	dbType := flag.String("type", "", "数据库类型: mysql、postgres 或 sqlite（留空读取环境配置）")
	dbDSN := flag.String("dsn", "", "数据库连接字符串（留空读取环境配置）")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 命令行参数覆盖环境配置
	if *dbType != "" {
		cfg.Database.Type = *dbType
	}
	if *dbDSN != "" {
		cfg.Database.DSN = *dbDSN
	}

	log := logger.NewDevelopment()
	defer log.Sync()

	client, err := storage.New(&cfg.Database, log)
	if err != nil {
		fmt.Printf("错误: 无法连接数据库: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Printf("✓ 成功连接到 %s 数据库\n", cfg.Database.Type)

	if err := client.Migrate(); err != nil {
		fmt.Printf("错误: 迁移失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ 数据库结构已同步")
}
