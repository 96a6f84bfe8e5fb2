package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"cortana-grid/internal/config"
)

// 把 migrations/ 下的 SQL 文件灌进配置指向的数据库。
// 用法: apply-migration migrations/0001_init.up.sql
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <migration_file.sql>", os.Args[0])
	}

	sqlContent, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("读取迁移文件失败: %v", err)
	}

	cfg := config.Load()
	db, err := config.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	defer db.Close()

	fmt.Printf("已连接数据库: %s\n", cfg.Database.Database)

	statements := strings.Split(string(sqlContent), ";")
	executed := 0
	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("第 %d 条语句执行失败: %v\n%s", i+1, err, stmt)
		}
		executed++
	}

	fmt.Printf("迁移完成，共执行 %d 条语句\n", executed)
}
