// 离线修复题库引用脚本
//
// 出题时题池已经会过滤失效题目，此脚本只在数据大量变更后手动执行：
// 删除题库中已不存在或非启用状态的题目引用，修正题目数，并重新计算所有测验的题池大小。
//
// 用法: go run scripts/repair_banks.go [-restaurant <id>]

package main

import (
	"context"
	"flag"
	"log"
	"staff_training_backend/internal/config"
	"staff_training_backend/internal/repository"
	"staff_training_backend/internal/service"
	"staff_training_backend/pkg/database"
	"staff_training_backend/pkg/logger"

	"gopkg.in/yaml.v3"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	restaurantID := flag.String("restaurant", "", "只修复指定门店，默认全部")
	flag.Parse()

	// 与服务共用同一套加载逻辑（mapstructure 键名、环境变量覆盖、默认值）
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, gormlogger.Warn)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	banks := repository.NewBankRepository(db)
	questions := repository.NewQuestionRepository(db)
	quizzes := repository.NewQuizRepository(db)
	progress := repository.NewProgressRepository(db)
	attempts := repository.NewAttemptRepository(db)

	pool := service.NewPoolResolver(banks, questions)
	quizService := service.NewQuizService(quizzes, quizzes, progress, attempts, pool, service.NewStorageService(&cfg.Storage))
	repair := service.NewBankRepairService(banks, questions, quizService)

	log.Println("开始修复题库引用...")
	report, err := repair.Run(context.Background(), *restaurantID)
	if err != nil {
		log.Fatalf("修复失败: %v", err)
	}

	out, _ := yaml.Marshal(report)
	log.Printf("完成！\n%s", out)
}
