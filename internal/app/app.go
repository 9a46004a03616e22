package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"staff_training_backend/internal/config"
	"staff_training_backend/internal/controller"
	"staff_training_backend/internal/repository"
	"staff_training_backend/internal/service"
	"staff_training_backend/pkg/configwatcher"
	"staff_training_backend/pkg/database"
	"staff_training_backend/pkg/logger"
	"staff_training_backend/pkg/monitoring"
	"staff_training_backend/pkg/security"
	"staff_training_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const configFile = "configs/config.yaml"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	question     *repository.QuestionRepository
	bank         *repository.BankRepository
	quiz         *repository.QuizRepository
	progress     *repository.ProgressRepository
	attempt      *repository.AttemptRepository
	attemptCache *repository.AttemptCacheRepository
}

type services struct {
	storage *service.StorageService
	pool    *service.PoolResolver
	grader  *service.Grader
	attempt *service.AttemptService
	quiz    *service.QuizService
}

type controllers struct {
	quizAttempt *controller.QuizAttemptController
	quizAdmin   *controller.QuizAdminController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	repos := &repositories{
		question: repository.NewQuestionRepository(db),
		bank:     repository.NewBankRepository(db),
		quiz:     repository.NewQuizRepository(db),
		progress: repository.NewProgressRepository(db),
		attempt:  repository.NewAttemptRepository(db),
	}
	if rdb != nil {
		repos.attemptCache = repository.NewAttemptCacheRepository(rdb)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.storage = service.NewStorageService(&cfg.Storage)
	s.pool = service.NewPoolResolver(repos.bank, repos.question)
	s.grader = service.NewGrader()

	var cache service.AttemptCache = service.NopAttemptCache{}
	if repos.attemptCache != nil {
		cache = repos.attemptCache
	}

	s.attempt = service.NewAttemptService(
		repos.quiz,
		repos.progress,
		repos.attempt,
		repos.question,
		s.pool,
		s.grader,
		cache,
		cfg.Quiz,
	)
	s.quiz = service.NewQuizService(
		repos.quiz,
		repos.quiz,
		repos.progress,
		repos.attempt,
		s.pool,
		s.storage,
	)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		quizAttempt: controller.NewQuizAttemptController(s.attempt),
		quizAdmin:   controller.NewQuizAdminController(s.quiz),
		health:      controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	logLevel := gormlogger.Info
	if cfg.Server.Mode == gin.ReleaseMode {
		logLevel = gormlogger.Warn
	}

	db, err := database.InitDB(&cfg.Database, logLevel)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	if cfg.MigrateOnly {
		return app
	}

	// Redis 只保存答题会话，关闭时使用空缓存
	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
			log.Fatalf("Failed to initialize redis: %v", err)
		}
		app.Redis = rdb
	}

	repos := app.initRepositories(db, app.Redis)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		services.attempt.ApplyConfig(newCfg.Quiz)
		logger.Log.Info("Quiz tunables updated",
			zap.Int("maxConflictRetries", newCfg.Quiz.MaxConflictRetries),
			zap.Duration("attemptTTL", newCfg.Quiz.AttemptTTL),
		)
	})

	return app
}

func (a *App) watchConfig(ctx context.Context) {
	err := configwatcher.WatchConfig(ctx, configFile, func(newCfg *config.Config) {
		for _, callback := range a.configCallbacks {
			callback(newCfg)
		}
	})
	if err != nil {
		logger.Log.Warn("Config watcher stopped", zap.Error(err))
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go a.watchConfig(watchCtx)

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	stopWatch()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
