package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"testbank_backend/internal/config"
	"testbank_backend/internal/controller"
	"testbank_backend/internal/repository"
	"testbank_backend/internal/service"
	"testbank_backend/pkg/database"
	"testbank_backend/pkg/logger"
	"testbank_backend/pkg/monitoring"
	"testbank_backend/pkg/security"
	"testbank_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Policy          *config.ExamPolicy
	exams           *service.ExamService
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	lesson   *repository.LessonRepository
	question *repository.QuestionRepository
	session  *repository.ExamSessionRepository
	answer   *repository.ExamAnswerRepository
}

type services struct {
	exam    *service.ExamService
	catalog *service.CatalogService
}

type controllers struct {
	exam    *controller.ExamController
	catalog *controller.CatalogController
	health  *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 配置文件变更后由 configwatcher 调用
func (a *App) ReloadConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		lesson:   repository.NewLessonRepository(db),
		question: repository.NewQuestionRepository(db),
		session:  repository.NewExamSessionRepository(db),
		answer:   repository.NewExamAnswerRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	selector := service.NewQuestionSelector(repos.lesson, repos.question, service.NewRedisPoolCache(rdb), a.Policy)
	grader := service.NewGrader(db, repos.session, repos.answer)
	recorder := service.NewAnswerRecorder(db, repos.session, repos.answer, repos.question, grader, a.Policy)
	reviews := service.NewReviewAssembler(repos.session, repos.answer, repos.question, repos.lesson, a.Policy)
	archive := service.NewArchiveService(&cfg.Storage)

	return &services{
		exam:    service.NewExamService(selector, repos.session, recorder, reviews, archive, a.Policy),
		catalog: service.NewCatalogService(repos.lesson),
	}
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		exam:    controller.NewExamController(s.exam),
		catalog: controller.NewCatalogController(s.catalog),
		health:  controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

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

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// release 模式默认不自动迁移，需显式 -migrate
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Log.Info("Database migrated")
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Policy: config.NewExamPolicy(cfg.Exam),
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存只是加速，连接失败时直接查库
		logger.Log.Warn("Redis unavailable, question pool cache disabled", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		app.Policy.Store(newCfg.Exam)
		logger.Log.Info("Exam policy reloaded",
			zap.Int("max_question_count", newCfg.Exam.MaxQuestionCount),
			zap.Int("max_time_limit_minutes", newCfg.Exam.MaxTimeLimitMinutes),
			zap.Int("submit_grace_seconds", newCfg.Exam.SubmitGraceSeconds),
			zap.Bool("allow_in_progress_review", newCfg.Exam.AllowInProgressReview),
		)
	})

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	controllers := app.initControllers(services, db, rdb)
	app.exams = services.exam

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("testbank-exam", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 等待交卷后尚未完成的回顾归档
	if a.exams != nil {
		archiveCtx, archiveCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := a.exams.WaitArchives(archiveCtx); err != nil {
			logger.Log.Warn("Pending review archives abandoned", zap.Error(err))
		}
		archiveCancel()
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
