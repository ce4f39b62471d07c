package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"course_market/internal/pkg/config"
	"course_market/internal/pkg/middleware"
	"course_market/internal/pkg/registry"
	"course_market/pkg/cache"
	"course_market/pkg/database"
	"course_market/pkg/logger"
	"course_market/pkg/metrics"

	// 各业务模块在 init 中自注册
	_ "course_market/internal/domain/common"
	_ "course_market/internal/domain/course"
	_ "course_market/internal/domain/enrollment"
	_ "course_market/internal/domain/notification"
	_ "course_market/internal/domain/order"
	_ "course_market/internal/domain/payment"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title Course Market API
// @version 1.0
// @description 课程购买、支付与选课
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. 配置
	config.LoadConfig()
	cfg := &config.GlobalConfig

	// 2. 日志
	zl, err := logger.InitLogger(cfg.App.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	// 3. 存储
	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		zl.Fatal("Failed to init database", zap.Error(err))
	}
	sqlxDB, err := database.NewSqlx(db)
	if err != nil {
		zl.Fatal("Failed to init sqlx", zap.Error(err))
	}

	mctx := &registry.ModuleContext{
		Config: cfg,
		DB:     db,
		Sqlx:   sqlxDB,
		Logger: zl,
	}

	// Redis 不可用时退化为进程内缓存与本地锁
	if rdb, err := database.InitRedis(cfg.Redis); err != nil {
		zl.Warn("Redis unavailable, falling back to memory cache", zap.Error(err))
		mctx.Cache = cache.NewMemoryCache()
	} else {
		mctx.Redis = rdb
		mctx.Redsync = database.NewRedsync(rdb)
		mctx.Cache = cache.NewRedisCache(rdb, "course_market")
	}

	// 4. 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mctx.Metrics = metrics.NewCollector(reg)

	// 5. 路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		middleware.RecoveryMiddleware(),
		cors.New(cors.Config{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "X-Trace-ID"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
		middleware.TraceMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.MetricsMiddleware(mctx.Metrics),
	)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	mctx.Router = r.Group("/api/v1")
	if err := registry.InitModules(mctx); err != nil {
		zl.Fatal("Failed to init modules", zap.Error(err))
	}

	// 6. 后台任务
	if sqlDB, err := db.DB(); err == nil {
		mctx.AddRunner("db-pool-monitor", database.NewPoolMonitor(sqlDB, mctx.Metrics, zl, 15*time.Second))
	}
	runCtx, stopRunners := context.WithCancel(context.Background())
	mctx.StartRunners(runCtx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zl.Info("Server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Server error", zap.Error(err))
		}
	}()

	// 7. 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server...")
	stopRunners()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if mctx.Redis != nil {
		_ = mctx.Redis.Close()
	}
	zl.Info("Server exited")
}
