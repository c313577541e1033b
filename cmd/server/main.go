/**
 * cmd/server/main.go
 * 静态文件服务器入口
 *
 * 功能：
 * - 加载配置（.env + 环境变量）并解析根目录
 * - 中间件配置（恢复、日志、安全头、限流）
 * - 静态文件服务（任意方法、任意路径）
 * - 开发模式实时刷新（WebSocket + 文件轮询）
 * - 优雅关闭（实时刷新、HTTP、日志）
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rareskills-site/internal/config"
	"rareskills-site/internal/handlers"
	"rareskills-site/internal/middleware"
	"rareskills-site/internal/services"
	"rareskills-site/internal/utils"

	"github.com/gin-gonic/gin"
)

// ====================  常量定义 ====================

const (
	// 服务器超时配置
	// 不设置 WriteTimeout：响应体流式写出，不限制总时长
	serverReadHeaderTimeout = 10 * time.Second
	serverReadTimeout       = 15 * time.Second
	serverIdleTimeout       = 60 * time.Second

	// 优雅关闭超时
	shutdownTimeout = 10 * time.Second

	// healthPath 健康检查路径
	healthPath = "/healthz"
)

// ====================  主函数 ====================

func main() {
	utils.LogPrintf("[SERVER] Starting static file server...")

	if err := run(); err != nil {
		utils.LogFatalf("[SERVER] FATAL: Server failed: %v", err)
	}
}

// run 运行服务器的主逻辑
func run() error {
	// 1. 加载配置
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	// 2. 设置 Gin 模式
	setupGinMode(cfg.IsProduction)

	// 3. 解析根目录（启动时一次）
	baseDir, err := cfg.ResolveBaseDir()
	if err != nil {
		return fmt.Errorf("base dir resolve failed: %w", err)
	}

	// 4. 实时刷新（可选）
	var liveReload *services.LiveReloadService
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()

	if cfg.LiveReload {
		liveReload = services.NewLiveReloadService()
		go func() {
			if err := liveReload.Watch(watchCtx, baseDir); err != nil {
				utils.LogPrintf("[LIVERELOAD] ERROR: Watch stopped: %v", err)
			}
		}()
	}

	// 5. 创建并配置路由
	router, err := setupRouter(cfg, baseDir, liveReload)
	if err != nil {
		return fmt.Errorf("router setup failed: %w", err)
	}

	// 6. 启动服务器
	srv := createServer(cfg.Addr(), router)
	serveErr := startServer(srv)

	// 7. 等待关闭信号并优雅关闭
	return gracefulShutdown(srv, serveErr, liveReload, stopWatch)
}

// ====================  初始化函数 ====================

// loadConfig 加载配置
func loadConfig() (*config.ServerConfig, error) {
	utils.LogPrintf("[CONFIG] Loading configuration...")

	cfg, err := config.LoadServer()
	if err != nil {
		utils.LogPrintf("[CONFIG] ERROR: Failed to load config: %v", err)
		return nil, err
	}

	utils.LogPrintf("[CONFIG] Configuration loaded: addr=%s, production=%v, livereload=%v",
		cfg.Addr(), cfg.IsProduction, cfg.LiveReload)
	return cfg, nil
}

// setupGinMode 设置 Gin 运行模式
func setupGinMode(isProduction bool) {
	if isProduction {
		gin.SetMode(gin.ReleaseMode)
		utils.LogPrintf("[GIN] Running in release mode")
	} else {
		gin.SetMode(gin.DebugMode)
		utils.LogPrintf("[GIN] Running in debug mode")
	}
}

// ====================  路由配置 ====================

// setupRouter 创建并配置路由
// 除健康检查与实时刷新端点外，所有方法、所有路径都交给静态 Handler
func setupRouter(cfg *config.ServerConfig, baseDir string, liveReload *services.LiveReloadService) (*gin.Engine, error) {
	utils.LogPrintf("[ROUTER] Setting up routes...")

	var limiter *middleware.ShardedRateLimiter
	if cfg.RateLimitRPS > 0 {
		var err error
		limiter, err = middleware.NewShardedRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		if err != nil {
			return nil, err
		}
	}

	static, err := handlers.NewStaticHandler(baseDir, handlers.StaticOptions{
		ServePrecompressed: cfg.ServePrecompressed,
		LiveReload:         liveReload,
		RateLimiter:        limiter,
	})
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// 未配置代理时 ClientIP 只取连接对端地址，伪造的 X-Forwarded-For 无效
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	setupMiddleware(r, limiter)

	r.GET(healthPath, static.Health)

	if liveReload != nil {
		r.GET(services.LiveReloadPath, liveReload.HandleConnection)
		utils.LogPrintf("[ROUTER] Live reload endpoint mounted at %s", services.LiveReloadPath)
	}

	r.NoRoute(static.Serve)

	utils.LogPrintf("[ROUTER] Routes configured successfully")
	return r, nil
}

// setupMiddleware 配置中间件，limiter 为 nil 时不限流
func setupMiddleware(r *gin.Engine, limiter *middleware.ShardedRateLimiter) {
	// Recovery 中间件（防止 panic 导致服务器崩溃）
	r.Use(gin.Recovery())

	r.Use(middleware.RequestLogger())
	r.Use(middleware.SecurityHeaders())

	if limiter != nil {
		r.Use(middleware.RateLimitMiddleware(limiter))
	}

	utils.LogPrintf("[MIDDLEWARE] Base middleware configured")
}

// ====================  服务器管理 ====================

// createServer 创建 HTTP 服务器
func createServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: serverReadHeaderTimeout,
		ReadTimeout:       serverReadTimeout,
		IdleTimeout:       serverIdleTimeout,
	}
}

// startServer 启动服务器（非阻塞），监听失败时通过返回的通道上报
func startServer(srv *http.Server) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		utils.LogPrintf("[SERVER] Starting HTTP server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// ====================  优雅关闭 ====================

// gracefulShutdown 等待信号或监听失败后关闭服务器
// 按顺序关闭：实时刷新 -> HTTP -> 日志
func gracefulShutdown(srv *http.Server, serveErr <-chan error, liveReload *services.LiveReloadService, stopWatch context.CancelFunc) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		utils.LogPrintf("[SERVER] Received %s signal, initiating graceful shutdown...", sig)
	case err, ok := <-serveErr:
		if ok && err != nil {
			stopWatch()
			if liveReload != nil {
				liveReload.Shutdown()
			}
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 1. 停止文件监听并关闭 WebSocket 连接
	stopWatch()
	if liveReload != nil {
		utils.LogPrintf("[SERVER] Closing live reload connections...")
		liveReload.Shutdown()
	}

	// 2. 关闭 HTTP 服务器（停止接受新请求，等待现有请求完成）
	utils.LogPrintf("[SERVER] Shutting down HTTP server...")
	if err := srv.Shutdown(ctx); err != nil {
		utils.LogPrintf("[SERVER] ERROR: HTTP server shutdown failed: %v", err)
	} else {
		utils.LogPrintf("[SERVER] HTTP server stopped")
	}

	utils.LogPrintf("[SERVER] Graceful shutdown completed")

	// 3. 同步日志缓冲区
	utils.SyncLogger()
	return nil
}
