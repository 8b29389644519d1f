package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/config"
)

// RateLimiter 简单的内存速率限制器
type RateLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int           // 最大请求数
	window    time.Duration // 时间窗口
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter 创建速率限制器
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.window)

	// 每个窗口清理一次空闲 key
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweepLocked(windowStart)
		rl.lastSweep = now
	}

	// 清理过期请求
	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// sweepLocked drops keys with no request inside the window.
func (rl *RateLimiter) sweepLocked(windowStart time.Time) {
	for key, times := range rl.requests {
		if len(times) == 0 || !times[len(times)-1].After(windowStart) {
			delete(rl.requests, key)
		}
	}
}

// RateLimitMiddleware 速率限制中间件
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 使用用户 ID 或 IP 作为限制 key
		key := c.GetString("userID")
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

type Server struct {
	router     *gin.Engine
	handler    *Handler
	cfg        *config.Config
	logger     zerolog.Logger
	httpServer *http.Server

	// 用户 API: 每用户每分钟最多 120 次请求（文件管理器操作较频繁）
	userLimiter *RateLimiter
	// 下单: 每用户每小时最多 10 次
	checkoutLimiter *RateLimiter
	// 公开 ping: 每 IP 每分钟最多 60 次
	pingLimiter *RateLimiter
}

func NewServer(cfg *config.Config, handler *Handler, logger zerolog.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	if cfg.IsDevelopment() {
		router.Use(gin.Logger())
	}
	router.SetHTMLTemplate(loadTemplates())

	s := &Server{
		router:          router,
		handler:         handler,
		cfg:             cfg,
		logger:          logger,
		userLimiter:     NewRateLimiter(120, time.Minute),
		checkoutLimiter: NewRateLimiter(10, time.Hour),
		pingLimiter:     NewRateLimiter(60, time.Minute),
	}

	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(handler.Close)
	return s
}

func (s *Server) setupRoutes() {
	h := s.handler

	s.router.GET("/health", h.Health)

	// Pages
	s.router.GET("/", h.page("index.html", "Home"))
	s.router.GET("/pricing", h.page("pricing.html", "Pricing"))
	s.router.GET("/terms", h.page("terms.html", "Terms of Service"))
	s.router.GET("/privacy", h.page("privacy.html", "Privacy Policy"))

	s.router.GET("/api/ping", JWTAuthMiddleware(s.cfg.JWT.SecretKey), RateLimitMiddleware(s.pingLimiter), h.Ping)

	// Internal API - called by other platform services
	internal := s.router.Group("/api/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		internal.POST("/status", h.InternalStatuses)
	}

	// User API - requires JWT authentication
	user := s.router.Group("/api/v1")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	user.Use(RateLimitMiddleware(s.userLimiter))
	{
		// Dashboard
		user.GET("/servers", h.ListServers)
		user.GET("/servers/status", h.GetStatuses)
		user.GET("/servers/status/stream", h.StreamStatuses)

		srv := user.Group("/servers/:subscription_id")
		srv.PATCH("", h.EditServer)
		srv.POST("/region", h.ChangeRegion)
		srv.GET("/limits", h.GetLimits)

		// Upgrade flow
		srv.GET("/upgrade", h.GetUpgrade)
		srv.POST("/upgrade/open", h.OpenUpgrade)
		srv.POST("/upgrade/back", h.BackUpgrade)
		srv.DELETE("/upgrade", h.CloseUpgrade)
		srv.POST("/upgrade/preview", h.PreviewUpgrade)
		srv.POST("/upgrade/confirm", h.ConfirmUpgrade)

		// Console
		srv.GET("/console", h.Console)

		// Files
		srv.GET("/files", h.ListFiles)
		srv.GET("/files/contents", h.GetFileContents)
		srv.POST("/files/write", h.WriteFile)
		srv.PUT("/files/rename", h.RenameFiles)
		srv.POST("/files/delete", h.DeleteFiles)
		srv.POST("/files/create-folder", h.CreateFolder)
		srv.POST("/files/compress", h.CompressFiles)
		srv.POST("/files/decompress", h.DecompressFile)
		srv.GET("/files/download", h.FileDownloadURL)
		srv.GET("/files/upload", h.FileUploadURL)

		// Backups
		srv.GET("/backups", h.ListBackups)
		srv.POST("/backups", h.CreateBackup)
		srv.DELETE("/backups/:backup_id", h.DeleteBackup)
		srv.POST("/backups/:backup_id/restore", h.RestoreBackup)
		srv.GET("/backups/:backup_id/download", h.BackupDownloadURL)

		// Settings & SFTP
		srv.GET("/settings", h.GetSettings)
		srv.PUT("/settings", h.UpdateSettings)
		srv.GET("/sftp", h.GetSFTPCredentials)

		// Billing
		user.GET("/billing", h.GetBilling)
		user.GET("/billing/invoices", h.ListInvoices)
		user.POST("/billing/subscriptions/:subscription_id/cancel", h.CancelSubscription)
		user.POST("/billing/subscriptions/:subscription_id/uncancel", h.UncancelSubscription)
		user.POST("/billing/payment-methods", h.AddPaymentMethod)
		user.POST("/billing/payment-methods/:payment_method_id/default", h.SetDefaultPaymentMethod)
		user.DELETE("/billing/payment-methods/:payment_method_id/default", h.UnsetDefaultPaymentMethod)
		user.DELETE("/billing/payment-methods/:payment_method_id", h.RemovePaymentMethod)

		// Store
		user.POST("/checkout", RateLimitMiddleware(s.checkoutLimiter), h.Checkout)
	}

	// Public API - no authentication required
	public := s.router.Group("/api/v1/public")
	{
		public.GET("/catalog", h.GetCatalog)
	}
}

// Handler returns the engine wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Run serves on the configured port until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
