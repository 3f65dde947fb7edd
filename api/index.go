package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mom-support-backend/pkg/activity"
	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/config"
	"mom-support-backend/pkg/content"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/handlers"
	customMiddleware "mom-support-backend/pkg/middleware"
	"mom-support-backend/pkg/streak"
	"mom-support-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// 每个热实例复用一个数据库连接与限流器
var (
	pool = database.NewPool(database.NewDatabase, 10*time.Minute, nil)

	limiterOnce sync.Once
	limiter     customMiddleware.RateLimiter
)

// Handler 是Vercel函数的入口点
// 这个函数实现了"单体路由模式"，将所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg, err := config.GetCached()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}
	logger := cfg.NewLogger()

	db, err := pool.Get(r.Context(), database.DatabaseConfig{
		UseLocalDB:   cfg.UseLocalDB,
		LocalDataDir: cfg.LocalDataDir,
		PostgresDSN:  cfg.PostgresDSN,
		SupabaseURL:  cfg.SupabaseURL,
		SupabaseKey:  cfg.SupabaseKey,
		Debug:        cfg.Debug,
	})
	if err != nil {
		logger.Error("database unavailable", "error", err)
		utils.WriteErrorResponseWithCode(w, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE",
			"Database connection failed", "")
		return
	}

	app := newApp(cfg, db, rateLimiter(cfg, logger), logger)
	app.router.ServeHTTP(w, r)

	// 函数实例在响应后可能被冻结，等待审计日志写完
	app.entitlements.Flush()
}

func rateLimiter(cfg *config.Config, logger *slog.Logger) customMiddleware.RateLimiter {
	limiterOnce.Do(func() {
		l, err := customMiddleware.NewRedisRateLimiterFromURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("rate limiting disabled", "error", err)
			return
		}
		if l != nil {
			limiter = l
		}
	})
	return limiter
}

// app bundles the router with the services it was built from.
type app struct {
	router       *chi.Mux
	entitlements *entitlement.Service
}

func newApp(cfg *config.Config, db database.DatabaseInterface, limiter customMiddleware.RateLimiter, logger *slog.Logger) *app {
	identity := auth.ContextSource{}
	entitlements := entitlement.NewService(db, identity, logger)
	tracker := streak.NewTracker(db, identity, logger, streak.WithLocation(cfg.Location()))
	activities := activity.NewService(db, identity, entitlements, tracker, logger)
	gated := content.NewService(db, identity, entitlements, logger)

	// 创建Chi路由器
	router := chi.NewRouter()

	// 设置全局中间件
	setupMiddleware(router, cfg, logger)

	// 设置路由
	setupRoutes(router, routeDeps{
		cfg:          cfg,
		db:           db,
		jwt:          utils.NewJWTService(cfg.JWTSecret),
		limiter:      limiter,
		entitlements: entitlements,
		tracker:      tracker,
		activities:   activities,
		content:      gated,
		logger:       logger,
	})

	return &app{router: router, entitlements: entitlements}
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.RequestLogger(logger))
	router.Use(customMiddleware.Recovery(cfg, logger))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second)) // 留5秒缓冲

	// 请求体限制与JSON校验
	router.Use(customMiddleware.MaxBodySize(1 << 20))
	router.Use(customMiddleware.ContentTypeJSON)

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

type routeDeps struct {
	cfg          *config.Config
	db           database.DatabaseInterface
	jwt          *utils.JWTService
	limiter      customMiddleware.RateLimiter
	entitlements *entitlement.Service
	tracker      *streak.Tracker
	activities   *activity.Service
	content      *content.Service
	logger       *slog.Logger
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, d routeDeps) {
	// 创建处理器
	authn := customMiddleware.NewAuthenticator(d.jwt, d.logger)
	authHandler := handlers.NewAuthHandler(d.cfg, d.db, d.jwt, d.logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(d.entitlements, d.logger)
	streakHandler := handlers.NewStreakHandler(d.tracker, d.logger)
	activityHandler := handlers.NewActivityHandler(d.activities, d.tracker.Today, d.logger)
	contentHandler := handlers.NewContentHandler(d.content, d.logger)
	webhookHandler := handlers.NewWebhookHandler(d.cfg, d.db, d.entitlements, d.logger)
	rateLimit := customMiddleware.RateLimit(d.limiter, d.cfg.RateLimitPerMinute, d.logger)

	// 健康检查端点
	router.Get("/", authHandler.HealthCheck)

	// 数据库连接池状态端点（调试用）
	if d.cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, pool.Stats())
		})
	}

	// API路由组
	router.Route("/api", func(r chi.Router) {
		// 公开路由（不需要认证）
		r.Route("/auth", func(r chi.Router) {
			r.Use(rateLimit)
			r.Post("/anonymous", authHandler.Anonymous)
			r.With(authn.OptionalAuth).Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.With(authn.RequireAuth).Get("/me", authHandler.Me)
		})

		r.With(authn.OptionalAuth).Get("/features/{code}", subscriptionHandler.CheckFeature)

		// 订阅管理路由（计划列表公开）
		r.Route("/subscription", func(r chi.Router) {
			r.Get("/plans", subscriptionHandler.ListPlans)
			r.Group(func(r chi.Router) {
				r.Use(authn.RequireAuth)
				r.Use(rateLimit)
				r.Get("/", subscriptionHandler.Current)
				r.With(customMiddleware.RequireRegistered).Post("/activate", subscriptionHandler.Activate)
				r.Post("/cancel", subscriptionHandler.Cancel)
				r.Post("/reactivate", subscriptionHandler.Reactivate)
			})
		})

		// 需要认证的路由（匿名会话同样可用）
		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)
			r.Use(rateLimit)

			// 连续打卡
			r.Route("/streaks", func(r chi.Router) {
				r.Get("/", streakHandler.List)
				r.Get("/{type}/week", streakHandler.Week)
				r.Post("/{type}", streakHandler.Record)
			})

			// 活动记录
			r.Route("/situations", func(r chi.Router) {
				r.Get("/", activityHandler.Situations)
				r.Post("/", activityHandler.LogSituation)
				r.Get("/categories", activityHandler.SituationCategories)
			})
			r.Get("/moods", activityHandler.MoodHistory)
			r.Post("/moods", activityHandler.LogMood)
			r.Route("/self-care", func(r chi.Router) {
				r.Get("/", activityHandler.SelfCareLogs)
				r.Post("/", activityHandler.LogSelfCare)
				r.Get("/activities", activityHandler.SelfCareCatalog)
				r.Post("/activities", activityHandler.CreateSelfCareActivity)
			})
			r.Get("/wellness", activityHandler.Wellness)

			// 按计划开放的内容
			r.Route("/guidance", func(r chi.Router) {
				r.Get("/", contentHandler.GuidanceLibrary)
				r.Get("/categories", contentHandler.GuidanceCategories)
				r.Get("/recommendations", contentHandler.Recommendations)
				r.Get("/{id}", contentHandler.GuidanceResource)
			})
			r.Get("/insights", contentHandler.Insights)
			r.Get("/progress/summaries", contentHandler.ProgressSummaries)
		})

		// Webhook路由（不需要认证，但需要验证签名）
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/billing", webhookHandler.HandleBillingWebhook)
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
