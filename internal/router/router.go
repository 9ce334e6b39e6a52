package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/haulpass/cdl-backend/internal/billing"
	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/handler"
	"github.com/haulpass/cdl-backend/internal/middleware"
	"github.com/haulpass/cdl-backend/internal/response"
	"github.com/haulpass/cdl-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Profile   *handler.ProfileHandler
	Exam      *handler.ExamHandler
	Drill     *handler.DrillHandler
	Catalog   *handler.CatalogHandler
	Dashboard *handler.DashboardHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	access billing.AccessChecker,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for registration (30 requests per minute per IP).
	registerLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Device Registration (Public, Rate Limited) ─────────────────
	devices := router.Group("/api/v1/devices")
	devices.Use(registerLimiter.Middleware())
	{
		devices.POST("/register", handlers.Auth.RegisterDevice)
	}

	// ─── 2. Device Group (JWT) ─────────────────────────────────────────
	deviceAPI := router.Group("/api/v1")
	deviceAPI.Use(middleware.RequireDeviceJWT(authService))
	{
		deviceAPI.GET("/profile", handlers.Profile.GetProfile)
		deviceAPI.PUT("/profile", handlers.Profile.UpdateProfile)

		deviceAPI.GET("/catalog/categories", middleware.CacheControl(3600), handlers.Catalog.ListCategories)
		deviceAPI.GET("/catalog/progress", handlers.Catalog.GetProgress)

		deviceAPI.GET("/dashboard/summary", handlers.Dashboard.GetSummary)
		deviceAPI.GET("/dashboard/answer-log", handlers.Dashboard.GetAnswerLog)
	}

	// ─── 3. Simulator Group (JWT + Entitlement) ────────────────────────
	examAPI := router.Group("/api/v1/exam")
	examAPI.Use(
		middleware.RequireDeviceJWT(authService),
		middleware.RequireExamAccess(access),
	)
	{
		examAPI.GET("/manifest", handlers.Exam.GetManifest)
		examAPI.POST("/start", handlers.Exam.StartExam)
		examAPI.GET("/state", handlers.Exam.GetState)
		examAPI.POST("/answers", handlers.Exam.SelectAnswer)
		examAPI.POST("/flags", handlers.Exam.ToggleFlag)
		examAPI.POST("/position", handlers.Exam.GoToPosition)
		examAPI.POST("/submit", handlers.Exam.SubmitExam)
		examAPI.GET("/result", handlers.Exam.GetResult)
		examAPI.POST("/reset", handlers.Exam.ResetExam)
	}

	// ─── 4. Drill Group (JWT + Entitlement) ────────────────────────────
	drillAPI := router.Group("/api/v1/drills")
	drillAPI.Use(
		middleware.RequireDeviceJWT(authService),
		middleware.RequireExamAccess(access),
	)
	{
		drillAPI.POST("", handlers.Drill.StartDrill)
		drillAPI.DELETE("", handlers.Drill.EndDrill)
		drillAPI.GET("/current", handlers.Drill.GetCurrent)
		drillAPI.POST("/answer", handlers.Drill.AnswerDrill)
		drillAPI.POST("/next", handlers.Drill.NextQuestion)
		drillAPI.POST("/position", handlers.Drill.GoToQuestion)
		drillAPI.GET("/summary", handlers.Drill.GetSummary)
	}

	// ─── 5. WebSocket Group (Device WS Auth) ───────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireDeviceWSAuth(authService))
	{
		ws.GET("/exam/stream", handlers.WS.ExamStream)
	}

	return router
}
