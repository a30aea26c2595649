package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sinaptika/tryout-backend/internal/config"
	"github.com/sinaptika/tryout-backend/internal/handler"
	"github.com/sinaptika/tryout-backend/internal/middleware"
	"github.com/sinaptika/tryout-backend/internal/response"
	"github.com/sinaptika/tryout-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Exam      *handler.ExamHandler
	Answer    *handler.AnswerHandler
	Violation *handler.ViolationHandler
	Result    *handler.ResultHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
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

	// Rate limiters (per IP). Violation reports get their own limiter so a
	// misbehaving client cannot flood the audit pipeline.
	authLimiter := middleware.NewRateLimiter(30, time.Minute)
	violationLimiter := middleware.NewRateLimiter(60, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/guest", handlers.Auth.Guest)
	}

	// ─── 2. Tryout Group (Participant or Guest JWT) ────────────────────
	tryout := router.Group("/api/v1/tryout")
	tryout.Use(middleware.RequireExamJWT(authService))
	{
		tryout.POST("/start", handlers.Exam.StartSession)
		tryout.GET("/parts/:part", handlers.Exam.EnterPart)
		tryout.POST("/parts/:part/complete", handlers.Exam.CompletePart)

		tryout.POST("/answers", handlers.Answer.StageAnswer)
		tryout.POST("/answers/batch", handlers.Answer.StageBatch)

		tryout.POST("/violations", violationLimiter.Middleware(), handlers.Violation.Report)
	}

	// ─── 3. Results Group (Participant or Guest JWT) ───────────────────
	results := router.Group("/api/v1/results")
	results.Use(middleware.RequireExamJWT(authService))
	{
		results.GET("/:correlation_id", handlers.Result.GetResult)
	}

	return router
}
