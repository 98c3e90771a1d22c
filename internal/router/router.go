package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/resumeintel/interview-backend/internal/config"
	"github.com/resumeintel/interview-backend/internal/handler"
	"github.com/resumeintel/interview-backend/internal/middleware"
	"github.com/resumeintel/interview-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Interview *handler.InterviewHandler
	Monitor   *handler.MonitorHandler
	System    *handler.SystemHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
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
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for high-frequency signal endpoints. Frame signals tick
	// several times a second per candidate, so the budget is generous.
	signalLimiter := middleware.NewRateLimiter(600, time.Minute)

	// ─── 1. Interview Session Group ────────────────────────────────────
	api := router.Group("/api/v1/interview")
	{
		api.POST("/sessions", handlers.Interview.StartSession)
		api.POST("/sessions/:candidate_id/end", handlers.Interview.EndSession)
		api.POST("/sessions/:candidate_id/answers", handlers.Interview.SubmitAnswer)

		api.POST("/sessions/:candidate_id/events",
			signalLimiter.Middleware(),
			handlers.Interview.SubmitCheatingEvent,
		)
		api.POST("/sessions/:candidate_id/frames",
			signalLimiter.Middleware(),
			handlers.Interview.SubmitFrameSignal,
		)

		api.GET("/sessions/:candidate_id/metrics", handlers.Interview.GetMetrics)
		api.GET("/sessions/:candidate_id/summary", handlers.Interview.GetSummary)

		// Recruiter-facing views.
		api.GET("/sessions/:candidate_id/monitor", handlers.Monitor.MonitorSessionSSE)
		api.GET("/sessions/:candidate_id/events", handlers.Monitor.GetArchivedEvents)

		api.GET("/questions", handlers.Interview.GetQuestions)

		// Ops view.
		api.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	// ─── 2. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/interview/:candidate_id/stream", handlers.WS.InterviewStream)
	}

	return router
}
