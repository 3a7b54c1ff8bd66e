package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khoahotran/stories-backend/pkg/auth"
	"github.com/khoahotran/stories-backend/pkg/logger"
	"github.com/khoahotran/stories-backend/pkg/metrics"
)

type RouterDeps struct {
	Logger         logger.Logger
	JWT            *auth.JWTService
	Stories        *StoryHandler
	Deletions      *DeletionHandler
	Live           *WSHandler
	Metrics        *metrics.HTTP
	Gatherer       prometheus.Gatherer
	RateLimiter    *RateLimiter
	AllowedOrigins []string
	OperatorIDs    []string
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(d.Logger))
	router.Use(SecureHeaders())
	router.Use(CORSMiddleware(d.AllowedOrigins))
	if d.Metrics != nil {
		router.Use(MetricsMiddleware(d.Metrics))
	}
	router.Use(ErrorMiddleware(d.Logger))

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMiddleware := AuthMiddleware(d.JWT, d.Logger)

	api := router.Group("/api/v1")
	if d.RateLimiter != nil {
		api.Use(d.RateLimiter.Middleware())
	}
	api.Use(authMiddleware)
	{
		stories := api.Group("/stories")
		{
			stories.POST("", d.Stories.CreateStory)
			stories.GET("/tray", d.Stories.GetTray)
			stories.GET("/:id", d.Stories.GetStory)
			stories.POST("/:id/view", d.Stories.RecordView)
			stories.GET("/:id/viewers", d.Stories.ListViewers)
		}

		if d.Deletions != nil {
			admin := api.Group("/admin", RequireOperator(d.OperatorIDs, d.Logger))
			admin.GET("/deletions", d.Deletions.ListDeletions)
		}
	}

	if d.Live != nil {
		router.GET("/ws", authMiddleware, d.Live.Connect)
	}

	return router
}
