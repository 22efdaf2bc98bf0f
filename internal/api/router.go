package api

import (
	"net/http"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/service"
	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
	"github.com/sirosfoundation/go-workspace-backend/pkg/middleware"
)

// NewRouter builds the gin engine serving the workspace API. Paths are
// matched exactly: no trailing-slash or case redirects, and an unknown
// method on a known path is a 404 like any other unmatched request.
func NewRouter(services *service.Services, cfg *config.Config, clock quartz.Clock, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.BodyCache(cfg.Server.MaxBodyBytes))
	router.Use(middleware.WorkspaceMiddleware())
	router.Use(middleware.Logger(logger))
	if len(cfg.Server.CORS.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.Server.CORS.AllowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{"Authorization", "Content-Type"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	handlers := NewHandlers(services, logger)
	limiter := middleware.NewLoginRateLimiter(cfg.RateLimit, clock, logger)

	router.POST("/login", middleware.LoginRateLimitMiddleware(limiter), handlers.Login)

	router.GET("/chat", handlers.ListChat)
	router.POST("/chat", handlers.PostChat)

	docs := router.Group("/docs")
	{
		docs.GET("", handlers.ListDocs)
		docs.POST("", handlers.CreateDoc)
		docs.GET("/:id", handlers.GetDoc)
		docs.POST("/:id", handlers.UpdateDoc)
		docs.DELETE("/:id", handlers.DeleteDoc)
	}

	router.POST("/ping", handlers.Ping)
	router.POST("/online_users", handlers.OnlineUsers)

	router.NoRoute(NotFound)

	return router
}
