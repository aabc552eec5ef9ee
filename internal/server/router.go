package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cafebotify/cafebot-backend/internal/handlers"
	"github.com/cafebotify/cafebot-backend/internal/middleware"
)

type RouterConfig struct {
	WebhookHandler *handlers.WebhookHandler
	AdminHandler   *handlers.AdminHandler
	AuthMiddleware *middleware.AuthMiddleware
	WebhookPath    string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/", handlers.HealthCheck)
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST(cfg.WebhookPath, cfg.WebhookHandler.Handle)

	// ===============
	// || Protected ||
	// ===============
	admin := router.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireAuth())
	admin.GET("/stats", cfg.AdminHandler.GetStats)
	admin.GET("/orders", cfg.AdminHandler.ListOrders)
	admin.POST("/catalog/reload", cfg.AdminHandler.ReloadCatalog)

	return router
}
