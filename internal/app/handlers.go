package app

import (
	"github.com/gin-gonic/gin"

	"github.com/cafebotify/cafebot-backend/internal/catalog"
	"github.com/cafebotify/cafebot-backend/internal/handlers"
	"github.com/cafebotify/cafebot-backend/internal/middleware"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/repos"
	"github.com/cafebotify/cafebot-backend/internal/server"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

type Handlers struct {
	Webhook *handlers.WebhookHandler
	Admin   *handlers.AdminHandler
}

func wireHandlers(log *logger.Logger, cfg Config, svcs Services, archive repos.OrderRepo, cat *catalog.Catalog, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Webhook: handlers.NewWebhookHandler(log, svcs.Engine, clients.Telegram, cfg.WebhookSecret),
		Admin:   handlers.NewAdminHandler(log, svcs.Stats, archive, cat, cfg.CafeConfigPath),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireRouter(cfg Config, h Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		WebhookHandler: h.Webhook,
		AdminHandler:   h.Admin,
		AuthMiddleware: mw.Auth,
		WebhookPath:    cfg.WebhookPath(),
	})
}
