package app

import (
	"github.com/cafebotify/cafebot-backend/internal/catalog"
	"github.com/cafebotify/cafebot-backend/internal/conversation"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/ratelimit"
	"github.com/cafebotify/cafebot-backend/internal/repos"
	"github.com/cafebotify/cafebot-backend/internal/retention"
	"github.com/cafebotify/cafebot-backend/internal/services"
	"github.com/cafebotify/cafebot-backend/internal/store"
)

type Services struct {
	Profiles  services.ProfileService
	Stats     services.StatsService
	Notifier  services.Notifier
	Orders    services.OrderService
	Sessions  *conversation.Sessions
	Engine    *conversation.Engine
	Scheduler *retention.Scheduler
}

func wireServices(
	log *logger.Logger,
	cfg Config,
	st store.Store,
	archive repos.OrderRepo,
	clients Clients,
	cat *catalog.Catalog,
	cal *catalog.Calendar,
	fileCfg *catalog.FileConfig,
) Services {
	log.Info("Wiring services...")

	adminChatID := cfg.AdminChatID
	if adminChatID == "" {
		adminChatID = fileCfg.Cafe.AdminChatID
	}

	profiles := services.NewProfileService(log, st)
	stats := services.NewStatsService(log, st)
	notifier := services.NewNotifier(log, clients.Telegram, clients.Email, services.NotifierConfig{
		CafeName:    fileCfg.Cafe.Name,
		CafePhone:   fileCfg.Cafe.Phone,
		AdminChatID: adminChatID,
		StaffEmail:  cfg.StaffEmail,
	})
	limiter := ratelimit.New(log, st)
	orders := services.NewOrderService(log, st, limiter, cat, archive, profiles, stats, notifier, cfg.RateLimitWindow)

	sessions := conversation.NewSessions(log, st)
	engine := conversation.NewEngine(log, sessions, cat, cal, orders, stats, conversation.Config{
		CafeName:    fileCfg.Cafe.Name,
		CafePhone:   fileCfg.Cafe.Phone,
		AdminUserID: adminChatID,
		CatalogPath: cfg.CafeConfigPath,
	})

	scheduler := retention.New(log, profiles, notifier, cfg.Retention)

	return Services{
		Profiles:  profiles,
		Stats:     stats,
		Notifier:  notifier,
		Orders:    orders,
		Sessions:  sessions,
		Engine:    engine,
		Scheduler: scheduler,
	}
}
