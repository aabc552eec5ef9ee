package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/cafebotify/cafebot-backend/internal/catalog"
	"github.com/cafebotify/cafebot-backend/internal/db"
	"github.com/cafebotify/cafebot-backend/internal/pkg/ctxutil"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/repos"
	"github.com/cafebotify/cafebot-backend/internal/store"
)

type App struct {
	Log      *logger.Logger
	Router   *gin.Engine
	Cfg      Config
	Store    store.Store
	Catalog  *catalog.Catalog
	Clients  Clients
	Services Services
	cancel   context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	fileCfg := catalog.LoadFile(cfg.CafeConfigPath)
	cat := catalog.New(fileCfg.Cafe.Menu)
	cal := catalog.NewCalendar(*fileCfg.Cafe.WorkStart, *fileCfg.Cafe.WorkEnd, cfg.ShopLocation)

	st, err := store.NewRedis(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	// Postgres carries only the order archive; the bot runs fine without it.
	var archive repos.OrderRepo
	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Warn("Postgres init failed, order archive disabled", "error", err)
	} else if err := pg.AutoMigrateAll(); err != nil {
		log.Warn("Postgres automigrate failed, order archive disabled", "error", err)
	} else {
		archive = repos.NewOrderRepo(pg.DB(), log)
	}

	clients, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	serviceset := wireServices(log, cfg, st, archive, clients, cat, cal, fileCfg)
	handlerset := wireHandlers(log, cfg, serviceset, archive, cat, clients)
	mw := wireMiddleware(log, cfg)
	router := wireRouter(cfg, handlerset, mw)

	return &App{
		Log:      log,
		Router:   router,
		Cfg:      cfg,
		Store:    st,
		Catalog:  cat,
		Clients:  clients,
		Services: serviceset,
	}, nil
}

// Start launches the retention scheduler and registers the webhook. Webhook
// registration is best-effort: a transport hiccup here should not kill the
// process, the healthcheck stays green and a redeploy retries it.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.Scheduler != nil {
		a.Services.Scheduler.Start(ctx)
	}

	if url := a.Cfg.WebhookURL(); url != "" {
		if err := a.Clients.Telegram.SetWebhook(ctxutil.Default(ctx), url, a.Cfg.WebhookSecret); err != nil {
			a.Log.Warn("Webhook registration failed", "url", url, "error", err)
		} else {
			a.Log.Info("Webhook registered", "url", url)
		}
	} else {
		a.Log.Warn("PUBLIC_HOSTNAME not set, webhook not registered")
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
