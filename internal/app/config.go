package app

import (
	"time"

	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/retention"
	"github.com/cafebotify/cafebot-backend/internal/utils"
)

type Config struct {
	Port           string
	PublicHostname string
	WebhookSecret  string
	JWTSecretKey   string

	CafeConfigPath  string
	AdminChatID     string
	StaffEmail      string
	RateLimitWindow time.Duration
	ShopLocation    *time.Location

	Retention retention.Config
}

func LoadConfig(log *logger.Logger) Config {
	port := utils.GetEnv("PORT", "10000", log)
	publicHostname := utils.GetEnv("PUBLIC_HOSTNAME", "", log)
	webhookSecret := utils.GetEnv("WEBHOOK_SECRET", "cafebot123", log)
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	cafeConfigPath := utils.GetEnv("CAFE_CONFIG_PATH", "config.yaml", log)
	adminChatID := utils.GetEnv("ADMIN_CHAT_ID", "", log)
	staffEmail := utils.GetEnv("STAFF_EMAIL", "", log)
	rateLimitSeconds := utils.GetEnvAsInt("RATE_LIMIT_SECONDS", 60, log)
	tzOffsetHours := utils.GetEnvAsInt("SHOP_TZ_OFFSET_HOURS", 3, log)

	loc := time.FixedZone("shop", tzOffsetHours*3600)

	ret := retention.DefaultConfig(loc)
	ret.Interval = time.Duration(utils.GetEnvAsInt("RETENTION_INTERVAL_HOURS", 6, log)) * time.Hour
	ret.ReturnCycle = time.Duration(utils.GetEnvAsInt("RETENTION_RETURN_CYCLE_DAYS", 7, log)) * 24 * time.Hour
	ret.Cooldown = time.Duration(utils.GetEnvAsInt("RETENTION_COOLDOWN_DAYS", 30, log)) * 24 * time.Hour
	ret.WindowStartHour = utils.GetEnvAsInt("RETENTION_WINDOW_START_HOUR", 10, log)
	ret.WindowEndHour = utils.GetEnvAsInt("RETENTION_WINDOW_END_HOUR", 20, log)

	return Config{
		Port:            port,
		PublicHostname:  publicHostname,
		WebhookSecret:   webhookSecret,
		JWTSecretKey:    jwtSecretKey,
		CafeConfigPath:  cafeConfigPath,
		AdminChatID:     adminChatID,
		StaffEmail:      staffEmail,
		RateLimitWindow: time.Duration(rateLimitSeconds) * time.Second,
		ShopLocation:    loc,
		Retention:       ret,
	}
}

// WebhookPath is the secret-scoped route the transport posts updates to.
func (c Config) WebhookPath() string {
	return "/" + c.WebhookSecret + "/webhook"
}

// WebhookURL is the externally visible webhook address, empty when no
// public hostname is configured.
func (c Config) WebhookURL() string {
	if c.PublicHostname == "" {
		return ""
	}
	return "https://" + c.PublicHostname + c.WebhookPath()
}
