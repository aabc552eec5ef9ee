package app

import (
	"fmt"

	"github.com/cafebotify/cafebot-backend/internal/clients/sendgrid"
	"github.com/cafebotify/cafebot-backend/internal/clients/telegram"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
)

type Clients struct {
	Telegram telegram.Client
	Email    sendgrid.Client
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	tg, err := telegram.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init telegram client: %w", err)
	}

	// The staff email copy is optional. Without an API key the notifier just
	// skips that channel.
	email, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Warn("Sendgrid client unavailable, staff email disabled", "error", err)
		email = nil
	}

	return Clients{
		Telegram: tg,
		Email:    email,
	}, nil
}
