package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cafebotify/cafebot-backend/internal/clients/telegram"
	"github.com/cafebotify/cafebot-backend/internal/conversation"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
)

// update is the subset of the Telegram update payload the bot consumes.
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64 `json:"message_id"`
		From      *struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			Username  string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

type WebhookHandler struct {
	log         *logger.Logger
	engine      *conversation.Engine
	tg          telegram.Client
	secretToken string
}

func NewWebhookHandler(baseLog *logger.Logger, engine *conversation.Engine, tg telegram.Client, secretToken string) *WebhookHandler {
	return &WebhookHandler{
		log:         baseLog.With("handler", "WebhookHandler"),
		engine:      engine,
		tg:          tg,
		secretToken: secretToken,
	}
}

// Handle consumes one inbound update. It always answers 200 to the
// transport: a handling failure is ours to log, not the transport's to
// retry into a duplicate conversation turn.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if h.secretToken != "" {
		got := strings.TrimSpace(c.GetHeader("X-Telegram-Bot-Api-Secret-Token"))
		if got != h.secretToken {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
	}

	var u update
	if err := c.ShouldBindJSON(&u); err != nil {
		h.log.Warn("Undecodable update", "error", err)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if u.Message == nil || u.Message.From == nil || strings.TrimSpace(u.Message.Text) == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	userID := strconv.FormatInt(u.Message.From.ID, 10)
	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	displayName := u.Message.From.FirstName
	if displayName == "" {
		displayName = u.Message.From.Username
	}

	replies := h.engine.HandleMessage(c.Request.Context(), userID, displayName, u.Message.Text)
	for _, reply := range replies {
		if _, err := h.tg.SendMessage(c.Request.Context(), telegram.SendMessageRequest{
			ChatID:                chatID,
			Text:                  reply.Text,
			ReplyKeyboard:         reply.Keyboard,
			OneTimeKeyboard:       reply.OneTimeKeyboard,
			DisableWebPagePreview: true,
		}); err != nil {
			h.log.Warn("Reply send failed", "chat_id", chatID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
