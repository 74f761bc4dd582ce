package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/model/dto"
	"github.com/nevera/nevera_server/internal/pkg/whatsapp"
	"github.com/nevera/nevera_server/internal/service"
)

// WebhookHandler is the WhatsApp inbound surface. The platform retries
// aggressively on non-200, so message processing always answers 200
// whatever happened inside.
type WebhookHandler struct {
	botService *service.BotService
	sender     whatsapp.Sender
	cfg        *config.Config
	log        zerolog.Logger
}

func NewWebhookHandler(botService *service.BotService, sender whatsapp.Sender, cfg *config.Config, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		botService: botService,
		sender:     sender,
		cfg:        cfg,
		log:        log,
	}
}

// Verify answers the platform's subscription handshake.
// GET /webhook/whatsapp
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.cfg.WhatsApp.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// Receive processes inbound messages.
// POST /webhook/whatsapp
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload dto.WhatsAppWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn().Err(err).Msg("unparseable webhook body")
		c.Status(http.StatusOK)
		return
	}

	ctx := c.Request.Context()
	for _, msg := range payload.Flatten() {
		if !msg.IsText {
			h.apologizeForMedia(c, msg.Phone)
			continue
		}

		reply := h.botService.HandleMessage(ctx, msg.Phone, msg.Name, msg.Text)
		if reply == "" {
			continue
		}
		if _, err := h.sender.Send(ctx, msg.Phone, reply); err != nil {
			h.log.Error().Err(err).Str("phone", msg.Phone).Msg("reply send failed")
		}
	}

	c.Status(http.StatusOK)
}

func (h *WebhookHandler) apologizeForMedia(c *gin.Context, phone string) {
	if _, err := h.sender.Send(c.Request.Context(), phone, service.MediaReply()); err != nil {
		h.log.Error().Err(err).Str("phone", phone).Msg("media reply failed")
	}
}
