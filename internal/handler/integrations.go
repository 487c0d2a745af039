package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/dto"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/webhook"
)

// createWebhook handles POST /webhooks
func (h *Handler) createWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessionFrom(c)
	log := logger.FromContext(ctx, h.log).With(zap.String("organization_id", session.ActiveOrganizationID))

	var req dto.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, bindingIssues(err))
		return
	}

	if err := webhook.ValidateURL(ctx, req.URL, h.deps.Resolver); err != nil {
		log.Warn("Rejected webhook URL", zap.String("url", req.URL), zap.Error(err))
		validationFailed(c, []dto.FieldIssue{{Field: "url", Message: err.Error()}})
		return
	}

	channel, err := h.deps.Events.Channel(ctx, session.ActiveOrganizationID, req.ChannelID)
	if err != nil {
		respondError(c, err, "Failed to create webhook")
		return
	}

	secret := req.Secret
	if secret != "" && h.deps.Cipher != nil {
		secret, err = h.deps.Cipher.Encrypt(req.Secret)
		if err != nil {
			log.Error("Failed to encrypt webhook secret", zap.Error(err))
			respondError(c, err, "Failed to create webhook")
			return
		}
	}

	events := req.Events
	if len(events) == 0 {
		events = []string{domain.WebhookEventAll}
	}

	hook := &domain.Webhook{
		ID:             domain.NewID("webhook"),
		ChannelID:      channel.ID,
		OrganizationID: session.ActiveOrganizationID,
		URL:            req.URL,
		Secret:         secret,
		Events:         events,
		Enabled:        true,
	}
	if err := h.deps.Webhooks.Create(ctx, hook); err != nil {
		log.Error("Failed to create webhook", zap.Error(err))
		respondError(c, err, "Failed to create webhook")
		return
	}

	log.Info("Webhook created",
		zap.String("webhook_id", hook.ID),
		zap.String("channel_id", hook.ChannelID))

	success(c, http.StatusCreated, hook)
}

// subscribePush handles POST /push/subscriptions
func (h *Handler) subscribePush(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessionFrom(c)

	var req dto.PushSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, bindingIssues(err))
		return
	}

	sub := &domain.PushSubscription{
		ID:             domain.NewID("push"),
		UserID:         session.UserID,
		OrganizationID: session.ActiveOrganizationID,
		Endpoint:       req.Endpoint,
		P256dhKey:      req.Keys.P256dh,
		AuthKey:        req.Keys.Auth,
		ChannelIDs:     req.ChannelIDs,
	}
	if err := h.deps.PushSubscriptions.Upsert(ctx, sub); err != nil {
		logger.FromContext(ctx, h.log).Error("Failed to save push subscription",
			zap.Error(err),
			zap.String("user_id", session.UserID))
		respondError(c, err, "Failed to save push subscription")
		return
	}

	success(c, http.StatusCreated, sub)
}

// unsubscribePush handles DELETE /push/subscriptions
func (h *Handler) unsubscribePush(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessionFrom(c)

	var req dto.PushUnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, bindingIssues(err))
		return
	}

	if err := h.deps.PushSubscriptions.DeleteByEndpoint(ctx, session.UserID, req.Endpoint); err != nil {
		logger.FromContext(ctx, h.log).Error("Failed to remove push subscription",
			zap.Error(err),
			zap.String("user_id", session.UserID))
		respondError(c, err, "Failed to remove push subscription")
		return
	}

	success(c, http.StatusOK, gin.H{"endpoint": req.Endpoint, "deleted": true})
}
