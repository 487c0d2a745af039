package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/dto"
	"github.com/emitkithq/emitkit/internal/idempotency"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
)

const idempotencyHeader = "Idempotency-Key"

// createEvent handles POST /api/v1/events
// @Summary Create an event
// @Description Store an event in a channel, creating the channel on first use
// @Tags events
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replays the first response for 24 hours"
// @Param event body dto.CreateEventRequest true "Event data"
// @Success 201 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.UnauthorizedResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/events [post]
func (h *Handler) createEvent(c *gin.Context) {
	ctx := c.Request.Context()
	principal := principalFrom(c)
	log := logger.FromContext(ctx, h.log).With(
		zap.String("organization_id", principal.OrganizationID),
		zap.String("api_key_id", principal.APIKeyID))

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid event request", zap.Error(err))
		validationFailed(c, bindingIssues(err))
		return
	}

	idemKey := c.GetHeader(idempotencyHeader)
	if idemKey != "" && h.deps.Idempotency != nil {
		if rec, ok := h.deps.Idempotency.Lookup(ctx, principal.OrganizationID, idemKey); ok {
			metrics.IdempotentReplaysTotal.Inc()
			log.Info("Idempotent request replay",
				zap.String("idempotency_key", idemKey),
				zap.String("channel_name", req.ChannelName))
			c.Header("X-Idempotent-Replay", "true")
			c.Data(rec.Status, "application/json; charset=utf-8", rec.Body)
			return
		}
	}

	event, channel, err := h.deps.Events.CreateEvent(ctx, principal, &req)
	if err != nil {
		log.Error("Failed to create event",
			zap.Error(err),
			zap.String("channel_name", req.ChannelName))
		respondError(c, err, "Failed to create event")
		return
	}

	body, err := json.Marshal(dto.SuccessResponse{
		Success: true,
		Data: dto.CreateEventResponse{
			ID:          event.ID,
			ChannelID:   channel.ID,
			ChannelName: channel.Name,
			Title:       event.Title,
			CreatedAt:   event.CreatedAt,
		},
		RequestID: logger.RequestID(ctx),
	})
	if err != nil {
		log.Error("Failed to encode event response", zap.Error(err))
		respondError(c, err, "Failed to create event")
		return
	}

	if idemKey != "" && h.deps.Idempotency != nil {
		rec := idempotency.Record{Status: http.StatusCreated, Body: body}
		if err := h.deps.Idempotency.Save(ctx, principal.OrganizationID, idemKey, rec); err != nil {
			log.Error("Failed to save idempotent response",
				zap.Error(err),
				zap.String("idempotency_key", idemKey))
		}
	}

	log.Info("Event created",
		zap.String("event_id", event.ID),
		zap.String("channel_id", channel.ID))

	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

// createEventBatch handles POST /api/v1/events/batch
// @Summary Create events in bulk
// @Description Store up to 1000 events in one write
// @Tags events
// @Accept json
// @Produce json
// @Param events body dto.CreateEventBatchRequest true "Events"
// @Success 201 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/events/batch [post]
func (h *Handler) createEventBatch(c *gin.Context) {
	ctx := c.Request.Context()
	principal := principalFrom(c)
	log := logger.FromContext(ctx, h.log).With(zap.String("organization_id", principal.OrganizationID))

	var req dto.CreateEventBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid batch event request", zap.Error(err))
		validationFailed(c, bindingIssues(err))
		return
	}

	result, err := h.deps.Events.CreateEventBatch(ctx, principal, req.Events)
	if err != nil {
		log.Error("Failed to create event batch",
			zap.Error(err),
			zap.Int("event_count", len(req.Events)))
		respondError(c, err, "Failed to create events")
		return
	}

	log.Info("Event batch processed",
		zap.Int("accepted", result.Accepted),
		zap.Int("quarantined", result.Quarantined),
		zap.Int("total", len(req.Events)))

	success(c, http.StatusCreated, dto.CreateEventBatchResponse{
		Accepted:    result.Accepted,
		Quarantined: result.Quarantined,
		EventIDs:    result.EventIDs,
	})
}

// identify handles POST /api/v1/identify
// @Summary Identify a user
// @Description Upsert a user's properties and aliases
// @Tags identity
// @Accept json
// @Produce json
// @Param identity body dto.IdentifyRequest true "Identity"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/identify [post]
func (h *Handler) identify(c *gin.Context) {
	ctx := c.Request.Context()
	principal := principalFrom(c)

	var req dto.IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, bindingIssues(err))
		return
	}

	identity, err := h.deps.Identities.Identify(ctx, principal.OrganizationID, &req)
	if err != nil {
		logger.FromContext(ctx, h.log).Error("Failed to identify user",
			zap.Error(err),
			zap.String("user_id", req.UserID))
		respondError(c, err, "Failed to identify user")
		return
	}

	success(c, http.StatusOK, dto.IdentifyResponse{
		ID:         identity.ID,
		UserID:     identity.UserID,
		Properties: identity.Properties,
		Aliases:    dto.IdentifyAliases{Created: identity.Aliases},
		UpdatedAt:  identity.UpdatedAt,
	})
}
