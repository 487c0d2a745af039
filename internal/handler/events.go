package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/dto"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
	"github.com/emitkithq/emitkit/internal/repository"
	"github.com/emitkithq/emitkit/internal/stream"
)

// ownedChannel loads the channel in the path and checks it belongs to the
// session's organization and the project in the path. It writes the error
// response itself and returns nil on failure.
func (h *Handler) ownedChannel(c *gin.Context) *domain.Channel {
	ctx := c.Request.Context()
	session := sessionFrom(c)

	channel, err := h.deps.Events.Channel(ctx, session.ActiveOrganizationID, c.Param("channel_id"))
	if err == nil && channel.ProjectID != c.Param("project_id") {
		err = repository.ErrChannelNotFound
	}
	if err != nil {
		logger.FromContext(ctx, h.log).Warn("Channel lookup failed",
			zap.Error(err),
			zap.String("channel_id", c.Param("channel_id")))
		respondError(c, err, "Failed to load channel")
		return nil
	}
	return channel
}

// listEvents handles GET /events/:project_id/:channel_id
func (h *Handler) listEvents(c *gin.Context) {
	var req dto.ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		validationFailed(c, bindingIssues(err))
		return
	}

	channel := h.ownedChannel(c)
	if channel == nil {
		return
	}

	page, err := h.deps.Events.ListEvents(c.Request.Context(), channel.OrganizationID, channel.ID, req.Page, req.Limit)
	if err != nil {
		logger.FromContext(c.Request.Context(), h.log).Error("Failed to list events",
			zap.Error(err),
			zap.String("channel_id", channel.ID))
		respondError(c, err, "Failed to list events")
		return
	}

	success(c, http.StatusOK, page)
}

// getEvent handles GET /events/:project_id/:channel_id/:event_id
func (h *Handler) getEvent(c *gin.Context) {
	channel := h.ownedChannel(c)
	if channel == nil {
		return
	}

	event, err := h.deps.Events.GetEvent(c.Request.Context(), channel.OrganizationID, c.Param("event_id"))
	if err == nil && event.ChannelID != channel.ID {
		err = repository.ErrEventNotFound
	}
	if err != nil {
		respondError(c, err, "Failed to load event")
		return
	}

	success(c, http.StatusOK, event)
}

// deleteEvent handles DELETE /events/:project_id/:channel_id/:event_id
func (h *Handler) deleteEvent(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessionFrom(c)
	channelID := c.Param("channel_id")
	eventID := c.Param("event_id")

	if err := h.deps.Events.DeleteEvent(ctx, session.ActiveOrganizationID, channelID, eventID); err != nil {
		logger.FromContext(ctx, h.log).Error("Failed to delete event",
			zap.Error(err),
			zap.String("event_id", eventID),
			zap.String("channel_id", channelID))
		respondError(c, err, "Failed to delete event")
		return
	}

	success(c, http.StatusOK, gin.H{"id": eventID, "deleted": true})
}

// getStats handles GET /events/stats
func (h *Handler) getStats(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessionFrom(c)

	var req dto.StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		validationFailed(c, bindingIssues(err))
		return
	}

	from, fromErr := parseTime(req.From)
	to, toErr := parseTime(req.To)
	var issues []dto.FieldIssue
	if fromErr != nil {
		issues = append(issues, dto.FieldIssue{Field: "from", Message: "from must be an RFC 3339 timestamp"})
	}
	if toErr != nil {
		issues = append(issues, dto.FieldIssue{Field: "to", Message: "to must be an RFC 3339 timestamp"})
	}
	if len(issues) > 0 {
		validationFailed(c, issues)
		return
	}

	if req.ChannelID != "" {
		if _, err := h.deps.Events.Channel(ctx, session.ActiveOrganizationID, req.ChannelID); err != nil {
			respondError(c, err, "Failed to load channel")
			return
		}
	}

	stats, err := h.deps.Events.Stats(ctx, session.ActiveOrganizationID, req.ChannelID, from, to)
	if err != nil {
		logger.FromContext(ctx, h.log).Error("Failed to get stats",
			zap.Error(err),
			zap.String("channel_id", req.ChannelID))
		respondError(c, err, "Failed to get stats")
		return
	}

	success(c, http.StatusOK, stats)
}

// streamChannel handles GET /events/:project_id/:channel_id/stream
func (h *Handler) streamChannel(c *gin.Context) {
	channel := h.ownedChannel(c)
	if channel == nil {
		return
	}
	h.serveStream(c, "channel", stream.ChannelPoller(h.deps.Events, channel.OrganizationID, channel.ID))
}

// streamOrganization handles GET /stream
func (h *Handler) streamOrganization(c *gin.Context) {
	session := sessionFrom(c)
	h.serveStream(c, "organization", stream.OrganizationPoller(h.deps.Events, session.ActiveOrganizationID))
}

func (h *Handler) serveStream(c *gin.Context, scope string, poll stream.Poller) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx, h.log).With(zap.String("scope", scope))

	stream.SetHeaders(c.Writer.Header())
	c.Status(http.StatusOK)

	metrics.StreamConnections.WithLabelValues(scope).Inc()
	defer metrics.StreamConnections.WithLabelValues(scope).Dec()

	log.Info("Stream opened")
	if err := h.deps.Streamer.Run(ctx, stream.NewSSEWriter(c.Writer, c.Writer.Flush), poll); err != nil {
		log.Info("Stream closed by write failure", zap.Error(err))
		return
	}
	log.Info("Stream closed")
}

func parseTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
