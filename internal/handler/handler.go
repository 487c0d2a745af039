package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/metrics"
	"github.com/emitkithq/emitkit/internal/permission"
	"github.com/emitkithq/emitkit/internal/repository"
	"github.com/emitkithq/emitkit/internal/service"
	"github.com/emitkithq/emitkit/internal/stream"
	"github.com/emitkithq/emitkit/internal/webhook"
)

const healthTimeout = 2 * time.Second

// Dependencies are the collaborators the HTTP layer routes requests to.
// Idempotency, Cipher, Resolver and Health are optional.
type Dependencies struct {
	Events            service.EventServicer
	Identities        service.IdentityServicer
	Keys              KeyVerifier
	Limiter           RateLimiter
	Sessions          SessionAuthenticator
	Idempotency       IdempotencyStore
	Webhooks          repository.WebhookRepository
	PushSubscriptions repository.PushSubscriptionRepository
	Cipher            SecretEncrypter
	Resolver          webhook.Resolver
	Streamer          *stream.Streamer
	Health            map[string]Pinger
}

type Handler struct {
	deps   Dependencies
	auth   config.Auth
	router *gin.Engine
	log    *zap.Logger
}

func NewHandler(deps Dependencies, authCfg config.Auth, log *zap.Logger) *Handler {
	if authCfg.RequestIDHeader == "" {
		authCfg.RequestIDHeader = "X-Request-ID"
	}
	registerFieldNames()

	h := &Handler{
		deps:   deps,
		auth:   authCfg,
		router: gin.New(),
		log:    log,
	}

	h.router.Use(gin.Recovery(), h.requestID(), metrics.GinMiddleware())
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := h.router.Group("/api/v1", h.requireAPIKey())
	api.POST("/events", h.createEvent)
	api.POST("/events/batch", h.createEventBatch)
	api.POST("/identify", h.identify)

	h.router.GET("/stream", h.requireSession(permission.EventRead), h.streamOrganization)
	h.router.GET("/events/stats", h.requireSession(permission.EventRead), h.getStats)
	h.router.GET("/events/:project_id/:channel_id", h.requireSession(permission.EventRead), h.listEvents)
	h.router.GET("/events/:project_id/:channel_id/stream", h.requireSession(permission.EventRead), h.streamChannel)
	h.router.GET("/events/:project_id/:channel_id/:event_id", h.requireSession(permission.EventRead), h.getEvent)
	h.router.DELETE("/events/:project_id/:channel_id/:event_id", h.requireSession(permission.EventDelete), h.deleteEvent)

	h.router.POST("/webhooks", h.requireSession(permission.WebhookManage), h.createWebhook)
	h.router.POST("/push/subscriptions", h.requireSession(permission.PushSubscribe), h.subscribePush)
	h.router.DELETE("/push/subscriptions", h.requireSession(permission.PushSubscribe), h.unsubscribePush)
}

// healthCheck handles GET /health
// @Summary Health check
// @Description Check the service and its backing stores
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	var failing []string
	for name, p := range h.deps.Health {
		if err := p.Ping(ctx); err != nil {
			h.log.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			failing = append(failing, name)
		}
	}

	if len(failing) > 0 {
		sort.Strings(failing)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "degraded",
			"failing": failing,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
