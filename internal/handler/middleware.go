package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/auth"
	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/dto"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
	"github.com/emitkithq/emitkit/internal/permission"
	"github.com/emitkithq/emitkit/internal/service"
)

const (
	principalKey = "principal"
	sessionKey   = "session"
)

// requestID propagates the caller's request id or assigns a new one.
func (h *Handler) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(h.auth.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(h.auth.RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// requireAPIKey authenticates the bearer token, meters the key and reports
// the window in X-RateLimit-* headers on every response.
func (h *Handler) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx, h.log)

		key, err := h.deps.Keys.Verify(ctx, bearerToken(c.GetHeader("Authorization")))
		if errors.Is(err, auth.ErrUnauthorized) {
			log.Warn("API request rejected",
				zap.String("path", c.FullPath()),
				zap.String("reason", "invalid or missing api key"))
			abortUnauthorized(c)
			return
		}
		if err != nil {
			log.Error("Failed to verify API key", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:     "Internal server error",
				RequestID: logger.RequestID(ctx),
			})
			return
		}

		info, allowed := h.deps.Limiter.Allow(ctx, key.ID, key.RateLimit)
		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.Reset, 10))
		if !allowed {
			metrics.HTTPRateLimitRejectionsTotal.Inc()
			log.Warn("Rate limit exceeded", zap.String("api_key_id", key.ID))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:     "Rate limit exceeded",
				Message:   "Too many requests, retry after the reset time",
				RequestID: logger.RequestID(ctx),
			})
			return
		}

		c.Set(principalKey, service.Principal{
			OrganizationID: key.OrganizationID,
			ProjectID:      key.ProjectID,
			APIKeyID:       key.ID,
		})
		c.Next()
	}
}

// requireSession authenticates the dashboard cookie and checks that the
// session's role grants action.
func (h *Handler) requireSession(action permission.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		token, _ := c.Cookie(h.auth.SessionCookie)

		session, err := h.deps.Sessions.Authenticate(ctx, token)
		if errors.Is(err, auth.ErrUnauthorized) {
			abortUnauthorized(c)
			return
		}
		if err != nil {
			logger.FromContext(ctx, h.log).Error("Failed to authenticate session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:     "Internal server error",
				RequestID: logger.RequestID(ctx),
			})
			return
		}

		if !permission.Can(permission.Role(session.Role), action) {
			logger.FromContext(ctx, h.log).Warn("Permission denied",
				zap.String("user_id", session.UserID),
				zap.String("role", session.Role),
				zap.String("action", string(action)))
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{
				Error:     "Forbidden",
				Message:   "Your role does not allow this action",
				RequestID: logger.RequestID(ctx),
			})
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.UnauthorizedResponse{
		Error:   "Unauthorized",
		Message: "Invalid or missing authentication credentials",
	})
}

func principalFrom(c *gin.Context) service.Principal {
	p, _ := c.MustGet(principalKey).(service.Principal)
	return p
}

func sessionFrom(c *gin.Context) *domain.Session {
	s, _ := c.MustGet(sessionKey).(*domain.Session)
	return s
}
