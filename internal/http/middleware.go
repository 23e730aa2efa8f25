package http

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"memo-service/internal/domain"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	userIDKey       = "user_id"
	sessionTokenKey = "session_token"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
		}
		if userID, ok := c.Get(userIDKey); ok {
			fields["user_id"] = userID
		}
		logger.WithFields(fields).Info("request")
	}
}

// requireAuth resolves the session cookie to a user and stores the id in the
// gin context. Handlers behind it read the caller only through currentUserID.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(h.cookie.Name)
		if err != nil || token == "" {
			h.abortWithError(c, domain.ErrUnauthenticated)
			return
		}

		ctx := c.Request.Context()
		userID, err := h.sessions.Resolve(ctx, token)
		if err != nil {
			h.abortWithError(c, err)
			return
		}

		user, err := h.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				if err := h.sessions.Destroy(ctx, token); err != nil {
					h.logger.WithError(err).Warn("destroy orphaned session")
				}
				err = domain.ErrUnauthenticated
			}
			h.abortWithError(c, err)
			return
		}

		c.Set(userIDKey, user.ID)
		c.Set(sessionTokenKey, token)
		c.Next()
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
