package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"memo-service/internal/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func classifyError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, ErrorResponse{Error: "conflict", Message: "username or email already exists"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: "invalid_credentials", Message: "Invalid credentials"}
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: "authentication required"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Memo not found or not authorized"}
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "store_unavailable", Message: "service temporarily unavailable, try again later"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "internal server error"}
	}
}

// abortWithError writes the client-facing form of err. Internal details only go to the log.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	status, body := classifyError(err)
	entry := h.logger.WithFields(logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"status":     status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	c.AbortWithStatusJSON(status, body)
}
