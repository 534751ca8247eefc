package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/middleware"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func callerID(c *gin.Context) int64 {
	return c.GetInt64(middleware.UserIDKey)
}

func callerIDPtr(c *gin.Context) *int64 {
	if id := callerID(c); id != 0 {
		return &id
	}
	return nil
}

func chatIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return id, true
}

// respondError maps taxonomy errors to their status; anything else is an
// internal failure whose detail is only logged, never forwarded.
func (h *ChatHandler) respondError(c *gin.Context, err error) {
	status := chaterr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorw("request failed", "route", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), callerIDPtr(c))
}
