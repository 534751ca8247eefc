package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/models"
	"hrchat-service/internal/service"
)

// GetChatMessages handles GET /chats/:chat_id/messages with keyset paging.
// ?before=<message_id> pages backwards; ?limit caps the page size.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := callerID(c)

	var beforeID int64
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
			return
		}
		beforeID = id
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	msgs, err := h.history.ListMessages(c.Request.Context(), chatID, userID, beforeID, limit)
	if err != nil && chaterr.Retryable(err) {
		time.Sleep(readRetryBackoff)
		msgs, err = h.history.ListMessages(c.Request.Context(), chatID, userID, beforeID, limit)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage handles POST /chats/:chat_id/messages, the REST mirror of the
// gateway's message.send event.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Content        string `json:"content"`
		AttachmentURL  string `json:"attachment_url"`
		AttachmentType string `json:"attachment_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), service.SendInput{
		ChatID:         chatID,
		SenderID:       callerID(c),
		Content:        req.Content,
		AttachmentURL:  req.AttachmentURL,
		AttachmentType: req.AttachmentType,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// UnreadCount handles GET /chats/:chat_id/unread.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	n, err := h.messages.UnreadCount(c.Request.Context(), chatID, callerID(c))
	if err != nil && chaterr.Retryable(err) {
		time.Sleep(readRetryBackoff)
		n, err = h.messages.UnreadCount(c.Request.Context(), chatID, callerID(c))
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// MarkRead handles POST /chats/mark-read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	var req struct {
		ChatID        int64 `json:"chat_id" binding:"required"`
		UpToMessageID int64 `json:"up_to_message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.messages.MarkRead(c.Request.Context(), req.ChatID, callerID(c), req.UpToMessageID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"newly_read": n})
}
