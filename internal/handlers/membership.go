package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/models"
)

// memberProfile is one entry of the member listing: the membership row merged
// with the directory identity and presence.
type memberProfile struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Online      bool      `json:"online"`
	IsAdmin     bool      `json:"is_admin"`
	JoinedAt    time.Time `json:"joined_at"`
}

// ListChatMembers handles GET /chats/:chat_id/members.
func (h *ChatHandler) ListChatMembers(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	isMember, err := h.chats.IsMember(c.Request.Context(), chatID, callerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !isMember {
		h.respondError(c, chaterr.ErrNotAMember)
		return
	}

	members, err := h.chats.ListMembers(c.Request.Context(), chatID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	profiles, err := h.directory.Profiles(c.Request.Context(), ids)
	if err != nil {
		h.logger.Warnw("directory lookup failed", "chat_id", chatID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load directory"})
		return
	}

	byID := make(map[int64]memberProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = memberProfile{UserID: p.ID, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL, Online: p.Online}
	}

	out := make([]memberProfile, 0, len(members))
	for _, m := range members {
		p := byID[m.UserID]
		p.UserID = m.UserID
		p.IsAdmin = m.IsAdmin
		p.JoinedAt = m.JoinedAt
		out = append(out, p)
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

// AddMembers handles POST /chats/:chat_id/add-members.
func (h *ChatHandler) AddMembers(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	var req struct {
		UserIDs []int64 `json:"user_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := callerID(c)
	members, err := h.chats.AddMembers(c.Request.Context(), chatID, actorID, req.UserIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.rooms.BroadcastToChat(chatID, models.Event{
		Type:    models.EventMemberAdded,
		ChatID:  chatID,
		Members: members,
	}, actorID)
	for _, id := range req.UserIDs {
		h.rooms.Subscribe(id, chatID)
	}
	h.emitAudit(c, "INFO", "members added to chat")
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// MakeAdmin handles POST /chats/:chat_id/make-admin.
func (h *ChatHandler) MakeAdmin(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := callerID(c)
	members, err := h.chats.MakeAdmin(c.Request.Context(), chatID, actorID, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.rooms.BroadcastToChat(chatID, models.Event{
		Type:    models.EventMemberPromoted,
		ChatID:  chatID,
		UserID:  req.UserID,
		Members: members,
	}, actorID)
	h.emitAudit(c, "INFO", "chat admin granted")
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// RemoveMember handles POST /chats/:chat_id/remove-member.
func (h *ChatHandler) RemoveMember(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := callerID(c)
	members, err := h.chats.RemoveMember(c.Request.Context(), chatID, actorID, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// The removed user gets the event too, so the broadcast happens before
	// their connections leave the room.
	h.rooms.BroadcastToChat(chatID, models.Event{
		Type:    models.EventMemberRemoved,
		ChatID:  chatID,
		UserID:  req.UserID,
		Members: members,
	}, 0)
	h.rooms.Unsubscribe(req.UserID, chatID)
	h.emitAudit(c, "INFO", "member removed from chat")
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// Leave handles POST /chats/:chat_id/leave.
func (h *ChatHandler) Leave(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	actorID := callerID(c)
	deleted, members, err := h.chats.LeaveChat(c.Request.Context(), chatID, actorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.rooms.BroadcastToChat(chatID, models.Event{
		Type:    models.EventChatLeft,
		ChatID:  chatID,
		UserID:  actorID,
		Members: members,
	}, actorID)
	if deleted {
		h.rooms.CloseChat(chatID)
	} else {
		h.rooms.Unsubscribe(actorID, chatID)
	}
	h.emitAudit(c, "INFO", "left chat")
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
