package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/directory"
	"hrchat-service/internal/models"
	"hrchat-service/internal/repositories"
	"hrchat-service/internal/service"
	"hrchat-service/internal/telemetry"
)

// readRetryBackoff is the single retry delay for idempotent read paths when
// the store times out. State-changing operations are never auto-retried.
const readRetryBackoff = 100 * time.Millisecond

type messageService interface {
	Send(ctx context.Context, in service.SendInput) (models.Message, error)
	MarkRead(ctx context.Context, chatID, readerID, upToID int64) (int64, error)
	UnreadCount(ctx context.Context, chatID, userID int64) (int64, error)
}

type pickerDirectory interface {
	PickerUsers(ctx context.Context, callerID int64) ([]directory.PickerUser, error)
	Profiles(ctx context.Context, ids []int64) ([]directory.PickerUser, error)
}

// roomNotifier is the slice of the realtime hub the REST facade needs to
// keep already-connected clients from polling.
type roomNotifier interface {
	BroadcastToChat(chatID int64, event models.Event, excludeUserID int64)
	Subscribe(userID, chatID int64)
	Unsubscribe(userID, chatID int64)
	CloseChat(chatID int64)
}

// ChatHandler exposes chat and message CRUD over REST for clients not
// currently connected to the gateway.
type ChatHandler struct {
	chats     repositories.ChatRepository
	history   repositories.MessageRepository
	messages  messageService
	directory pickerDirectory
	rooms     roomNotifier
	audit     *telemetry.AuditEmitter
	logger    *zap.SugaredLogger
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(
	chats repositories.ChatRepository,
	history repositories.MessageRepository,
	messages messageService,
	dir pickerDirectory,
	rooms roomNotifier,
	audit *telemetry.AuditEmitter,
	logger *zap.SugaredLogger,
) *ChatHandler {
	return &ChatHandler{
		chats:     chats,
		history:   history,
		messages:  messages,
		directory: dir,
		rooms:     rooms,
		audit:     audit,
		logger:    logger,
	}
}

// ListChats handles GET /chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := callerID(c)

	chats, err := h.chats.ListChatsForUser(c.Request.Context(), userID)
	if err != nil && chaterr.Retryable(err) {
		time.Sleep(readRetryBackoff)
		chats, err = h.chats.ListChatsForUser(c.Request.Context(), userID)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if chats == nil {
		chats = []models.ChatSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// ListDirectoryUsers handles GET /chats/users, the creation-picker listing.
func (h *ChatHandler) ListDirectoryUsers(c *gin.Context) {
	users, err := h.directory.PickerUsers(c.Request.Context(), callerID(c))
	if err != nil {
		h.logger.Warnw("directory lookup failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load directory"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// StartDirectChat handles POST /chats/dm.
func (h *ChatHandler) StartDirectChat(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := callerID(c)
	chat, err := h.chats.GetOrCreateDirectChat(c.Request.Context(), userID, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.rooms.Subscribe(userID, chat.ID)
	h.rooms.Subscribe(req.UserID, chat.ID)
	h.emitAudit(c, "INFO", "direct chat opened")
	c.JSON(http.StatusOK, chat)
}

// CreateChat handles POST /chats (group, space or announcement).
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		Kind        string  `json:"kind" binding:"required"`
		Name        string  `json:"name"`
		Description string  `json:"description"`
		MemberIDs   []int64 `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := callerID(c)
	chat, err := h.chats.CreateChat(c.Request.Context(), userID, models.ChatKind(req.Kind), req.Name, req.Description, req.MemberIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.rooms.Subscribe(userID, chat.ID)
	for _, id := range req.MemberIDs {
		h.rooms.Subscribe(id, chat.ID)
	}
	h.emitAudit(c, "INFO", "chat created")
	c.JSON(http.StatusCreated, chat)
}
