package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/middleware"
	"hrchat-service/internal/models"
	"hrchat-service/internal/observability"
	"hrchat-service/internal/repositories"
	"hrchat-service/internal/service"

	"go.uber.org/zap"
)

// TokenValidator verifies the opaque identity token from the handshake.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (int64, error)
}

// Presence records connection liveness.
type Presence interface {
	MarkOnline(ctx context.Context, userID int64) error
	MarkOffline(ctx context.Context, userID int64) error
}

// MessageSender is the slice of the message service reachable from a socket.
type MessageSender interface {
	Send(ctx context.Context, in service.SendInput) (models.Message, error)
	MarkRead(ctx context.Context, chatID, readerID, upToID int64) (int64, error)
}

// GatewayHandler authenticates websocket connections and maps each one into
// the rooms of the chats its user belongs to.
type GatewayHandler struct {
	hub      *Hub
	chats    repositories.ChatRepository
	auth     TokenValidator
	presence Presence
	messages MessageSender
	logger   *zap.SugaredLogger
}

// NewGatewayHandler constructs a GatewayHandler.
func NewGatewayHandler(hub *Hub, chats repositories.ChatRepository, auth TokenValidator, presence Presence, messages MessageSender, logger *zap.SugaredLogger) *GatewayHandler {
	return &GatewayHandler{
		hub:      hub,
		chats:    chats,
		auth:     auth,
		presence: presence,
		messages: messages,
		logger:   logger,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection after validating the identity token. A
// missing or invalid token rejects the connection outright: no room
// assignment, no events accepted.
func (h *GatewayHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("hrchat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, err := c.Cookie(middleware.SessionCookie)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity token"})
		return
	}
	userID, err := h.auth.ValidateToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	// Room assignment is computed at connect time; later membership changes
	// reach this connection through Hub.Subscribe/Unsubscribe.
	chatIDs, err := h.chats.ListChatIDsForUser(ctx, userID)
	if err != nil {
		c.JSON(chaterr.HTTPStatus(err), gin.H{"error": "failed to resolve chats"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	cl := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		info: info,
	}
	cl.onPong = func() {
		if err := h.presence.MarkOnline(context.Background(), userID); err != nil {
			h.logger.Debugw("presence refresh failed", "user_id", userID, "error", err)
		}
	}

	h.hub.register(cl, chatIDs)
	if err := h.presence.MarkOnline(ctx, userID); err != nil {
		h.logger.Warnw("presence mark online failed", "user_id", userID, "error", err)
	}
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.logger.Infow("websocket connected",
		"conn_id", info.ConnID, "user_id", userID, "rooms", len(chatIDs), "ip", info.IP)

	go cl.writePump()
	go cl.readPump(
		func(raw []byte) { h.handleInbound(cl, raw) },
		func() {
			h.hub.unregister(cl)
			if err := h.presence.MarkOffline(context.Background(), userID); err != nil {
				h.logger.Debugw("presence mark offline failed", "user_id", userID, "error", err)
			}
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			h.logger.Infow("websocket disconnected",
				"conn_id", info.ConnID, "user_id", userID,
				"duration_ms", time.Since(info.ConnectedAt).Milliseconds())
		},
	)
}

type inboundEvent struct {
	Type           string `json:"type"`
	ChatID         int64  `json:"chat_id"`
	Content        string `json:"content,omitempty"`
	AttachmentURL  string `json:"attachment_url,omitempty"`
	AttachmentType string `json:"attachment_type,omitempty"`
	UpToMessageID  int64  `json:"up_to_message_id,omitempty"`
}

// handleInbound routes state-changing socket events through the message
// service, so socket and REST traffic enforce the same invariants.
func (h *GatewayHandler) handleInbound(cl *client, raw []byte) {
	var ev inboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		h.sendError(cl, "malformed event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch ev.Type {
	case "message.send":
		_, err := h.messages.Send(ctx, service.SendInput{
			ChatID:         ev.ChatID,
			SenderID:       cl.info.UserID,
			Content:        ev.Content,
			AttachmentURL:  ev.AttachmentURL,
			AttachmentType: ev.AttachmentType,
		})
		if err != nil {
			h.replyError(cl, err)
			return
		}
		observability.IncWSEvent("message.send")

	case "message.read":
		if _, err := h.messages.MarkRead(ctx, ev.ChatID, cl.info.UserID, ev.UpToMessageID); err != nil {
			h.replyError(cl, err)
			return
		}
		observability.IncWSEvent("message.read.inbound")

	default:
		h.sendError(cl, "unsupported event type")
	}
}

func (h *GatewayHandler) replyError(cl *client, err error) {
	if chaterr.Client(err) {
		h.sendError(cl, err.Error())
		return
	}
	h.logger.Errorw("socket operation failed", "conn_id", cl.info.ConnID, "error", err)
	h.sendError(cl, "internal error")
}

func (h *GatewayHandler) sendError(cl *client, msg string) {
	h.hub.sendToClient(cl, models.Event{Type: models.EventError, Error: msg})
}
