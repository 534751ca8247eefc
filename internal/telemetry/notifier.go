package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hrchat-service/internal/models"
)

// Notifier hands new-message events to the external email/notification
// dispatcher so offline members get an async alert. Invoked after commit,
// fire-and-forget.
type Notifier struct {
	publisher  Publisher
	routingKey string
	service    string
	logger     *zap.SugaredLogger
}

// ChatNotification is the payload the dispatcher turns into emails.
type ChatNotification struct {
	Service    string   `json:"service"`
	ChatID     int64    `json:"chat_id"`
	ChatKind   string   `json:"chat_kind"`
	ChatName   string   `json:"chat_name,omitempty"`
	MessageID  int64    `json:"message_id"`
	SenderID   *int64   `json:"sender_id,omitempty"`
	Recipients []int64  `json:"recipients"`
	Preview    string   `json:"preview,omitempty"`
	OccurredAt string   `json:"occurred_at"`
}

// NewNotifier constructs a Notifier.
func NewNotifier(publisher Publisher, routingKey, service string, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{publisher: publisher, routingKey: routingKey, service: service, logger: logger}
}

// NewMessage notifies the dispatcher about a freshly persisted message.
func (n *Notifier) NewMessage(ctx context.Context, chat models.Chat, msg models.Message, recipients []int64) {
	if n == nil || n.publisher == nil || len(recipients) == 0 {
		return
	}

	event := ChatNotification{
		Service:    n.service,
		ChatID:     chat.ID,
		ChatKind:   string(chat.Kind),
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		Recipients: recipients,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if chat.Name != nil {
		event.ChatName = *chat.Name
	}
	if msg.Content != nil {
		event.Preview = preview(*msg.Content)
	}

	if err := n.publisher.Publish(ctx, n.routingKey, event); err != nil {
		n.logger.Warnw("notification publish failed", "chat_id", chat.ID, "error", err)
	}
}

const previewLimit = 140

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit])
}
