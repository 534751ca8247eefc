// Package service orchestrates message creation, read-receipt accounting and
// unread computation. Both transports (REST and the socket) funnel their
// state-changing message operations through here, so the same invariants are
// enforced regardless of how the request arrived.
package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/models"
	"hrchat-service/internal/repositories"
)

// Gateway is the slice of the realtime hub the service needs: ordered event
// delivery to a chat's room, excluding at most one user.
type Gateway interface {
	BroadcastToChat(chatID int64, event models.Event, excludeUserID int64)
}

// Notifier hands successful sends to the offline-notification side channel.
type Notifier interface {
	NewMessage(ctx context.Context, chat models.Chat, msg models.Message, recipients []int64)
}

// MessageService coordinates the message lifecycle.
type MessageService struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	gateway  Gateway
	notifier Notifier
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	chatLocks map[int64]*sync.Mutex
}

// NewMessageService constructs a MessageService.
func NewMessageService(chats repositories.ChatRepository, messages repositories.MessageRepository, gateway Gateway, notifier Notifier, logger *zap.SugaredLogger) *MessageService {
	return &MessageService{
		chats:     chats,
		messages:  messages,
		gateway:   gateway,
		notifier:  notifier,
		logger:    logger,
		chatLocks: make(map[int64]*sync.Mutex),
	}
}

// chatLock returns the mutex serializing persist-then-broadcast for one chat,
// so room delivery follows the store's insertion order.
func (s *MessageService) chatLock(chatID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.chatLocks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.chatLocks[chatID] = l
	}
	return l
}

// SendInput carries one send request. Content may be empty only when an
// attachment is present.
type SendInput struct {
	ChatID         int64
	SenderID       int64
	Content        string
	AttachmentURL  string
	AttachmentType string
}

// Send persists a message and fans it out to every other currently connected
// member. The sender already holds the return value, so its own connections
// are skipped.
func (s *MessageService) Send(ctx context.Context, in SendInput) (models.Message, error) {
	if in.Content == "" && in.AttachmentURL == "" {
		return models.Message{}, fmt.Errorf("%w: message requires content or an attachment", chaterr.ErrInvalidChatKind)
	}

	chat, err := s.chats.GetChat(ctx, in.ChatID)
	if err != nil {
		return models.Message{}, err
	}
	members, err := s.chats.ListMembers(ctx, in.ChatID)
	if err != nil {
		return models.Message{}, err
	}

	var sender *models.Membership
	for i := range members {
		if members[i].UserID == in.SenderID {
			sender = &members[i]
			break
		}
	}
	if sender == nil {
		return models.Message{}, chaterr.ErrNotAMember
	}
	if chat.Kind == models.ChatKindAnnouncement && !sender.IsAdmin {
		return models.Message{}, chaterr.ErrReadOnlyChat
	}

	newMsg := repositories.NewMessage{
		ChatID:     in.ChatID,
		SenderID:   &in.SenderID,
		SenderType: models.SenderUser,
	}
	if in.Content != "" {
		newMsg.Content = &in.Content
	}
	if in.AttachmentURL != "" {
		newMsg.AttachmentURL = &in.AttachmentURL
	}
	if in.AttachmentType != "" {
		newMsg.AttachmentType = &in.AttachmentType
	}

	// Insert and fan-out happen under the chat's lock: a concurrent send
	// whose insert serializes later must also broadcast later.
	lock := s.chatLock(in.ChatID)
	lock.Lock()
	msg, err := s.messages.CreateMessage(ctx, newMsg)
	if err != nil {
		lock.Unlock()
		return models.Message{}, err
	}

	s.gateway.BroadcastToChat(chat.ID, models.Event{
		Type:    models.EventMessageNew,
		ChatID:  chat.ID,
		Message: &msg,
	}, in.SenderID)
	lock.Unlock()

	recipients := make([]int64, 0, len(members)-1)
	for _, m := range members {
		if m.UserID != in.SenderID {
			recipients = append(recipients, m.UserID)
		}
	}
	s.notifier.NewMessage(ctx, chat, msg, recipients)

	return msg, nil
}

// MarkRead records the reader's acknowledgment up to the given message and
// tells other members who has read. Returns the count of newly-marked
// messages; marking twice is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, chatID, readerID, upToID int64) (int64, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	isMember, err := s.chats.IsMember(ctx, chatID, readerID)
	if err != nil {
		return 0, err
	}
	if !isMember {
		return 0, chaterr.ErrNotAMember
	}

	// Same chat lock as Send: the receipt may not overtake the message.new
	// of the message it acknowledges.
	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	n, err := s.messages.MarkRead(ctx, chat, readerID, upToID)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.gateway.BroadcastToChat(chatID, models.Event{
			Type:          models.EventMessageRead,
			ChatID:        chatID,
			UserID:        readerID,
			UpToMessageID: upToID,
		}, readerID)
	}
	return n, nil
}

// UnreadCount counts the user's unread messages in the chat.
func (s *MessageService) UnreadCount(ctx context.Context, chatID, userID int64) (int64, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	isMember, err := s.chats.IsMember(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	if !isMember {
		return 0, chaterr.ErrNotAMember
	}
	return s.messages.UnreadCount(ctx, chat, userID)
}
