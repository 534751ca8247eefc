package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"hrchat-service/internal/directory"
	"hrchat-service/internal/grpcclient"
	"hrchat-service/internal/models"
	"hrchat-service/internal/repositories"
	"hrchat-service/internal/service"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID int64) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) ListChatIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *ChatRepositoryMock) GetOrCreateDirectChat(ctx context.Context, userID, otherID int64) (models.Chat, error) {
	args := m.Called(ctx, userID, otherID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, creatorID int64, kind models.ChatKind, name, description string, memberIDs []int64) (models.Chat, error) {
	args := m.Called(ctx, creatorID, kind, name, description, memberIDs)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListMembers(ctx context.Context, chatID int64) ([]models.Membership, error) {
	args := m.Called(ctx, chatID)
	var members []models.Membership
	if val := args.Get(0); val != nil {
		members = val.([]models.Membership)
	}
	return members, args.Error(1)
}

func (m *ChatRepositoryMock) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) AddMembers(ctx context.Context, chatID, actorID int64, newIDs []int64) ([]models.Membership, error) {
	args := m.Called(ctx, chatID, actorID, newIDs)
	var members []models.Membership
	if val := args.Get(0); val != nil {
		members = val.([]models.Membership)
	}
	return members, args.Error(1)
}

func (m *ChatRepositoryMock) RemoveMember(ctx context.Context, chatID, actorID, targetID int64) ([]models.Membership, error) {
	args := m.Called(ctx, chatID, actorID, targetID)
	var members []models.Membership
	if val := args.Get(0); val != nil {
		members = val.([]models.Membership)
	}
	return members, args.Error(1)
}

func (m *ChatRepositoryMock) MakeAdmin(ctx context.Context, chatID, actorID, targetID int64) ([]models.Membership, error) {
	args := m.Called(ctx, chatID, actorID, targetID)
	var members []models.Membership
	if val := args.Get(0); val != nil {
		members = val.([]models.Membership)
	}
	return members, args.Error(1)
}

func (m *ChatRepositoryMock) LeaveChat(ctx context.Context, chatID, actorID int64) (bool, []models.Membership, error) {
	args := m.Called(ctx, chatID, actorID)
	var members []models.Membership
	if val := args.Get(1); val != nil {
		members = val.([]models.Membership)
	}
	return args.Bool(0), members, args.Error(2)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, in repositories.NewMessage) (models.Message, error) {
	args := m.Called(ctx, in)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID, callerID, beforeID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, callerID, beforeID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chat models.Chat, readerID, upToID int64) (int64, error) {
	args := m.Called(ctx, chat, readerID, upToID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, chat models.Chat, userID int64) (int64, error) {
	args := m.Called(ctx, chat, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) Send(ctx context.Context, in service.SendInput) (models.Message, error) {
	args := m.Called(ctx, in)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) MarkRead(ctx context.Context, chatID, readerID, upToID int64) (int64, error) {
	args := m.Called(ctx, chatID, readerID, upToID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageServiceMock) UnreadCount(ctx context.Context, chatID, userID int64) (int64, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Get(0).(int64), args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) PickerUsers(ctx context.Context, callerID int64) ([]directory.PickerUser, error) {
	args := m.Called(ctx, callerID)
	var users []directory.PickerUser
	if val := args.Get(0); val != nil {
		users = val.([]directory.PickerUser)
	}
	return users, args.Error(1)
}

func (m *DirectoryMock) Profiles(ctx context.Context, ids []int64) ([]directory.PickerUser, error) {
	args := m.Called(ctx, ids)
	var users []directory.PickerUser
	if val := args.Get(0); val != nil {
		users = val.([]directory.PickerUser)
	}
	return users, args.Error(1)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) ListUsers(ctx context.Context) ([]grpcclient.User, error) {
	args := m.Called(ctx)
	var users []grpcclient.User
	if val := args.Get(0); val != nil {
		users = val.([]grpcclient.User)
	}
	return users, args.Error(1)
}

func (m *UserDirectoryMock) BulkUsers(ctx context.Context, ids []int64) ([]grpcclient.User, error) {
	args := m.Called(ctx, ids)
	var users []grpcclient.User
	if val := args.Get(0); val != nil {
		users = val.([]grpcclient.User)
	}
	return users, args.Error(1)
}

type PresenceCheckerMock struct {
	mock.Mock
}

func (m *PresenceCheckerMock) Online(ctx context.Context, userIDs []int64) (map[int64]bool, error) {
	args := m.Called(ctx, userIDs)
	var online map[int64]bool
	if val := args.Get(0); val != nil {
		online = val.(map[int64]bool)
	}
	return online, args.Error(1)
}

type RoomsMock struct {
	mock.Mock
}

func (m *RoomsMock) BroadcastToChat(chatID int64, event models.Event, excludeUserID int64) {
	m.Called(chatID, event, excludeUserID)
}

func (m *RoomsMock) Subscribe(userID, chatID int64) {
	m.Called(userID, chatID)
}

func (m *RoomsMock) Unsubscribe(userID, chatID int64) {
	m.Called(userID, chatID)
}

func (m *RoomsMock) CloseChat(chatID int64) {
	m.Called(chatID)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NewMessage(ctx context.Context, chat models.Chat, msg models.Message, recipients []int64) {
	m.Called(ctx, chat, msg, recipients)
}

type AuthClientMock struct {
	mock.Mock
}

func (m *AuthClientMock) ValidateToken(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}
