package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/mocks"
	"hrchat-service/internal/models"
	"hrchat-service/internal/repositories"
	"hrchat-service/internal/service"
)

func newTestService(chats *mocks.ChatRepositoryMock, msgs *mocks.MessageRepositoryMock, rooms *mocks.RoomsMock, notifier *mocks.NotifierMock) *service.MessageService {
	return service.NewMessageService(chats, msgs, rooms, notifier, zap.NewNop().Sugar())
}

func TestSendFansOutToEveryoneButSender(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	rooms := new(mocks.RoomsMock)
	notifier := new(mocks.NotifierMock)
	svc := newTestService(chats, msgs, rooms, notifier)

	chat := models.Chat{ID: 5, Kind: models.ChatKindGroup}
	members := []models.Membership{
		{ChatID: 5, UserID: 1, IsAdmin: true},
		{ChatID: 5, UserID: 2},
		{ChatID: 5, UserID: 3},
	}
	content := "hello"
	stored := models.Message{ID: 100, ChatID: 5, Content: &content}

	chats.On("GetChat", mock.Anything, int64(5)).Return(chat, nil).Once()
	chats.On("ListMembers", mock.Anything, int64(5)).Return(members, nil).Once()
	msgs.On("CreateMessage", mock.Anything, mock.MatchedBy(func(in repositories.NewMessage) bool {
		return in.ChatID == 5 && in.Content != nil && *in.Content == "hello"
	})).Return(stored, nil).Once()
	rooms.On("BroadcastToChat", int64(5), mock.MatchedBy(func(ev models.Event) bool {
		return ev.Type == models.EventMessageNew && ev.Message != nil && ev.Message.ID == 100
	}), int64(1)).Once()
	notifier.On("NewMessage", mock.Anything, chat, stored, []int64{2, 3}).Once()

	got, err := svc.Send(context.Background(), service.SendInput{ChatID: 5, SenderID: 1, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.ID)

	chats.AssertExpectations(t)
	msgs.AssertExpectations(t)
	rooms.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSendRejectsEmptyBody(t *testing.T) {
	svc := newTestService(new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.RoomsMock), new(mocks.NotifierMock))

	_, err := svc.Send(context.Background(), service.SendInput{ChatID: 5, SenderID: 1})
	require.ErrorIs(t, err, chaterr.ErrInvalidChatKind)
}

func TestSendNonMemberRejected(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	svc := newTestService(chats, new(mocks.MessageRepositoryMock), new(mocks.RoomsMock), new(mocks.NotifierMock))

	chats.On("GetChat", mock.Anything, int64(5)).Return(models.Chat{ID: 5, Kind: models.ChatKindGroup}, nil).Once()
	chats.On("ListMembers", mock.Anything, int64(5)).Return([]models.Membership{{ChatID: 5, UserID: 2}}, nil).Once()

	_, err := svc.Send(context.Background(), service.SendInput{ChatID: 5, SenderID: 1, Content: "hi"})
	require.ErrorIs(t, err, chaterr.ErrNotAMember)
	chats.AssertExpectations(t)
}

func TestSendAnnouncementNonAdminReadOnly(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	svc := newTestService(chats, new(mocks.MessageRepositoryMock), new(mocks.RoomsMock), new(mocks.NotifierMock))

	chats.On("GetChat", mock.Anything, int64(5)).Return(models.Chat{ID: 5, Kind: models.ChatKindAnnouncement}, nil).Once()
	chats.On("ListMembers", mock.Anything, int64(5)).Return([]models.Membership{
		{ChatID: 5, UserID: 1},
		{ChatID: 5, UserID: 2, IsAdmin: true},
	}, nil).Once()

	_, err := svc.Send(context.Background(), service.SendInput{ChatID: 5, SenderID: 1, Content: "hi"})
	require.ErrorIs(t, err, chaterr.ErrReadOnlyChat)
	chats.AssertExpectations(t)
}

func TestSendAnnouncementAdminAllowed(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	rooms := new(mocks.RoomsMock)
	notifier := new(mocks.NotifierMock)
	svc := newTestService(chats, msgs, rooms, notifier)

	chat := models.Chat{ID: 5, Kind: models.ChatKindAnnouncement}
	chats.On("GetChat", mock.Anything, int64(5)).Return(chat, nil).Once()
	chats.On("ListMembers", mock.Anything, int64(5)).Return([]models.Membership{
		{ChatID: 5, UserID: 1, IsAdmin: true},
		{ChatID: 5, UserID: 2},
	}, nil).Once()
	msgs.On("CreateMessage", mock.Anything, mock.Anything).Return(models.Message{ID: 9, ChatID: 5}, nil).Once()
	rooms.On("BroadcastToChat", int64(5), mock.Anything, int64(1)).Once()
	notifier.On("NewMessage", mock.Anything, chat, mock.Anything, []int64{2}).Once()

	_, err := svc.Send(context.Background(), service.SendInput{ChatID: 5, SenderID: 1, Content: "town hall friday"})
	require.NoError(t, err)
	chats.AssertExpectations(t)
	msgs.AssertExpectations(t)
}

func TestMarkReadBroadcastsOnlyWhenNewlyMarked(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	rooms := new(mocks.RoomsMock)
	svc := newTestService(chats, msgs, rooms, new(mocks.NotifierMock))

	chat := models.Chat{ID: 5, Kind: models.ChatKindGroup}
	chats.On("GetChat", mock.Anything, int64(5)).Return(chat, nil).Twice()
	chats.On("IsMember", mock.Anything, int64(5), int64(2)).Return(true, nil).Twice()

	// First pass marks three messages and announces the receipt.
	msgs.On("MarkRead", mock.Anything, chat, int64(2), int64(42)).Return(int64(3), nil).Once()
	rooms.On("BroadcastToChat", int64(5), mock.MatchedBy(func(ev models.Event) bool {
		return ev.Type == models.EventMessageRead && ev.UserID == 2 && ev.UpToMessageID == 42
	}), int64(2)).Once()

	n, err := svc.MarkRead(context.Background(), 5, 2, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// Second pass is idempotent: nothing new, nothing broadcast.
	msgs.On("MarkRead", mock.Anything, chat, int64(2), int64(42)).Return(int64(0), nil).Once()

	n, err = svc.MarkRead(context.Background(), 5, 2, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	chats.AssertExpectations(t)
	msgs.AssertExpectations(t)
	rooms.AssertExpectations(t)
}

// roomRecorder captures the order message.new events reach the room.
type roomRecorder struct {
	mu  sync.Mutex
	ids []int64
}

func (r *roomRecorder) BroadcastToChat(chatID int64, ev models.Event, excludeUserID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Type == models.EventMessageNew && ev.Message != nil {
		r.ids = append(r.ids, ev.Message.ID)
	}
}

func TestSendDeliveryFollowsInsertionOrder(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	recorder := &roomRecorder{}
	svc := service.NewMessageService(chats, msgs, recorder, notifier, zap.NewNop().Sugar())

	chat := models.Chat{ID: 5, Kind: models.ChatKindGroup}
	members := []models.Membership{
		{ChatID: 5, UserID: 1, IsAdmin: true},
		{ChatID: 5, UserID: 2},
	}
	chats.On("GetChat", mock.Anything, int64(5)).Return(chat, nil).Twice()
	chats.On("ListMembers", mock.Anything, int64(5)).Return(members, nil).Twice()
	notifier.On("NewMessage", mock.Anything, chat, mock.Anything, mock.Anything).Twice()

	// The first insert commits first (it is the first call to reach the
	// store) but its response is held back until the second sender has had
	// every chance to run ahead.
	entered := make(chan struct{})
	release := make(chan struct{})
	msgs.On("CreateMessage", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(models.Message{ID: 1, ChatID: 5}, nil).Once()
	msgs.On("CreateMessage", mock.Anything, mock.Anything).Return(models.Message{ID: 2, ChatID: 5}, nil).Once()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Send(context.Background(), service.SendInput{ChatID: 5, SenderID: 1, Content: "first"})
		assert.NoError(t, err)
	}()
	<-entered
	go func() {
		defer wg.Done()
		_, err := svc.Send(context.Background(), service.SendInput{ChatID: 5, SenderID: 2, Content: "second"})
		assert.NoError(t, err)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, []int64{1, 2}, recorder.ids, "room must receive message.new in store insertion order")
	msgs.AssertExpectations(t)
}

func TestMarkReadNonMemberRejected(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	svc := newTestService(chats, new(mocks.MessageRepositoryMock), new(mocks.RoomsMock), new(mocks.NotifierMock))

	chats.On("GetChat", mock.Anything, int64(5)).Return(models.Chat{ID: 5, Kind: models.ChatKindGroup}, nil).Once()
	chats.On("IsMember", mock.Anything, int64(5), int64(9)).Return(false, nil).Once()

	_, err := svc.MarkRead(context.Background(), 5, 9, 42)
	require.ErrorIs(t, err, chaterr.ErrNotAMember)
	chats.AssertExpectations(t)
}

func TestUnreadCountMembersOnly(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	svc := newTestService(chats, msgs, new(mocks.RoomsMock), new(mocks.NotifierMock))

	chat := models.Chat{ID: 5, Kind: models.ChatKindGroup}
	chats.On("GetChat", mock.Anything, int64(5)).Return(chat, nil).Twice()
	chats.On("IsMember", mock.Anything, int64(5), int64(2)).Return(true, nil).Once()
	msgs.On("UnreadCount", mock.Anything, chat, int64(2)).Return(int64(4), nil).Once()

	n, err := svc.UnreadCount(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	chats.On("IsMember", mock.Anything, int64(5), int64(9)).Return(false, nil).Once()
	_, err = svc.UnreadCount(context.Background(), 5, 9)
	require.ErrorIs(t, err, chaterr.ErrNotAMember)

	chats.AssertExpectations(t)
	msgs.AssertExpectations(t)
}
