package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hrchat-service/internal/mocks"
	"hrchat-service/internal/models"
)

func TestAuditEmitterEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "chat.audit", "hrchat", "staging", zap.NewNop().Sugar())

	var published AuditEnvelope
	publisher.On("Publish", mock.Anything, "chat.audit", mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(2).(AuditEnvelope)
		}).
		Return(nil).Once()

	userID := int64(7)
	emitter.Emit(context.Background(), "info", "chat 5 created", "req-123", &userID)

	publisher.AssertExpectations(t)
	assert.Equal(t, 1, published.SchemaVersion)
	assert.Equal(t, "audit_log", published.EventType)
	assert.Equal(t, "hrchat", published.Service)
	assert.Equal(t, "staging", published.Environment)
	assert.Equal(t, "req-123", published.RequestID)
	require.NotNil(t, published.UserID)
	assert.Equal(t, int64(7), *published.UserID)
	assert.Equal(t, "info", published.Payload.Level)
	assert.Equal(t, "chat 5 created", published.Payload.Text)
	assert.NotEmpty(t, published.OccurredAt)
}

func TestAuditEmitterSwallowsPublishError(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "chat.audit", "hrchat", "staging", zap.NewNop().Sugar())

	publisher.On("Publish", mock.Anything, "chat.audit", mock.Anything).Return(assert.AnError).Once()

	emitter.Emit(context.Background(), "warn", "member removal", "req-456", nil)

	publisher.AssertExpectations(t)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "info", "ignored", "req-789", nil)

	// A configured-off publisher is also a no-op.
	enabled := NewAuditEmitter(nil, "chat.audit", "hrchat", "staging", zap.NewNop().Sugar())
	enabled.Emit(context.Background(), "info", "ignored", "req-789", nil)
}

func TestNotifierPayload(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	notifier := NewNotifier(publisher, "chat.notify", "hrchat", zap.NewNop().Sugar())

	var published ChatNotification
	publisher.On("Publish", mock.Anything, "chat.notify", mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(2).(ChatNotification)
		}).
		Return(nil).Once()

	name := "ops sync"
	sender := int64(3)
	content := "status update"
	chat := models.Chat{ID: 5, Kind: models.ChatKindGroup, Name: &name}
	msg := models.Message{ID: 42, ChatID: 5, SenderID: &sender, Content: &content}

	notifier.NewMessage(context.Background(), chat, msg, []int64{1, 2})

	publisher.AssertExpectations(t)
	assert.Equal(t, "hrchat", published.Service)
	assert.Equal(t, int64(5), published.ChatID)
	assert.Equal(t, "group", published.ChatKind)
	assert.Equal(t, "ops sync", published.ChatName)
	assert.Equal(t, int64(42), published.MessageID)
	require.NotNil(t, published.SenderID)
	assert.Equal(t, int64(3), *published.SenderID)
	assert.Equal(t, []int64{1, 2}, published.Recipients)
	assert.Equal(t, "status update", published.Preview)
	assert.NotEmpty(t, published.OccurredAt)
}

func TestNotifierTruncatesPreview(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	notifier := NewNotifier(publisher, "chat.notify", "hrchat", zap.NewNop().Sugar())

	var published ChatNotification
	publisher.On("Publish", mock.Anything, "chat.notify", mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(2).(ChatNotification)
		}).
		Return(nil).Once()

	content := strings.Repeat("á", previewLimit+20)
	sender := int64(3)
	msg := models.Message{ID: 42, ChatID: 5, SenderID: &sender, Content: &content}

	notifier.NewMessage(context.Background(), models.Chat{ID: 5, Kind: models.ChatKindDirect}, msg, []int64{1})

	publisher.AssertExpectations(t)
	assert.Equal(t, previewLimit, len([]rune(published.Preview)))
	assert.Equal(t, strings.Repeat("á", previewLimit), published.Preview)
}

func TestNotifierSkipsEmptyRecipients(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	notifier := NewNotifier(publisher, "chat.notify", "hrchat", zap.NewNop().Sugar())

	notifier.NewMessage(context.Background(), models.Chat{ID: 5}, models.Message{ID: 42}, nil)

	publisher.AssertNotCalled(t, "Publish")
}
