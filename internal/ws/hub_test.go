package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hrchat-service/internal/models"
)

func newTestClient(userID int64) *client {
	return &client{
		send: make(chan []byte, sendBuffer),
		info: ConnInfo{ConnID: newConnID(), UserID: userID},
	}
}

func recvEvent(t *testing.T, c *client) models.Event {
	t.Helper()
	select {
	case payload := <-c.send:
		var ev models.Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	default:
		t.Fatal("expected a buffered event")
		return models.Event{}
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := newTestClient(1)

	hub.register(c, []int64{10, 11})
	require.Len(t, hub.rooms, 2)
	require.Len(t, hub.users, 1)

	hub.unregister(c)
	assert.Empty(t, hub.rooms)
	assert.Empty(t, hub.users)

	_, open := <-c.send
	assert.False(t, open, "send channel should be closed")

	// Second unregister is a no-op, not a double close.
	hub.unregister(c)
}

func TestBroadcastSkipsExcludedUser(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	sender := newTestClient(1)
	other := newTestClient(2)
	hub.register(sender, []int64{10})
	hub.register(other, []int64{10})

	hub.BroadcastToChat(10, models.Event{Type: models.EventMessageNew, ChatID: 10}, 1)

	ev := recvEvent(t, other)
	assert.Equal(t, models.EventMessageNew, ev.Type)
	assert.Equal(t, int64(10), ev.ChatID)

	select {
	case <-sender.send:
		t.Fatal("sender should not receive its own message")
	default:
	}
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	inRoom := newTestClient(1)
	outside := newTestClient(2)
	hub.register(inRoom, []int64{10})
	hub.register(outside, []int64{11})

	hub.BroadcastToChat(10, models.Event{Type: models.EventMessageNew, ChatID: 10}, 0)

	recvEvent(t, inRoom)
	select {
	case <-outside.send:
		t.Fatal("client outside the room should receive nothing")
	default:
	}
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	slow := &client{
		send: make(chan []byte), // zero buffer, never drained
		info: ConnInfo{ConnID: newConnID(), UserID: 1},
	}
	hub.register(slow, []int64{10})

	hub.BroadcastToChat(10, models.Event{Type: models.EventMessageNew, ChatID: 10}, 0)

	assert.Empty(t, hub.rooms)
	assert.True(t, slow.closed)
}

func TestSubscribePushesResubscribeEvent(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := newTestClient(2)
	hub.register(c, []int64{10})

	hub.Subscribe(2, 20)

	ev := recvEvent(t, c)
	assert.Equal(t, models.EventResubscribe, ev.Type)
	assert.Equal(t, int64(20), ev.ChatID)

	// Now in the room: broadcasts arrive.
	hub.BroadcastToChat(20, models.Event{Type: models.EventMessageNew, ChatID: 20}, 0)
	ev = recvEvent(t, c)
	assert.Equal(t, models.EventMessageNew, ev.Type)

	// Subscribing again is a no-op.
	hub.Subscribe(2, 20)
	select {
	case <-c.send:
		t.Fatal("duplicate subscribe should not push another event")
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := newTestClient(2)
	hub.register(c, []int64{10})

	hub.Unsubscribe(2, 10)

	hub.BroadcastToChat(10, models.Event{Type: models.EventMessageNew, ChatID: 10}, 0)
	select {
	case <-c.send:
		t.Fatal("unsubscribed client should receive nothing")
	default:
	}
}

func TestCloseChatTearsDownRoom(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	a := newTestClient(1)
	b := newTestClient(2)
	hub.register(a, []int64{10, 11})
	hub.register(b, []int64{10})

	hub.CloseChat(10)

	require.Len(t, hub.rooms, 1)
	hub.BroadcastToChat(10, models.Event{Type: models.EventMessageNew, ChatID: 10}, 0)
	select {
	case <-a.send:
		t.Fatal("closed chat should deliver nothing")
	default:
	}

	// The other room is unaffected.
	hub.BroadcastToChat(11, models.Event{Type: models.EventMessageNew, ChatID: 11}, 0)
	recvEvent(t, a)
}
