package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	SendFunc func(ctx context.Context, message *messaging.Message) (string, error)
	sent     []*messaging.Message
}

func (m *mockSender) Send(ctx context.Context, message *messaging.Message) (string, error) {
	m.sent = append(m.sent, message)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, message)
	}
	return "projects/p/messages/1", nil
}

func TestMessenger_SendToTopic(t *testing.T) {
	s := &mockSender{}
	m := &Messenger{sender: s}

	err := m.SendToTopic(context.Background(), "low-stock", "Low stock", "Bolts: 2 left", map[string]string{"itemId": "abc"})

	require.NoError(t, err)
	require.Len(t, s.sent, 1)
	msg := s.sent[0]
	assert.Equal(t, "low-stock", msg.Topic)
	assert.Empty(t, msg.Token)
	assert.Equal(t, "Low stock", msg.Notification.Title)
	assert.Equal(t, "Bolts: 2 left", msg.Notification.Body)
	assert.Equal(t, "abc", msg.Data["itemId"])
}

func TestMessenger_SendToTopic_EmptyTopic(t *testing.T) {
	s := &mockSender{}
	m := &Messenger{sender: s}

	err := m.SendToTopic(context.Background(), "", "t", "b", nil)

	assert.ErrorIs(t, err, ErrEmptyTopic)
	assert.Empty(t, s.sent)
}

func TestMessenger_SendToTopic_WrapsErrors(t *testing.T) {
	boom := errors.New("unavailable")
	m := &Messenger{sender: &mockSender{SendFunc: func(context.Context, *messaging.Message) (string, error) {
		return "", boom
	}}}

	err := m.SendToTopic(context.Background(), "low-stock", "t", "b", nil)

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "failed to send FCM message")
}
