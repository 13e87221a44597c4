package firebase

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// ErrEmptyTopic is returned when a message has no destination topic.
var ErrEmptyTopic = errors.New("topic is required")

// sender is the part of *messaging.Client the Messenger uses.
type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Messenger implements stockalert.Notifier using Firebase Cloud Messaging topics
type Messenger struct {
	sender sender
}

// SendToTopic sends a notification to every device subscribed to topic.
func (m *Messenger) SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	msg := &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := m.sender.Send(ctx, msg); err != nil {
		if messaging.IsInvalidArgument(err) {
			return fmt.Errorf("invalid FCM topic message for %q: %w", topic, err)
		}
		return fmt.Errorf("failed to send FCM message: %w", err)
	}
	return nil
}
