package notification

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"onrent-backend/internal/domain"
)

// messenger is the part of *messaging.Client the push channel uses.
type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushChannel publishes to the FCM topic each user's devices subscribe to.
type PushChannel struct {
	client messenger
}

// NewPushChannel initializes a Firebase app from a service account file.
func NewPushChannel(ctx context.Context, credentialsFile string) (*PushChannel, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &PushChannel{client: client}, nil
}

func (c *PushChannel) Name() string { return "fcm" }

// UserTopic is the FCM topic for one user's devices.
func UserTopic(userID int32) string {
	return fmt.Sprintf("user-%d", userID)
}

func (c *PushChannel) Send(ctx context.Context, n domain.Notification) error {
	data := map[string]string{"event": string(n.Event)}
	for k, v := range n.Attributes {
		data[k] = v
	}
	msg := &messaging.Message{
		Topic: UserTopic(n.UserID),
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
	if _, err := c.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send to %s: %w", msg.Topic, err)
	}
	return nil
}
