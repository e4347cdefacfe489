package notification

import (
	"context"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository"
)

// InAppChannel stores the notification so the user sees it in the app inbox.
type InAppChannel struct {
	repo repository.NotificationRepository
}

func NewInAppChannel(repo repository.NotificationRepository) *InAppChannel {
	return &InAppChannel{repo: repo}
}

func (c *InAppChannel) Name() string { return "inapp" }

func (c *InAppChannel) Send(ctx context.Context, n domain.Notification) error {
	return c.repo.Create(ctx, &n)
}
