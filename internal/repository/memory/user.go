package memory

import (
	"context"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository"
)

type userRepository struct{ v view }

func (r *userRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	var out *domain.User
	err := r.v.read(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

type notificationRepository struct{ v view }

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.v.write(func(d *dataset) error {
		n.ID = d.nextID()
		n.CreatedAt = time.Now()
		d.notifications = append(d.notifications, *n)
		return nil
	})
}

func (r *notificationRepository) List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	var (
		out   []domain.Notification
		total int32
	)
	err := r.v.read(func(d *dataset) error {
		var mine []domain.Notification
		for i := len(d.notifications) - 1; i >= 0; i-- {
			if d.notifications[i].UserID == userID {
				mine = append(mine, d.notifications[i])
			}
		}
		total = int32(len(mine))
		if offset >= total {
			return nil
		}
		end := total
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		out = mine[offset:end]
		return nil
	})
	return out, total, err
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, userID int32) error {
	return r.v.write(func(d *dataset) error {
		for i := range d.notifications {
			if d.notifications[i].ID == id && d.notifications[i].UserID == userID {
				d.notifications[i].IsRead = true
				return nil
			}
		}
		return repository.ErrNotFound
	})
}
