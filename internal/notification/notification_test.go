package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository/memory"
)

type MockChannel struct {
	mock.Mock
	mu   sync.Mutex
	sent []domain.Notification
}

func (m *MockChannel) Name() string { return "mock" }

func (m *MockChannel) Send(ctx context.Context, n domain.Notification) error {
	args := m.Called(n.UserID)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.sent = append(m.sent, n)
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockChannel) delivered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestQueue_DeliversToEveryChannel(t *testing.T) {
	a, b := &MockChannel{}, &MockChannel{}
	a.On("Send", int32(7)).Return(nil)
	b.On("Send", int32(7)).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewQueue([]Channel{a, b}, 2, 10, 0)
	q.Start(ctx)

	q.Notify(ctx, domain.Notification{UserID: 7, Event: domain.EventRentalCreated, Title: "t"})

	assert.Eventually(t, func() bool { return a.delivered() == 1 && b.delivered() == 1 }, time.Second, 10*time.Millisecond)
}

func TestQueue_RetriesFailedSends(t *testing.T) {
	ch := &MockChannel{}
	ch.On("Send", int32(7)).Return(errors.New("unavailable")).Twice()
	ch.On("Send", int32(7)).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewQueue([]Channel{ch}, 1, 10, 3)
	q.backoff = func(int) time.Duration { return time.Millisecond }
	q.Start(ctx)

	q.Notify(ctx, domain.Notification{UserID: 7})

	assert.Eventually(t, func() bool { return ch.delivered() == 1 }, time.Second, 10*time.Millisecond)
	ch.AssertNumberOfCalls(t, "Send", 3)
}

func TestQueue_SkipsAnonymousRecipients(t *testing.T) {
	ch := &MockChannel{}
	q := NewQueue([]Channel{ch}, 1, 1, 0)

	q.Notify(context.Background(), domain.Notification{UserID: 0})

	assert.Len(t, q.jobs, 0)
}

func TestQueue_FullQueueDropsWithoutBlocking(t *testing.T) {
	ch := &MockChannel{}
	q := NewQueue([]Channel{ch}, 1, 1, 0)

	// Not started: the second notification finds the buffer full.
	q.Notify(context.Background(), domain.Notification{UserID: 1})
	q.Notify(context.Background(), domain.Notification{UserID: 2})

	assert.Len(t, q.jobs, 1)
}

func TestQueue_DrainsBufferedJobsOnShutdown(t *testing.T) {
	ch := &MockChannel{}
	ch.On("Send", int32(1)).Return(nil)
	ch.On("Send", int32(2)).Return(nil)

	q := NewQueue([]Channel{ch}, 1, 4, 0)
	q.Notify(context.Background(), domain.Notification{UserID: 1})
	q.Notify(context.Background(), domain.Notification{UserID: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Start(ctx)
	q.Wait()

	assert.Equal(t, 2, ch.delivered())
	assert.Error(t, q.enqueue(job{Channel: ch}))
}

func TestInAppChannel_Send(t *testing.T) {
	store := memory.NewStore(time.Second)
	user := store.AddUser(domain.User{Email: "a@example.com", Name: "A"})
	ch := NewInAppChannel(store.Repos().Notifications)

	err := ch.Send(context.Background(), domain.Notification{UserID: user.ID, Event: domain.EventFittingBooked, Title: "Booked", Message: "m"})
	require.NoError(t, err)

	notes, total, err := store.Repos().Notifications.List(context.Background(), user.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	assert.Equal(t, domain.EventFittingBooked, notes[0].Event)
}

func TestEmailChannel_Send(t *testing.T) {
	store := memory.NewStore(time.Second)
	user := store.AddUser(domain.User{Email: "cust@example.com", Name: "Cust"})

	var captured *mail.SGMailV3
	ch := &EmailChannel{
		users:     store.Repos().Users,
		fromEmail: "noreply@onrent.id",
		fromName:  "OnRent",
		send: func(ctx context.Context, msg *mail.SGMailV3) (int, string, error) {
			captured = msg
			return 202, "", nil
		},
	}

	err := ch.Send(context.Background(), domain.Notification{UserID: user.ID, Title: "Return due", Message: "Please return"})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "Return due", captured.Subject)
	assert.Equal(t, "cust@example.com", captured.Personalizations[0].To[0].Address)

	ch.send = func(ctx context.Context, msg *mail.SGMailV3) (int, string, error) {
		return 401, "unauthorized", nil
	}
	err = ch.Send(context.Background(), domain.Notification{UserID: user.ID, Title: "x"})
	assert.ErrorContains(t, err, "status 401")
}

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) Send(ctx context.Context, msg *messaging.Message) (string, error) {
	args := m.Called(msg.Topic, msg.Data["event"])
	return args.String(0), args.Error(1)
}

func TestPushChannel_SendsToUserTopic(t *testing.T) {
	client := &MockMessenger{}
	client.On("Send", "user-42", string(domain.EventRentalReturnDue)).Return("msg-1", nil)
	ch := &PushChannel{client: client}

	err := ch.Send(context.Background(), domain.Notification{
		UserID:     42,
		Event:      domain.EventRentalReturnDue,
		Title:      "Return due",
		Attributes: map[string]string{"rental_id": "3"},
	})
	require.NoError(t, err)
	client.AssertExpectations(t)
}
