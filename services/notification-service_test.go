package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"studioflow-project/backend/models"
	"studioflow-project/backend/realtime"
	"studioflow-project/backend/utils"

	"github.com/sony/gobreaker"
)

type fakeNotificationStore struct {
	notifications map[string][]models.Notification
	insertErr     error
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{notifications: map[string][]models.Notification{}}
}

func (f *fakeNotificationStore) Insert(n *models.Notification) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if n.ID == "" {
		n.ID = fmt.Sprintf("n%d", len(f.notifications[n.UserID])+1)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	f.notifications[n.UserID] = append(f.notifications[n.UserID], *n)
	return nil
}

func (f *fakeNotificationStore) ByRecipient(userID string) ([]models.Notification, error) {
	return f.notifications[userID], nil
}

func (f *fakeNotificationStore) MarkRead(userID, notificationID string, createdAt time.Time) error {
	for i, n := range f.notifications[userID] {
		if n.ID == notificationID {
			f.notifications[userID][i].Read = true
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeNotificationStore) MarkAllRead(userID string) error {
	for i := range f.notifications[userID] {
		f.notifications[userID][i].Read = true
	}
	return nil
}

func (f *fakeNotificationStore) Delete(userID, notificationID string, createdAt time.Time) error {
	for i, n := range f.notifications[userID] {
		if n.ID == notificationID {
			f.notifications[userID] = append(f.notifications[userID][:i], f.notifications[userID][i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func TestNotifyValidatesAndDefaults(t *testing.T) {
	store := newFakeNotificationStore()
	svc := NewNotificationService(store, realtime.NewDispatcher())

	err := svc.Notify(context.Background(), models.Notification{UserID: "u1", Title: "t"})
	if !errors.Is(err, utils.ErrValidation) {
		t.Errorf("missing message: error = %v, want validation failure", err)
	}

	if err := svc.Notify(context.Background(), models.Notification{UserID: "u1", Title: "t", Message: "m"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	got := store.notifications["u1"]
	if len(got) != 1 || got[0].Type != models.NotificationInfo {
		t.Errorf("notification not stored with default type: %+v", got)
	}
}

func TestUnreadCountTracksMarkRead(t *testing.T) {
	store := newFakeNotificationStore()
	svc := NewNotificationService(store, realtime.NewDispatcher())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Notify(ctx, models.Notification{UserID: "u1", Title: "t", Message: "m"}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	count, err := svc.UnreadCount(ctx, "u1")
	if err != nil || count != 3 {
		t.Fatalf("UnreadCount = %d, %v; want 3", count, err)
	}

	first := store.notifications["u1"][0]
	if err := svc.MarkRead(ctx, "u1", first.ID, first.CreatedAt); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if count, _ = svc.UnreadCount(ctx, "u1"); count != 2 {
		t.Errorf("UnreadCount after MarkRead = %d, want 2", count)
	}

	if err := svc.MarkAllRead(ctx, "u1"); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if count, _ = svc.UnreadCount(ctx, "u1"); count != 0 {
		t.Errorf("UnreadCount after MarkAllRead = %d, want 0", count)
	}
}

func TestNotifyPublishesOnRecipientChannel(t *testing.T) {
	store := newFakeNotificationStore()
	dispatcher := realtime.NewDispatcher()
	svc := NewNotificationService(store, dispatcher)

	events := make(chan models.ChangeEvent, 4)
	sub := dispatcher.Subscribe(realtime.ChannelKey{
		Collection:  "notifications",
		FilterField: "userId",
		FilterValue: "u1",
	}, func(ev models.ChangeEvent) { events <- ev })
	defer sub.Release()

	other := dispatcher.Subscribe(realtime.ChannelKey{
		Collection:  "notifications",
		FilterField: "userId",
		FilterValue: "u2",
	}, func(ev models.ChangeEvent) {
		t.Errorf("event for u1 leaked to u2's channel: %+v", ev)
	})
	defer other.Release()

	if err := svc.Notify(context.Background(), models.Notification{UserID: "u1", Title: "t", Message: "m"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != models.EventInsert {
			t.Errorf("event type = %s, want insert", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered to the recipient channel")
	}
	time.Sleep(100 * time.Millisecond)
}

func TestMarkAllReadPublishesRefresh(t *testing.T) {
	store := newFakeNotificationStore()
	dispatcher := realtime.NewDispatcher()
	svc := NewNotificationService(store, dispatcher)
	ctx := context.Background()

	if err := svc.Notify(ctx, models.Notification{UserID: "u1", Title: "t", Message: "m"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	events := make(chan models.ChangeEvent, 4)
	sub := dispatcher.Subscribe(realtime.ChannelKey{
		Collection:  "notifications",
		FilterField: "userId",
		FilterValue: "u1",
	}, func(ev models.ChangeEvent) { events <- ev })
	defer sub.Release()

	if err := svc.MarkAllRead(ctx, "u1"); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != models.EventRefresh {
			t.Errorf("event type = %s, want refresh", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh event after MarkAllRead")
	}
}

func TestBreakerNotifierOpensAfterConsecutiveFailures(t *testing.T) {
	store := newFakeNotificationStore()
	store.insertErr = errors.New("cassandra down")
	svc := NewNotificationService(store, realtime.NewDispatcher())

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "notifications",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
	})
	notifier := NewBreakerNotifier(breaker, svc)
	ctx := context.Background()
	n := models.Notification{UserID: "u1", Title: "t", Message: "m"}

	for i := 0; i < 5; i++ {
		notifier.Notify(ctx, n)
	}
	if breaker.State() != gobreaker.StateOpen {
		t.Errorf("breaker state = %s, want open", breaker.State())
	}

	// Open breaker fails fast without touching the store.
	store.insertErr = nil
	if err := notifier.Notify(ctx, n); err == nil {
		t.Error("open breaker let a call through")
	}
	if len(store.notifications["u1"]) != 0 {
		t.Error("store reached while the breaker was open")
	}
}
