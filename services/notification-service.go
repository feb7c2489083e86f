package services

import (
	"context"
	"fmt"
	"time"

	"studioflow-project/backend/logging"
	"studioflow-project/backend/models"
	"studioflow-project/backend/realtime"
	"studioflow-project/backend/utils"

	"github.com/sony/gobreaker"
)

// Notifier delivers one notification to its recipient's store.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

// NotificationStore is the persistence contract for notifications
// (Cassandra in production, a fake in tests).
type NotificationStore interface {
	Insert(notification *models.Notification) error
	ByRecipient(userID string) ([]models.Notification, error)
	MarkRead(userID, notificationID string, createdAt time.Time) error
	MarkAllRead(userID string) error
	Delete(userID, notificationID string, createdAt time.Time) error
}

type NotificationService struct {
	store      NotificationStore
	dispatcher *realtime.Dispatcher
}

func NewNotificationService(store NotificationStore, dispatcher *realtime.Dispatcher) *NotificationService {
	return &NotificationService{store: store, dispatcher: dispatcher}
}

// Notify persists a notification and publishes its insert event on the
// recipient's channel.
func (ns *NotificationService) Notify(ctx context.Context, notification models.Notification) error {
	if notification.UserID == "" || notification.Title == "" || notification.Message == "" {
		return fmt.Errorf("%w: recipient, title, and message are required", utils.ErrValidation)
	}
	if notification.Type == "" {
		notification.Type = models.NotificationInfo
	}

	if err := ns.store.Insert(&notification); err != nil {
		return fmt.Errorf("failed to create notification: %v", err)
	}

	ns.publish(models.EventInsert, notification)
	return nil
}

// ByRecipient returns all notifications of one recipient, newest first.
func (ns *NotificationService) ByRecipient(ctx context.Context, userID string) ([]models.Notification, error) {
	return ns.store.ByRecipient(userID)
}

// UnreadCount recomputes the unread counter from the collection.
func (ns *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	notifications, err := ns.store.ByRecipient(userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range notifications {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead flips exactly one notification's read flag to true.
func (ns *NotificationService) MarkRead(ctx context.Context, userID, notificationID string, createdAt time.Time) error {
	if err := ns.store.MarkRead(userID, notificationID, createdAt); err != nil {
		return err
	}
	ns.publish(models.EventUpdate, models.Notification{ID: notificationID, UserID: userID, CreatedAt: createdAt, Read: true})
	return nil
}

// MarkAllRead marks every unread notification of the recipient read in one
// atomic server-side sweep.
func (ns *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := ns.store.MarkAllRead(userID); err != nil {
		return err
	}
	// The sweep touches an unbounded set of rows; subscribers re-fetch.
	ns.dispatcher.Publish(models.ChangeEvent{
		Type:       models.EventRefresh,
		Collection: "notifications",
		Fields:     map[string]string{"userId": userID},
	})
	return nil
}

// Delete removes one notification of the recipient.
func (ns *NotificationService) Delete(ctx context.Context, userID, notificationID string, createdAt time.Time) error {
	if err := ns.store.Delete(userID, notificationID, createdAt); err != nil {
		return err
	}
	ns.publish(models.EventDelete, models.Notification{ID: notificationID, UserID: userID, CreatedAt: createdAt})
	return nil
}

func (ns *NotificationService) publish(eventType models.EventType, n models.Notification) {
	ns.dispatcher.Publish(models.ChangeEvent{
		Type:       eventType,
		Collection: "notifications",
		ID:         n.ID,
		CreatedAt:  n.CreatedAt,
		Record:     n,
		Fields:     map[string]string{"userId": n.UserID},
	})
}

// BreakerNotifier wraps a Notifier with a circuit breaker so a struggling
// notification store cannot stall the mutation paths that fan out to it.
type BreakerNotifier struct {
	breaker *gobreaker.CircuitBreaker
	next    Notifier
}

func NewBreakerNotifier(breaker *gobreaker.CircuitBreaker, next Notifier) *BreakerNotifier {
	return &BreakerNotifier{breaker: breaker, next: next}
}

func (bn *BreakerNotifier) Notify(ctx context.Context, notification models.Notification) error {
	_, err := bn.breaker.Execute(func() (interface{}, error) {
		return nil, bn.next.Notify(ctx, notification)
	})
	if err != nil {
		logging.Logger.Warnf("Event ID: NOTIFICATION_FANOUT_FAILED, Description: Notification for recipient %s not delivered: %v", notification.UserID, err)
	}
	return err
}
