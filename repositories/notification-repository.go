package repositories

import (
	"fmt"
	"os"
	"time"

	"studioflow-project/backend/logging"
	"studioflow-project/backend/models"

	"github.com/gocql/gocql"
)

type NotificationRepo struct {
	session *gocql.Session
}

// NewNotificationRepo connects to Cassandra, creating the keyspace and table
// on first use.
func NewNotificationRepo() (*NotificationRepo, error) {
	db := os.Getenv("CASS_DB")
	if db == "" {
		db = "127.0.0.1"
	}

	cluster := gocql.NewCluster(db)
	cluster.Keyspace = "system"
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	err = session.Query(
		`CREATE KEYSPACE IF NOT EXISTS notifications
         WITH replication = {
             'class': 'SimpleStrategy',
             'replication_factor': 1
         }`).Exec()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASS_KEYSPACE_FAILED, Description: Failed to create notifications keyspace: %v", err)
		return nil, err
	}
	session.Close()

	cluster.Keyspace = "notifications"
	cluster.Consistency = gocql.One
	session, err = cluster.CreateSession()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASS_CONNECT_FAILED, Description: Failed to connect to notifications keyspace: %v", err)
		return nil, err
	}

	logging.Logger.Info("Event ID: CASS_CONNECTED, Description: Connected to Cassandra notifications keyspace.")
	return &NotificationRepo{session: session}, nil
}

// CloseSession closes the Cassandra session.
func (nr *NotificationRepo) CloseSession() {
	nr.session.Close()
	logging.Logger.Info("Event ID: CASS_SESSION_CLOSED, Description: Cassandra session closed.")
}

// CreateTable creates the notifications table. Partitioned by recipient,
// clustered newest first with id as the tiebreaker.
func (nr *NotificationRepo) CreateTable() error {
	err := nr.session.Query(
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID,
			user_id TEXT,
			title TEXT,
			message TEXT,
			type TEXT,
			link TEXT,
			created_at TIMESTAMP,
			is_read BOOLEAN,
			PRIMARY KEY ((user_id), created_at, id)
		) WITH CLUSTERING ORDER BY (created_at DESC, id ASC)`).Exec()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASS_TABLE_FAILED, Description: Failed to create notifications table: %v", err)
		return err
	}
	return nil
}

// Insert writes one notification. The id and creation time are assigned here
// when absent.
func (nr *NotificationRepo) Insert(notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = gocql.TimeUUID().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	err := nr.session.Query(
		`INSERT INTO notifications (id, user_id, title, message, type, link, created_at, is_read)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		notification.ID, notification.UserID, notification.Title, notification.Message,
		string(notification.Type), notification.Link, notification.CreatedAt, notification.Read,
	).Exec()
	if err != nil {
		logging.Logger.Errorf("Event ID: NOTIFICATION_INSERT_FAILED, Description: Failed to insert notification for recipient %s: %v", notification.UserID, err)
		return err
	}
	return nil
}

// ByRecipient returns all notifications of one recipient, newest first (the
// clustering order of the table).
func (nr *NotificationRepo) ByRecipient(userID string) ([]models.Notification, error) {
	query := `SELECT id, user_id, title, message, type, link, created_at, is_read
			  FROM notifications WHERE user_id = ?`

	iter := nr.session.Query(query, userID).Iter()
	var notifications []models.Notification
	var n models.Notification
	var typ string

	for iter.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &n.Link, &n.CreatedAt, &n.Read) {
		n.Type = models.NotificationType(typ)
		notifications = append(notifications, n)
	}

	if err := iter.Close(); err != nil {
		logging.Logger.Errorf("Event ID: NOTIFICATION_QUERY_FAILED, Description: Failed to fetch notifications for recipient %s: %v", userID, err)
		return nil, err
	}

	return notifications, nil
}

// MarkRead flips the read flag of a single notification.
func (nr *NotificationRepo) MarkRead(userID, notificationID string, createdAt time.Time) error {
	uuid, err := gocql.ParseUUID(notificationID)
	if err != nil {
		return fmt.Errorf("invalid notification id: %v", err)
	}

	query := `UPDATE notifications SET is_read = true WHERE user_id = ? AND created_at = ? AND id = ?`
	if err := nr.session.Query(query, userID, createdAt, uuid).Exec(); err != nil {
		logging.Logger.Errorf("Event ID: NOTIFICATION_MARK_READ_FAILED, Description: Failed to mark notification %s as read: %v", notificationID, err)
		return err
	}
	return nil
}

// MarkAllRead flips the read flag of every unread notification of one
// recipient in a single logged batch, so a concurrent reader never observes
// a partially applied sweep.
func (nr *NotificationRepo) MarkAllRead(userID string) error {
	notifications, err := nr.ByRecipient(userID)
	if err != nil {
		return err
	}

	batch := nr.session.NewBatch(gocql.LoggedBatch)
	for _, n := range notifications {
		if n.Read {
			continue
		}
		uuid, err := gocql.ParseUUID(n.ID)
		if err != nil {
			continue
		}
		batch.Query(
			`UPDATE notifications SET is_read = true WHERE user_id = ? AND created_at = ? AND id = ?`,
			userID, n.CreatedAt, uuid,
		)
	}
	if len(batch.Entries) == 0 {
		return nil
	}

	if err := nr.session.ExecuteBatch(batch); err != nil {
		logging.Logger.Errorf("Event ID: NOTIFICATION_MARK_ALL_FAILED, Description: Failed to mark all notifications read for recipient %s: %v", userID, err)
		return err
	}
	return nil
}

// Delete removes one notification.
func (nr *NotificationRepo) Delete(userID, notificationID string, createdAt time.Time) error {
	uuid, err := gocql.ParseUUID(notificationID)
	if err != nil {
		return fmt.Errorf("invalid notification id: %v", err)
	}

	query := `DELETE FROM notifications WHERE user_id = ? AND created_at = ? AND id = ?`
	if err := nr.session.Query(query, userID, createdAt, uuid).Exec(); err != nil {
		logging.Logger.Errorf("Event ID: NOTIFICATION_DELETE_FAILED, Description: Failed to delete notification %s: %v", notificationID, err)
		return err
	}
	return nil
}
