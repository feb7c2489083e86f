package models

import "time"

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification always has exactly one recipient (UserID). Stored in
// Cassandra partitioned by recipient, clustered newest first.
type Notification struct {
	ID        string           `cassandra:"id" json:"id"`
	UserID    string           `cassandra:"user_id" json:"userId"`
	Title     string           `cassandra:"title" json:"title"`
	Message   string           `cassandra:"message" json:"message"`
	Type      NotificationType `cassandra:"type" json:"type"`
	Link      string           `cassandra:"link" json:"link,omitempty"`
	Read      bool             `cassandra:"is_read" json:"read"`
	CreatedAt time.Time        `cassandra:"created_at" json:"createdAt"`
}
