package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ActivityAction string

const (
	ActivityInsert ActivityAction = "INSERT"
	ActivityUpdate ActivityAction = "UPDATE"
	ActivityDelete ActivityAction = "DELETE"
)

// ActivityLog is a system-written, append-only record of a mutation to a
// project, stage or task.
type ActivityLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID  string             `bson:"projectId" json:"projectId"`
	UserID     string             `bson:"userId" json:"userId"`
	Action     ActivityAction     `bson:"action" json:"action"`
	EntityType string             `bson:"entityType" json:"entityType"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
