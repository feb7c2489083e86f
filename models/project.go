package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProjectStatus string

const (
	ProjectPlanning     ProjectStatus = "planning"
	ProjectInProduction ProjectStatus = "in_production"
	ProjectInReview     ProjectStatus = "in_review"
	ProjectCompleted    ProjectStatus = "completed"
	ProjectDelayed      ProjectStatus = "delayed"
)

// ValidProjectStatus reports whether s is a known project status.
func ValidProjectStatus(s ProjectStatus) bool {
	switch s {
	case ProjectPlanning, ProjectInProduction, ProjectInReview, ProjectCompleted, ProjectDelayed:
		return true
	}
	return false
}

type Project struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	ClientName  string             `bson:"clientName" json:"clientName"`
	Status      ProjectStatus      `bson:"status" json:"status"`
	Description string             `bson:"description" json:"description"`
	StartDate   *time.Time         `bson:"startDate,omitempty" json:"startDate,omitempty"`
	DueDate     *time.Time         `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	CreatedBy   string             `bson:"createdBy" json:"createdBy"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// ProjectStage is one ordered step of a production pipeline
// (pre-production, shooting, editing, color, delivery...).
type ProjectStage struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID  string             `bson:"projectId" json:"projectId"`
	Name       string             `bson:"name" json:"name"`
	Status     string             `bson:"status" json:"status"`
	OrderIndex int                `bson:"orderIndex" json:"orderIndex"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
