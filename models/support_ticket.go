package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// ValidTicketStatus reports whether s is a known support ticket status.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

type SupportTicket struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     string             `bson:"userId" json:"userId"`
	Subject    string             `bson:"subject" json:"subject"`
	Message    string             `bson:"message" json:"message"`
	Priority   TaskPriority       `bson:"priority" json:"priority"`
	Status     TicketStatus       `bson:"status" json:"status"`
	AdminNotes string             `bson:"adminNotes,omitempty" json:"adminNotes,omitempty"`
	ResolvedAt *time.Time         `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	ResolvedBy string             `bson:"resolvedBy,omitempty" json:"resolvedBy,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
