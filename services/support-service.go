package services

import (
	"context"
	"fmt"
	"time"

	"studioflow-project/backend/logging"
	"studioflow-project/backend/models"
	"studioflow-project/backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SupportService manages help desk tickets. Any principal can open tickets
// and read their own; only administrators work the queue.
type SupportService struct {
	ticketsCollection *mongo.Collection
	notifier          Notifier
}

func NewSupportService(db *mongo.Database, notifier Notifier) *SupportService {
	return &SupportService{
		ticketsCollection: db.Collection("support_tickets"),
		notifier:          notifier,
	}
}

// Open files a new ticket for the calling principal.
func (s *SupportService) Open(ctx context.Context, principalID string, ticket models.SupportTicket) (*models.SupportTicket, error) {
	if ticket.Subject == "" || ticket.Message == "" {
		return nil, fmt.Errorf("%w: subject and message are required", utils.ErrValidation)
	}
	if ticket.Priority == "" {
		ticket.Priority = models.PriorityMedium
	}
	if !models.ValidTaskPriority(ticket.Priority) {
		return nil, fmt.Errorf("%w: unknown ticket priority %q", utils.ErrValidation, ticket.Priority)
	}

	ticket.ID = primitive.NewObjectID()
	ticket.UserID = principalID
	ticket.Status = models.TicketOpen
	ticket.AdminNotes = ""
	ticket.ResolvedAt = nil
	ticket.ResolvedBy = ""
	ticket.CreatedAt = time.Now()

	if _, err := s.ticketsCollection.InsertOne(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to open ticket: %v", err)
	}

	logging.Logger.Infof("Event ID: TICKET_OPENED, Description: Support ticket %s opened by %s.", ticket.ID.Hex(), principalID)
	return &ticket, nil
}

// ByReporter returns the tickets opened by one principal, newest first.
func (s *SupportService) ByReporter(ctx context.Context, principalID string) ([]models.SupportTicket, error) {
	return s.find(ctx, bson.M{"userId": principalID})
}

// All returns the whole queue for administrators, newest first.
func (s *SupportService) All(ctx context.Context) ([]models.SupportTicket, error) {
	return s.find(ctx, bson.M{})
}

func (s *SupportService) find(ctx context.Context, filter bson.M) ([]models.SupportTicket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.ticketsCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tickets: %v", err)
	}
	defer cursor.Close(ctx)

	tickets := []models.SupportTicket{}
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("failed to decode tickets: %v", err)
	}
	return tickets, nil
}

// Update moves a ticket through the queue. Entering the resolved status
// stamps who resolved it and when; the reporter is notified of the outcome.
func (s *SupportService) Update(ctx context.Context, adminID, ticketID string, status models.TicketStatus, adminNotes string) (*models.SupportTicket, error) {
	if !models.ValidTicketStatus(status) {
		return nil, fmt.Errorf("%w: unknown ticket status %q", utils.ErrValidation, status)
	}
	objectID, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ticket id", utils.ErrValidation)
	}

	var current models.SupportTicket
	if err := s.ticketsCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&current); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve ticket: %v", err)
	}

	set := bson.M{"status": status, "adminNotes": adminNotes}
	if status == models.TicketResolved && current.Status != models.TicketResolved {
		now := time.Now()
		set["resolvedAt"] = now
		set["resolvedBy"] = adminID
	}

	if _, err := s.ticketsCollection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": set}); err != nil {
		return nil, fmt.Errorf("failed to update ticket: %v", err)
	}

	var ticket models.SupportTicket
	if err := s.ticketsCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&ticket); err != nil {
		return nil, fmt.Errorf("failed to retrieve updated ticket: %v", err)
	}

	if ticket.Status != current.Status {
		n := models.Notification{
			UserID:  ticket.UserID,
			Title:   "Support ticket update",
			Message: fmt.Sprintf("Your ticket %q is now %s.", ticket.Subject, ticket.Status),
			Type:    models.NotificationInfo,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			logging.Logger.Warnf("Event ID: NOTIFICATION_FANOUT_FAILED, Description: Notification for recipient %s dropped: %v", n.UserID, err)
		}
	}
	return &ticket, nil
}
