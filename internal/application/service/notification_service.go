package service

import (
	"context"
	"fmt"

	"github.com/garyjia/travel-expense/internal/application/dispatcher"
	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/event"
)

// Subscriber registers event handlers
type Subscriber interface {
	SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler)
}

// NotificationService tells users about what happened to their expense reports
type NotificationService interface {
	// Register subscribes the service to every event it notifies about
	Register(sub Subscriber)

	// Handle sends the notification of a single event
	Handle(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	catalog  port.CatalogRepository
	notifier port.Notifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(catalog port.CatalogRepository, notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		catalog:  catalog,
		notifier: notifier,
		logger:   logger,
	}
}

var notifiedEvents = []event.Type{
	event.TypeSheetSubmitted,
	event.TypeSheetApproved,
	event.TypeSheetRefused,
	event.TypeSheetReset,
	event.TypeSheetPosted,
	event.TypeSheetPaid,
	event.TypeAdvanceSettled,
}

// Register subscribes the service to every event it notifies about
func (s *notificationServiceImpl) Register(sub Subscriber) {
	for _, t := range notifiedEvents {
		sub.SubscribeNamed(t, "lark-notification", s.Handle)
	}
}

// Handle sends the notification of a single event to the user named in its payload.
// Events without a recipient are skipped.
func (s *notificationServiceImpl) Handle(ctx context.Context, evt *event.Event) error {
	userID := evt.GetPayloadInt("notify_user_id")
	if userID == 0 {
		return nil
	}

	user, err := s.catalog.GetUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to get user", "error", err, "user_id", userID)
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil || user.LarkOpenID == "" {
		s.logger.Info("Notification skipped, user has no Lark account", "user_id", userID, "event", evt.Type)
		return nil
	}

	message := buildMessage(evt)
	if err := s.notifier.Notify(ctx, user, message); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "user_id", userID, "event", evt.Type)
		return fmt.Errorf("send notification: %w", err)
	}

	s.logger.Info("Notification sent",
		"event", evt.Type,
		"sheet_id", evt.SheetID,
		"user_id", userID,
	)
	return nil
}

// buildMessage builds the human-readable text of an event
func buildMessage(evt *event.Event) string {
	name := evt.GetPayloadString("sheet_name")

	switch evt.Type {
	case event.TypeSheetSubmitted:
		return fmt.Sprintf("The expense report %s was submitted and is waiting for your review.", name)
	case event.TypeSheetApproved:
		return fmt.Sprintf("Your expense report %s was approved.", name)
	case event.TypeSheetRefused:
		if reason := evt.GetPayloadString("reason"); reason != "" {
			return fmt.Sprintf("Your expense report %s was refused.\n\nReason: %s", name, reason)
		}
		return fmt.Sprintf("Your expense report %s was refused.", name)
	case event.TypeSheetReset:
		return fmt.Sprintf("Your expense report %s was reset to draft.", name)
	case event.TypeSheetPosted:
		return fmt.Sprintf("The journal entries of your expense report %s were posted.", name)
	case event.TypeSheetPaid:
		return fmt.Sprintf("A payment of %s was registered on your expense report %s.", evt.GetPayloadString("amount"), name)
	case event.TypeAdvanceSettled:
		return fmt.Sprintf("Your advance %s is being settled in %s. Please verify the actual spending of each line.",
			name, evt.GetPayloadString("settlement_name"))
	default:
		return fmt.Sprintf("Your expense report %s was updated.", name)
	}
}
