// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"log"

	"github.com/linkcrm/lead-engine/models"
)

// NotificationService hands duplicate alerts to the delivery side. The
// engine only creates rows in pending; the delivery collaborator owns the
// sent/read transitions.
type NotificationService interface {
	NotifyDuplicate(ctx context.Context, notification *models.DuplicateNotification) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct{}

// NewNotificationService creates a new notification service
func NewNotificationService() NotificationService {
	return &NotificationServiceImpl{}
}

// NotifyDuplicate announces a pending duplicate notification. Delivery to
// the sales client happens out of process; this hook only records the
// hand-off.
func (s *NotificationServiceImpl) NotifyDuplicate(_ context.Context, notification *models.DuplicateNotification) error {
	owner := int64(0)
	if notification.OwnerUserID != nil {
		owner = *notification.OwnerUserID
	}
	log.Printf("duplicate notification %s queued (type=%s owner=%d new=%s original=%s)",
		notification.ID, notification.DuplicateType, owner,
		notification.NewLeadID, notification.OriginalLeadID)
	return nil
}
