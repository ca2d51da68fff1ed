package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/models"
	"gorm.io/gorm"
)

// DuplicateNotificationRepositoryImpl implements the DuplicateNotificationRepository interface
type DuplicateNotificationRepositoryImpl struct {
	*BaseRepository[models.DuplicateNotification, models.DuplicateNotificationFilter]
}

// NewDuplicateNotificationRepository creates a new duplicate notification repository
func NewDuplicateNotificationRepository(db *gorm.DB) DuplicateNotificationRepository {
	return &DuplicateNotificationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DuplicateNotification, models.DuplicateNotificationFilter](db),
	}
}

// ByID retrieves a notification by ID
func (r *DuplicateNotificationRepositoryImpl) ByID(ctx context.Context, id uuid.UUID) (*models.DuplicateNotification, error) {
	db := r.getDB(ctx)

	var notification models.DuplicateNotification
	err := db.Where("id = ?", id).Last(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find notification %s: %w", id, err)
	}

	return &notification, nil
}

func (r *DuplicateNotificationRepositoryImpl) applyFilter(query *gorm.DB, filter models.DuplicateNotificationFilter) *gorm.DB {
	if filter.NewLeadID != nil {
		query = query.Where("new_leadid = ?", *filter.NewLeadID)
	}
	if filter.OriginalLeadID != nil {
		query = query.Where("original_leadid = ?", *filter.OriginalLeadID)
	}
	if filter.DuplicateType != nil {
		query = query.Where("duplicate_type = ?", *filter.DuplicateType)
	}
	if filter.OwnerUserID != nil {
		query = query.Where("owner_user_id = ?", *filter.OwnerUserID)
	}
	if filter.NotificationStatus != nil {
		query = query.Where("notification_status = ?", *filter.NotificationStatus)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves notifications based on filter criteria
func (r *DuplicateNotificationRepositoryImpl) ByFilter(ctx context.Context, filter models.DuplicateNotificationFilter, orderBy string, limit, offset int) ([]*models.DuplicateNotification, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DuplicateNotification{}), filter)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var notifications []*models.DuplicateNotification
	err := query.Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find notifications by filter: %w", err)
	}

	return notifications, nil
}

// Count returns the number of notifications matching the filter
func (r *DuplicateNotificationRepositoryImpl) Count(ctx context.Context, filter models.DuplicateNotificationFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.DuplicateNotification{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	return count, nil
}

// Exists checks if any notification matching the filter exists
func (r *DuplicateNotificationRepositoryImpl) Exists(ctx context.Context, filter models.DuplicateNotificationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListPendingByUser returns unhandled notifications addressed to the user,
// oldest first so the backlog is worked in arrival order.
func (r *DuplicateNotificationRepositoryImpl) ListPendingByUser(ctx context.Context, userID int64) ([]*models.DuplicateNotification, error) {
	db := r.getDB(ctx)

	var notifications []*models.DuplicateNotification
	err := db.Where("owner_user_id = ?", userID).
		Where("notification_status <> ?", models.NotificationStatusHandled).
		Order("created_at ASC").
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications for user %d: %w", userID, err)
	}

	return notifications, nil
}

// MarkHandled advances a notification to the handled state
func (r *DuplicateNotificationRepositoryImpl) MarkHandled(ctx context.Context, id uuid.UUID, handledAt time.Time) error {
	db := r.getDB(ctx)

	result := db.Model(&models.DuplicateNotification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"notification_status": models.NotificationStatusHandled,
			"handled_at":          handledAt,
			"updated_at":          handledAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification %s handled: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification %s not found", id)
	}

	return nil
}

// ExistsForPair reports whether the (new, original, type) triple was already
// notified. Batch reallocation and retried allocations use it to avoid
// re-notifying.
func (r *DuplicateNotificationRepositoryImpl) ExistsForPair(ctx context.Context, newLeadID, originalLeadID, duplicateType string) (bool, error) {
	filter := models.DuplicateNotificationFilter{
		NewLeadID:      &newLeadID,
		OriginalLeadID: &originalLeadID,
		DuplicateType:  &duplicateType,
	}
	return r.Exists(ctx, filter)
}
