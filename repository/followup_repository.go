package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/utils"
	"gorm.io/gorm"
)

// FollowupRepositoryImpl implements the FollowupRepository interface
type FollowupRepositoryImpl struct {
	*BaseRepository[models.Followup, models.FollowupFilter]
}

// NewFollowupRepository creates a new followup repository
func NewFollowupRepository(db *gorm.DB) FollowupRepository {
	return &FollowupRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Followup, models.FollowupFilter](db),
	}
}

// ByLeadID retrieves the followup for a lead
func (r *FollowupRepositoryImpl) ByLeadID(ctx context.Context, leadID string) (*models.Followup, error) {
	db := r.getDB(ctx)

	var followup models.Followup
	err := db.Where("leadid = ?", leadID).Last(&followup).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find followup for lead %s: %w", leadID, err)
	}

	return &followup, nil
}

func (r *FollowupRepositoryImpl) applyFilter(query *gorm.DB, filter models.FollowupFilter) *gorm.DB {
	if filter.LeadID != nil {
		query = query.Where("leadid = ?", *filter.LeadID)
	}
	if filter.InterviewsalesUserID != nil {
		query = query.Where("interviewsales_user_id = ?", *filter.InterviewsalesUserID)
	}
	if filter.ScheduledCommunity != nil {
		query = query.Where("scheduledcommunity = ?", *filter.ScheduledCommunity)
	}
	if filter.FollowupStage != nil {
		query = query.Where("followupstage = ?", *filter.FollowupStage)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves followups based on filter criteria
func (r *FollowupRepositoryImpl) ByFilter(ctx context.Context, filter models.FollowupFilter, orderBy string, limit, offset int) ([]*models.Followup, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Followup{}), filter)

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

	var followups []*models.Followup
	err := query.Find(&followups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find followups by filter: %w", err)
	}

	return followups, nil
}

// Count returns the number of followups matching the filter
func (r *FollowupRepositoryImpl) Count(ctx context.Context, filter models.FollowupFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.Followup{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count followups: %w", err)
	}

	return count, nil
}

// Exists checks if any followup matching the filter exists
func (r *FollowupRepositoryImpl) Exists(ctx context.Context, filter models.FollowupFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateOwner writes the engine's decision to the followup. A nil userID
// clears the owner (lead stays visible as unassigned); a nil community
// leaves the scheduled community untouched.
func (r *FollowupRepositoryImpl) UpdateOwner(ctx context.Context, leadID string, userID *int64, community *string) error {
	db := r.getDB(ctx)

	updates := map[string]any{
		"interviewsales_user_id": userID,
		"updated_at":             utils.UTCNow(),
	}
	if community != nil {
		updates["scheduledcommunity"] = *community
	}

	result := db.Model(&models.Followup{}).
		Where("leadid = ?", leadID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update followup owner for lead %s: %w", leadID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no followup found for lead %s", leadID)
	}

	return nil
}

// CountOpenByUsers counts non-terminal followups per candidate in the
// trailing window. Candidates with no open leads are present with count 0.
func (r *FollowupRepositoryImpl) CountOpenByUsers(ctx context.Context, userIDs []int64, since time.Time) (map[int64]int64, error) {
	db := r.getDB(ctx)

	counts := make(map[int64]int64, len(userIDs))
	for _, id := range userIDs {
		counts[id] = 0
	}

	if len(userIDs) == 0 {
		return counts, nil
	}

	type row struct {
		UserID int64
		N      int64
	}
	var rows []row
	err := db.Model(&models.Followup{}).
		Select("interviewsales_user_id AS user_id, COUNT(*) AS n").
		Where("interviewsales_user_id IN ?", userIDs).
		Where("followupstage NOT IN ?", models.TerminalFollowupStages).
		Where("created_at >= ?", since).
		Group("interviewsales_user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count open followups: %w", err)
	}

	for _, r := range rows {
		counts[r.UserID] = r.N
	}

	return counts, nil
}
