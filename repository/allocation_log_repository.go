package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/models"
	"gorm.io/gorm"
)

// AllocationLogRepositoryImpl implements the AllocationLogRepository interface
type AllocationLogRepositoryImpl struct {
	*BaseRepository[models.AllocationLog, models.AllocationLogFilter]
}

// NewAllocationLogRepository creates a new allocation log repository
func NewAllocationLogRepository(db *gorm.DB) AllocationLogRepository {
	return &AllocationLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AllocationLog, models.AllocationLogFilter](db),
	}
}

func (r *AllocationLogRepositoryImpl) applyFilter(query *gorm.DB, filter models.AllocationLogFilter) *gorm.DB {
	if filter.LeadID != nil {
		query = query.Where("leadid = ?", *filter.LeadID)
	}
	if filter.AssignedUserID != nil {
		query = query.Where("assigned_user_id = ?", *filter.AssignedUserID)
	}
	if filter.OrganizationID != nil {
		query = query.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.AllocationMethod != nil {
		query = query.Where("allocation_method = ?", *filter.AllocationMethod)
	}
	if filter.IsDuplicate != nil {
		query = query.Where("is_duplicate = ?", *filter.IsDuplicate)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves allocation logs based on filter criteria
func (r *AllocationLogRepositoryImpl) ByFilter(ctx context.Context, filter models.AllocationLogFilter, orderBy string, limit, offset int) ([]*models.AllocationLog, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AllocationLog{}), filter)

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

	var logs []*models.AllocationLog
	err := query.Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find allocation logs by filter: %w", err)
	}

	return logs, nil
}

// Count returns the number of logs matching the filter
func (r *AllocationLogRepositoryImpl) Count(ctx context.Context, filter models.AllocationLogFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.AllocationLog{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count allocation logs: %w", err)
	}

	return count, nil
}

// Exists checks if any log matching the filter exists
func (r *AllocationLogRepositoryImpl) Exists(ctx context.Context, filter models.AllocationLogFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByLead returns the decision history for a lead, newest first
func (r *AllocationLogRepositoryImpl) ListByLead(ctx context.Context, leadID string) ([]*models.AllocationLog, error) {
	filter := models.AllocationLogFilter{LeadID: &leadID}
	return r.ByFilter(ctx, filter, "created_at DESC", 0, 0)
}

// StatsByRange aggregates decision outcomes over a date range
func (r *AllocationLogRepositoryImpl) StatsByRange(ctx context.Context, organizationID *uuid.UUID, start, end time.Time) (*AllocationStats, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.AllocationLog{}).
		Where("created_at >= ? AND created_at <= ?", start, end)
	if organizationID != nil {
		query = query.Where("organization_id = ?", *organizationID)
	}

	type row struct {
		Total      int64
		Allocated  int64
		Duplicates int64
		AvgLatency float64
	}
	var result row
	err := query.
		Select(
			"COUNT(*) AS total, " +
				"COUNT(*) FILTER (WHERE allocation_method <> 'failed') AS allocated, " +
				"COUNT(*) FILTER (WHERE is_duplicate) AS duplicates, " +
				"COALESCE(AVG(latency_ms), 0) AS avg_latency",
		).
		Scan(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate allocation stats: %w", err)
	}

	return &AllocationStats{
		TotalLeads:     result.Total,
		AllocatedLeads: result.Allocated,
		DuplicateLeads: result.Duplicates,
		AvgLatencyMS:   result.AvgLatency,
	}, nil
}

// CountByMethod breaks allocation counts down per method over a date range
func (r *AllocationLogRepositoryImpl) CountByMethod(ctx context.Context, organizationID *uuid.UUID, start, end time.Time) (map[string]int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.AllocationLog{}).
		Where("created_at >= ? AND created_at <= ?", start, end)
	if organizationID != nil {
		query = query.Where("organization_id = ?", *organizationID)
	}

	type row struct {
		AllocationMethod string
		Count            int64
	}
	var rows []row
	err := query.
		Select("allocation_method, COUNT(*) AS count").
		Group("allocation_method").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count allocations by method: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.AllocationMethod] = r.Count
	}
	return counts, nil
}

// CountByAssignee breaks allocation counts down per assignee over a date range
func (r *AllocationLogRepositoryImpl) CountByAssignee(ctx context.Context, organizationID *uuid.UUID, start, end time.Time) (map[int64]int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.AllocationLog{}).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Where("assigned_user_id IS NOT NULL")
	if organizationID != nil {
		query = query.Where("organization_id = ?", *organizationID)
	}

	type row struct {
		AssignedUserID int64
		Count          int64
	}
	var rows []row
	err := query.
		Select("assigned_user_id, COUNT(*) AS count").
		Group("assigned_user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count allocations by assignee: %w", err)
	}

	counts := make(map[int64]int64, len(rows))
	for _, r := range rows {
		counts[r.AssignedUserID] = r.Count
	}
	return counts, nil
}

// RuleReferenced reports whether any log row references the rule. Rules with
// history are soft-disabled instead of deleted.
func (r *AllocationLogRepositoryImpl) RuleReferenced(ctx context.Context, ruleID uuid.UUID) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.AllocationLog{}).
		Where("allocation_details -> 'rule' ->> 'rule_id' = ?", ruleID.String()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check rule references: %w", err)
	}

	return count > 0, nil
}
