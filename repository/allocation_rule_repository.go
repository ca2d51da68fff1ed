package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/utils"
	"gorm.io/gorm"
)

// AllocationRuleRepositoryImpl implements the AllocationRuleRepository interface
type AllocationRuleRepositoryImpl struct {
	*BaseRepository[models.AllocationRule, models.AllocationRuleFilter]
}

// NewAllocationRuleRepository creates a new allocation rule repository
func NewAllocationRuleRepository(db *gorm.DB) AllocationRuleRepository {
	return &AllocationRuleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AllocationRule, models.AllocationRuleFilter](db),
	}
}

// ByID retrieves a rule by ID
func (r *AllocationRuleRepositoryImpl) ByID(ctx context.Context, id uuid.UUID) (*models.AllocationRule, error) {
	db := r.getDB(ctx)

	var rule models.AllocationRule
	err := db.Where("id = ?", id).Last(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find allocation rule by ID %s: %w", id, err)
	}

	return &rule, nil
}

func (r *AllocationRuleRepositoryImpl) applyFilter(query *gorm.DB, filter models.AllocationRuleFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.OrganizationID != nil {
		query = query.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.TargetType != nil {
		query = query.Where("target_type = ?", *filter.TargetType)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves rules based on filter criteria
func (r *AllocationRuleRepositoryImpl) ByFilter(ctx context.Context, filter models.AllocationRuleFilter, orderBy string, limit, offset int) ([]*models.AllocationRule, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AllocationRule{}), filter)

	if orderBy == "" {
		orderBy = "priority DESC, created_at ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rules []*models.AllocationRule
	err := query.Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find allocation rules by filter: %w", err)
	}

	return rules, nil
}

// ListActiveByOrganization returns active rules for matching, ordered by
// priority descending and created_at ascending so the first survivor wins.
func (r *AllocationRuleRepositoryImpl) ListActiveByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*models.AllocationRule, error) {
	filter := models.AllocationRuleFilter{
		OrganizationID: &organizationID,
		IsActive:       utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "priority DESC, created_at ASC", 0, 0)
}

// Count returns the number of rules matching the filter
func (r *AllocationRuleRepositoryImpl) Count(ctx context.Context, filter models.AllocationRuleFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.AllocationRule{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count allocation rules: %w", err)
	}

	return count, nil
}

// Exists checks if any rule matching the filter exists
func (r *AllocationRuleRepositoryImpl) Exists(ctx context.Context, filter models.AllocationRuleFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update updates a rule
func (r *AllocationRuleRepositoryImpl) Update(ctx context.Context, rule *models.AllocationRule) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	rule.UpdatedAt = utils.UTCNowPtr()

	err = db.Save(rule).Error
	if err != nil {
		return fmt.Errorf("failed to update allocation rule: %w", err)
	}

	return nil
}

// Deactivate soft-disables a rule. Used instead of deletion while logs
// still reference the rule.
func (r *AllocationRuleRepositoryImpl) Deactivate(ctx context.Context, id uuid.UUID) error {
	db := r.getDB(ctx)
	return db.Model(&models.AllocationRule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": utils.UTCNow(),
		}).Error
}

// Delete removes a rule row
func (r *AllocationRuleRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.getDB(ctx)
	return db.Where("id = ?", id).Delete(&models.AllocationRule{}).Error
}
