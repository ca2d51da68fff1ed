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

// CommunityMappingRuleRepositoryImpl implements the CommunityMappingRuleRepository interface
type CommunityMappingRuleRepositoryImpl struct {
	*BaseRepository[models.CommunityMappingRule, models.CommunityMappingRuleFilter]
}

// NewCommunityMappingRuleRepository creates a new community mapping rule repository
func NewCommunityMappingRuleRepository(db *gorm.DB) CommunityMappingRuleRepository {
	return &CommunityMappingRuleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CommunityMappingRule, models.CommunityMappingRuleFilter](db),
	}
}

// ByID retrieves a mapping rule by ID
func (r *CommunityMappingRuleRepositoryImpl) ByID(ctx context.Context, id uuid.UUID) (*models.CommunityMappingRule, error) {
	db := r.getDB(ctx)

	var rule models.CommunityMappingRule
	err := db.Where("id = ?", id).Last(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find mapping rule %s: %w", id, err)
	}

	return &rule, nil
}

func (r *CommunityMappingRuleRepositoryImpl) applyFilter(query *gorm.DB, filter models.CommunityMappingRuleFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.TargetCommunity != nil {
		query = query.Where("target_community = ?", *filter.TargetCommunity)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves mapping rules based on filter criteria
func (r *CommunityMappingRuleRepositoryImpl) ByFilter(ctx context.Context, filter models.CommunityMappingRuleFilter, orderBy string, limit, offset int) ([]*models.CommunityMappingRule, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CommunityMappingRule{}), filter)

	if orderBy == "" {
		orderBy = "priority DESC, confidence_score DESC, created_at ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rules []*models.CommunityMappingRule
	err := query.Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find mapping rules by filter: %w", err)
	}

	return rules, nil
}

// Count returns the number of mapping rules matching the filter
func (r *CommunityMappingRuleRepositoryImpl) Count(ctx context.Context, filter models.CommunityMappingRuleFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.CommunityMappingRule{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count mapping rules: %w", err)
	}

	return count, nil
}

// Exists checks if any mapping rule matching the filter exists
func (r *CommunityMappingRuleRepositoryImpl) Exists(ctx context.Context, filter models.CommunityMappingRuleFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActive returns active mapping rules in evaluation order
func (r *CommunityMappingRuleRepositoryImpl) ListActive(ctx context.Context) ([]*models.CommunityMappingRule, error) {
	filter := models.CommunityMappingRuleFilter{IsActive: utils.ToPtr(true)}
	return r.ByFilter(ctx, filter, "priority DESC, confidence_score DESC, created_at ASC", 0, 0)
}

// Update updates a mapping rule
func (r *CommunityMappingRuleRepositoryImpl) Update(ctx context.Context, rule *models.CommunityMappingRule) error {
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
		return fmt.Errorf("failed to update mapping rule: %w", err)
	}

	return nil
}

// Delete removes a mapping rule
func (r *CommunityMappingRuleRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.getDB(ctx)
	return db.Where("id = ?", id).Delete(&models.CommunityMappingRule{}).Error
}
