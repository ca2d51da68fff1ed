package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkcrm/lead-engine/models"
	"gorm.io/gorm"
)

// LeadRepositoryImpl implements the LeadRepository interface
type LeadRepositoryImpl struct {
	*BaseRepository[models.Lead, models.LeadFilter]
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Lead, models.LeadFilter](db),
	}
}

// ByLeadID retrieves a lead by its leadid
func (r *LeadRepositoryImpl) ByLeadID(ctx context.Context, leadID string) (*models.Lead, error) {
	db := r.getDB(ctx)

	var lead models.Lead
	err := db.Where("leadid = ?", leadID).Last(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find lead %s: %w", leadID, err)
	}

	return &lead, nil
}

func (r *LeadRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadFilter) *gorm.DB {
	if filter.LeadID != nil {
		query = query.Where("leadid = ?", *filter.LeadID)
	}
	if filter.Phone != nil {
		query = query.Where("phone = ?", *filter.Phone)
	}
	if filter.Wechat != nil {
		query = query.Where("wechat = ?", *filter.Wechat)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.LeadType != nil {
		query = query.Where("leadtype = ?", *filter.LeadType)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaignid = ?", *filter.CampaignID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves leads based on filter criteria
func (r *LeadRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Lead{}), filter)

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

	var leads []*models.Lead
	err := query.Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find leads by filter: %w", err)
	}

	return leads, nil
}

// Count returns the number of leads matching the filter
func (r *LeadRepositoryImpl) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.Lead{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}

	return count, nil
}

// Exists checks if any lead matching the filter exists
func (r *LeadRepositoryImpl) Exists(ctx context.Context, filter models.LeadFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// findActiveByIdentifier joins followups to keep only leads still in a
// non-terminal stage. Earliest first so the original lead is index 0.
func (r *LeadRepositoryImpl) findActiveByIdentifier(ctx context.Context, column, value, excludeLeadID string) ([]*models.Lead, error) {
	db := r.getDB(ctx)

	var leads []*models.Lead
	err := db.Model(&models.Lead{}).
		Joins("JOIN followups ON followups.leadid = leads.leadid").
		Where(fmt.Sprintf("leads.%s = ?", column), value).
		Where("leads.leadid <> ?", excludeLeadID).
		Where("followups.followupstage NOT IN ?", models.TerminalFollowupStages).
		Order("leads.created_at ASC").
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active leads by %s: %w", column, err)
	}

	return leads, nil
}

// FindActiveByPhone returns active leads sharing the phone, earliest first
func (r *LeadRepositoryImpl) FindActiveByPhone(ctx context.Context, phone, excludeLeadID string) ([]*models.Lead, error) {
	return r.findActiveByIdentifier(ctx, "phone", phone, excludeLeadID)
}

// FindActiveByWechat returns active leads sharing the wechat id, earliest first
func (r *LeadRepositoryImpl) FindActiveByWechat(ctx context.Context, wechat, excludeLeadID string) ([]*models.Lead, error) {
	return r.findActiveByIdentifier(ctx, "wechat", wechat, excludeLeadID)
}

// ListByCommunity returns leads whose followup is scheduled into the
// community, optionally restricted to a creation date range. Used by batch
// community reallocation.
func (r *LeadRepositoryImpl) ListByCommunity(ctx context.Context, community string, start, end *time.Time) ([]*models.Lead, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Lead{}).
		Joins("JOIN followups ON followups.leadid = leads.leadid").
		Where("followups.scheduledcommunity = ?", community)

	if start != nil {
		query = query.Where("leads.created_at >= ?", *start)
	}
	if end != nil {
		query = query.Where("leads.created_at <= ?", *end)
	}

	var leads []*models.Lead
	err := query.Order("leads.created_at ASC").Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list leads by community %s: %w", community, err)
	}

	return leads, nil
}
