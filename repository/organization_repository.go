package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/models"
	"gorm.io/gorm"
)

// OrganizationRepositoryImpl implements the OrganizationRepository interface
type OrganizationRepositoryImpl struct {
	*BaseRepository[models.Organization, models.OrganizationFilter]
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &OrganizationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Organization, models.OrganizationFilter](db),
	}
}

// ByID retrieves an organization by ID
func (r *OrganizationRepositoryImpl) ByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	db := r.getDB(ctx)

	var org models.Organization
	err := db.Where("id = ?", id).Last(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find organization %s: %w", id, err)
	}

	return &org, nil
}

func (r *OrganizationRepositoryImpl) applyFilter(query *gorm.DB, filter models.OrganizationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.ParentID != nil {
		query = query.Where("parent_id = ?", *filter.ParentID)
	}
	return query
}

// ByFilter retrieves organizations based on filter criteria
func (r *OrganizationRepositoryImpl) ByFilter(ctx context.Context, filter models.OrganizationFilter, orderBy string, limit, offset int) ([]*models.Organization, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Organization{}), filter)

	if orderBy == "" {
		orderBy = "created_at ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var orgs []*models.Organization
	err := query.Find(&orgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find organizations by filter: %w", err)
	}

	return orgs, nil
}

// Count returns the number of organizations matching the filter
func (r *OrganizationRepositoryImpl) Count(ctx context.Context, filter models.OrganizationFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.Organization{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count organizations: %w", err)
	}

	return count, nil
}

// Exists checks if any organization matching the filter exists
func (r *OrganizationRepositoryImpl) Exists(ctx context.Context, filter models.OrganizationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByCommunity returns the organization whose footprint covers the community.
// The earliest-created organization wins when footprints overlap.
func (r *OrganizationRepositoryImpl) ByCommunity(ctx context.Context, community string) (*models.Organization, error) {
	db := r.getDB(ctx)

	var org models.Organization
	err := db.Where("? = ANY(communities)", community).
		Order("created_at ASC").
		First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find organization for community %s: %w", community, err)
	}

	return &org, nil
}
