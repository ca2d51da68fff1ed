package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/linkcrm/lead-engine/models"
	"gorm.io/gorm"
)

// UserProfileRepositoryImpl implements the UserProfileRepository interface
type UserProfileRepositoryImpl struct {
	*BaseRepository[models.UserProfile, models.UserProfileFilter]
}

// NewUserProfileRepository creates a new user profile repository
func NewUserProfileRepository(db *gorm.DB) UserProfileRepository {
	return &UserProfileRepositoryImpl{
		BaseRepository: NewBaseRepository[models.UserProfile, models.UserProfileFilter](db),
	}
}

// ByID retrieves a user profile by ID
func (r *UserProfileRepositoryImpl) ByID(ctx context.Context, id int64) (*models.UserProfile, error) {
	db := r.getDB(ctx)

	var profile models.UserProfile
	err := db.Where("id = ?", id).Last(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user profile %d: %w", id, err)
	}

	return &profile, nil
}

func (r *UserProfileRepositoryImpl) applyFilter(query *gorm.DB, filter models.UserProfileFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.OrganizationID != nil {
		query = query.Where("organization_id = ?", *filter.OrganizationID)
	}
	return query
}

// ByFilter retrieves user profiles based on filter criteria
func (r *UserProfileRepositoryImpl) ByFilter(ctx context.Context, filter models.UserProfileFilter, orderBy string, limit, offset int) ([]*models.UserProfile, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.UserProfile{}), filter)

	if orderBy == "" {
		orderBy = "id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var profiles []*models.UserProfile
	err := query.Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find user profiles by filter: %w", err)
	}

	return profiles, nil
}

// Count returns the number of user profiles matching the filter
func (r *UserProfileRepositoryImpl) Count(ctx context.Context, filter models.UserProfileFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.UserProfile{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count user profiles: %w", err)
	}

	return count, nil
}

// Exists checks if any user profile matching the filter exists
func (r *UserProfileRepositoryImpl) Exists(ctx context.Context, filter models.UserProfileFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActiveByIDs returns the active subset of ids. The input order is the
// rule's target order, so it is preserved for round-robin stability.
func (r *UserProfileRepositoryImpl) ListActiveByIDs(ctx context.Context, ids []int64) ([]*models.UserProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	db := r.getDB(ctx)

	var profiles []*models.UserProfile
	err := db.Where("id IN ?", ids).
		Where("status = ?", models.UserStatusActive).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active user profiles: %w", err)
	}

	byID := make(map[int64]*models.UserProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	ordered := make([]*models.UserProfile, 0, len(profiles))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}

	return ordered, nil
}
