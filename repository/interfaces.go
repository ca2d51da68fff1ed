// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AllocationRuleRepository defines operations for allocation rules
type AllocationRuleRepository interface {
	Repository[models.AllocationRule, models.AllocationRuleFilter]
	ByID(ctx context.Context, id uuid.UUID) (*models.AllocationRule, error)
	ListActiveByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*models.AllocationRule, error)
	Update(ctx context.Context, rule *models.AllocationRule) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RoundRobinCursorRepository defines operations for persisted round-robin cursors
type RoundRobinCursorRepository interface {
	Get(ctx context.Context, ruleID uuid.UUID) (*models.RoundRobinCursor, error)
	Create(ctx context.Context, cursor *models.RoundRobinCursor) error
	// CompareAndAdvance moves the cursor to newPosition iff its version still
	// equals expectedVersion. Returns false when another writer won the race.
	CompareAndAdvance(ctx context.Context, ruleID uuid.UUID, expectedVersion int64, newPosition int) (bool, error)
}

// LeadRepository defines operations for leads
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]
	ByLeadID(ctx context.Context, leadID string) (*models.Lead, error)
	// FindActiveByPhone returns non-terminal leads sharing the phone,
	// excluding excludeLeadID, earliest first.
	FindActiveByPhone(ctx context.Context, phone, excludeLeadID string) ([]*models.Lead, error)
	FindActiveByWechat(ctx context.Context, wechat, excludeLeadID string) ([]*models.Lead, error)
	ListByCommunity(ctx context.Context, community string, start, end *time.Time) ([]*models.Lead, error)
}

// FollowupRepository defines operations for followups
type FollowupRepository interface {
	Repository[models.Followup, models.FollowupFilter]
	ByLeadID(ctx context.Context, leadID string) (*models.Followup, error)
	UpdateOwner(ctx context.Context, leadID string, userID *int64, community *string) error
	// CountOpenByUsers counts non-terminal followups per candidate created
	// after since. Read with snapshot consistency; brief unevenness under
	// concurrent insertion is accepted.
	CountOpenByUsers(ctx context.Context, userIDs []int64, since time.Time) (map[int64]int64, error)
}

// AllocationLogRepository defines operations for the append-only audit trail
type AllocationLogRepository interface {
	Repository[models.AllocationLog, models.AllocationLogFilter]
	ListByLead(ctx context.Context, leadID string) ([]*models.AllocationLog, error)
	StatsByRange(ctx context.Context, organizationID *uuid.UUID, start, end time.Time) (*AllocationStats, error)
	CountByMethod(ctx context.Context, organizationID *uuid.UUID, start, end time.Time) (map[string]int64, error)
	CountByAssignee(ctx context.Context, organizationID *uuid.UUID, start, end time.Time) (map[int64]int64, error)
	RuleReferenced(ctx context.Context, ruleID uuid.UUID) (bool, error)
}

// AllocationStats aggregates decision outcomes over a date range
type AllocationStats struct {
	TotalLeads     int64
	AllocatedLeads int64
	DuplicateLeads int64
	AvgLatencyMS   float64
}

// DuplicateNotificationRepository defines operations for duplicate notifications
type DuplicateNotificationRepository interface {
	Repository[models.DuplicateNotification, models.DuplicateNotificationFilter]
	ByID(ctx context.Context, id uuid.UUID) (*models.DuplicateNotification, error)
	ListPendingByUser(ctx context.Context, userID int64) ([]*models.DuplicateNotification, error)
	MarkHandled(ctx context.Context, id uuid.UUID, handledAt time.Time) error
	ExistsForPair(ctx context.Context, newLeadID, originalLeadID, duplicateType string) (bool, error)
}

// CommunityMappingRuleRepository defines operations for community mapping rules
type CommunityMappingRuleRepository interface {
	Repository[models.CommunityMappingRule, models.CommunityMappingRuleFilter]
	ByID(ctx context.Context, id uuid.UUID) (*models.CommunityMappingRule, error)
	// ListActive returns active rules ordered by priority descending, then
	// confidence score descending, then created_at ascending.
	ListActive(ctx context.Context) ([]*models.CommunityMappingRule, error)
	Update(ctx context.Context, rule *models.CommunityMappingRule) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserProfileRepository defines operations for sales profiles
type UserProfileRepository interface {
	Repository[models.UserProfile, models.UserProfileFilter]
	ByID(ctx context.Context, id int64) (*models.UserProfile, error)
	// ListActiveByIDs returns the active subset of ids preserving input order.
	ListActiveByIDs(ctx context.Context, ids []int64) ([]*models.UserProfile, error)
}

// OrganizationRepository defines operations for organizations
type OrganizationRepository interface {
	Repository[models.Organization, models.OrganizationFilter]
	ByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	// ByCommunity returns the organization whose footprint covers the community.
	ByCommunity(ctx context.Context, community string) (*models.Organization, error)
}
