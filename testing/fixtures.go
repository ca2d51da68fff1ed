package testing

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestOrganization creates an organization covering the given communities
func (tf *TestFixtures) CreateTestOrganization(name string, adminProfileID *int64, communities ...string) (*models.Organization, error) {
	org := &models.Organization{
		ID:             uuid.New(),
		Name:           name,
		AdminProfileID: adminProfileID,
		Communities:    pq.StringArray(communities),
		CreatedAt:      utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(org).Error; err != nil {
		return nil, fmt.Errorf("failed to create test organization: %w", err)
	}

	return org, nil
}

// CreateTestUser creates an active sales profile in the given organization
func (tf *TestFixtures) CreateTestUser(id int64, orgID *uuid.UUID) (*models.UserProfile, error) {
	user := &models.UserProfile{
		ID:             id,
		Nickname:       fmt.Sprintf("销售%d", id),
		Status:         models.UserStatusActive,
		OrganizationID: orgID,
		CreatedAt:      utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestLead creates a lead with a random id and phone number
func (tf *TestFixtures) CreateTestLead(source string) (*models.Lead, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	phone := fmt.Sprintf("138%s", randomDigits[:8])

	lead := &models.Lead{
		LeadID:    fmt.Sprintf("lead-%s", randomDigits),
		Phone:     &phone,
		Source:    source,
		LeadType:  "表单",
		CreatedAt: utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create test lead: %w", err)
	}

	return lead, nil
}

// CreateTestFollowup creates a followup owned by the given user
func (tf *TestFixtures) CreateTestFollowup(leadID string, ownerID *int64, stage string) (*models.Followup, error) {
	if stage == "" {
		stage = models.FollowupStagePending
	}

	followup := &models.Followup{
		LeadID:               leadID,
		InterviewsalesUserID: ownerID,
		FollowupStage:        stage,
		CreatedAt:            utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(followup).Error; err != nil {
		return nil, fmt.Errorf("failed to create test followup: %w", err)
	}

	return followup, nil
}

// CreateTestRule creates an active user-targeted round robin rule
func (tf *TestFixtures) CreateTestRule(orgID uuid.UUID, priority int, targetUsers ...int64) (*models.AllocationRule, error) {
	rule := &models.AllocationRule{
		ID:               uuid.New(),
		Name:             fmt.Sprintf("rule-p%d", priority),
		OrganizationID:   orgID,
		IsActive:         utils.ToPtr(true),
		Priority:         priority,
		TargetType:       models.TargetTypeUser,
		TargetUsers:      pq.Int64Array(targetUsers),
		AllocationMethod: models.AllocationMethodRoundRobin,
		CreatedAt:        utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to create test rule: %w", err)
	}

	return rule, nil
}

// CreateTestMappingRule creates an active campaign-id mapping rule
func (tf *TestFixtures) CreateTestMappingRule(targetCommunity string, priority int, campaignIDs ...string) (*models.CommunityMappingRule, error) {
	rule := &models.CommunityMappingRule{
		ID:              uuid.New(),
		Name:            fmt.Sprintf("mapping-%s", targetCommunity),
		TargetCommunity: targetCommunity,
		Priority:        priority,
		ConfidenceScore: 100,
		CampaignIDs:     pq.StringArray(campaignIDs),
		IsActive:        utils.ToPtr(true),
		CreatedAt:       utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to create test mapping rule: %w", err)
	}

	return rule, nil
}
