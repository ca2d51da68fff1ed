// Package businessflow contains the business logic for the lead allocation engine.
package businessflow

import (
	"time"

	"github.com/linkcrm/lead-engine/app/dto"
	"github.com/linkcrm/lead-engine/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for request tracking
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func timeRangesToDTO(t *models.TimeRanges) *dto.TimeRangesDTO {
	if t == nil {
		return nil
	}
	return &dto.TimeRangesDTO{
		Start:    t.Start,
		End:      t.End,
		Weekdays: t.Weekdays,
	}
}

func timeRangesFromDTO(t *dto.TimeRangesDTO) *models.TimeRanges {
	if t == nil {
		return nil
	}
	return &models.TimeRanges{
		Start:    t.Start,
		End:      t.End,
		Weekdays: t.Weekdays,
	}
}

// ToAllocationRuleItem converts a rule model to its listing DTO
func ToAllocationRuleItem(rule *models.AllocationRule) dto.AllocationRuleItem {
	return dto.AllocationRuleItem{
		ID:                  rule.ID.String(),
		Name:                rule.Name,
		Description:         rule.Description,
		OrganizationID:      rule.OrganizationID.String(),
		IsActive:            rule.Active(),
		Priority:            rule.Priority,
		SourceTypes:         rule.SourceTypes,
		LeadTypes:           rule.LeadTypes,
		CommunityTypes:      rule.CommunityTypes,
		TimeRanges:          timeRangesToDTO(rule.TimeRanges),
		TargetType:          rule.TargetType,
		TargetUsers:         rule.TargetUsers,
		TargetOrganizations: rule.TargetOrganizations,
		AllocationMethod:    rule.AllocationMethod,
		CreatedAt:           rule.CreatedAt.Format(time.RFC3339),
	}
}

// ToCommunityMappingRuleItem converts a mapping rule model to its listing DTO
func ToCommunityMappingRuleItem(rule *models.CommunityMappingRule) dto.CommunityMappingRuleItem {
	return dto.CommunityMappingRuleItem{
		ID:              rule.ID.String(),
		Name:            rule.Name,
		Description:     rule.Description,
		TargetCommunity: rule.TargetCommunity,
		Priority:        rule.Priority,
		ConfidenceScore: rule.ConfidenceScore,
		IsActive:        rule.Active(),
		CampaignIDs:     rule.CampaignIDs,
		CampaignNames:   rule.CampaignNames,
		UnitIDs:         rule.UnitIDs,
		UnitNames:       rule.UnitNames,
		CreativeIDs:     rule.CreativeIDs,
		CreativeNames:   rule.CreativeNames,
		Areas:           rule.Areas,
		Locations:       rule.Locations,
		CreatedAt:       rule.CreatedAt.Format(time.RFC3339),
	}
}

// ToDuplicateNotificationItem converts a notification model to its listing DTO
func ToDuplicateNotificationItem(n *models.DuplicateNotification) dto.DuplicateNotificationItem {
	return dto.DuplicateNotificationItem{
		ID:              n.ID.String(),
		NewLeadID:       n.NewLeadID,
		OriginalLeadID:  n.OriginalLeadID,
		DuplicateType:   n.DuplicateType,
		DuplicatePhone:  n.CustomerPhone,
		DuplicateWechat: n.CustomerWechat,
		Status:          n.NotificationStatus,
		CreatedAt:       n.CreatedAt.Format(time.RFC3339),
	}
}
