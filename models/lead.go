package models

import (
	"time"
)

// Lead source constants mirror the intake channels the ad platforms report.
const (
	LeadSourceDouyin   = "抖音"
	LeadSourceWeixin   = "微信"
	LeadSourceXiaohong = "小红书"
)

// Lead is the immutable intake record for an inbound sales contact. Ownership
// and pipeline state live on the Followup; the lead itself is never updated
// after creation.
type Lead struct {
	LeadID       string    `gorm:"size:64;primaryKey" json:"leadid"`
	Phone        *string   `gorm:"size:32;index:idx_leads_phone" json:"phone,omitempty"`
	Wechat       *string   `gorm:"size:64;index:idx_leads_wechat" json:"wechat,omitempty"`
	Source       string    `gorm:"size:64;not null" json:"source"`
	LeadType     string    `gorm:"size:64" json:"leadtype"`
	CampaignID   *string   `gorm:"size:64" json:"campaignid,omitempty"`
	CampaignName *string   `gorm:"size:255" json:"campaignname,omitempty"`
	UnitID       *string   `gorm:"size:64" json:"unitid,omitempty"`
	UnitName     *string   `gorm:"size:255" json:"unitname,omitempty"`
	CreativeID   *string   `gorm:"size:64" json:"creativedid,omitempty"`
	CreativeName *string   `gorm:"size:255" json:"creativename,omitempty"`
	Area         *string   `gorm:"size:255" json:"area,omitempty"`
	Location     *string   `gorm:"size:255" json:"location,omitempty"`
	Remark       *string   `gorm:"type:text" json:"remark,omitempty"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_leads_created_at" json:"created_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// LeadFilter represents filter criteria for lead queries
type LeadFilter struct {
	LeadID        *string
	Phone         *string
	Wechat        *string
	Source        *string
	LeadType      *string
	CampaignID    *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
