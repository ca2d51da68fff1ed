package models

import (
	"time"
)

// Followup stage constants. A lead whose followup sits in a terminal stage
// no longer counts toward its owner's workload and is excluded from
// duplicate detection.
const (
	FollowupStagePending   = "待接收"
	FollowupStageConfirm   = "确认需求"
	FollowupStageScheduled = "已预约"
	FollowupStageVisited   = "已到访"
	FollowupStageWon       = "赢单"
	FollowupStageLost      = "丢单"
	FollowupStageInvalid   = "无效"
)

// TerminalFollowupStages lists the stages that close a lead.
var TerminalFollowupStages = []string{
	FollowupStageWon,
	FollowupStageLost,
	FollowupStageInvalid,
}

// Followup is the mutable ownership record for a lead. The allocation
// engine's output is a write to InterviewsalesUserID (and, for community
// reallocation, ScheduledCommunity). A lead that could not be assigned keeps
// a followup with a nil owner so it stays visible as unassigned.
type Followup struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	LeadID              string     `gorm:"size:64;not null;uniqueIndex:idx_followups_leadid" json:"leadid"`
	Lead                *Lead      `gorm:"foreignKey:LeadID;references:LeadID" json:"lead,omitempty"`
	InterviewsalesUserID *int64    `gorm:"index:idx_followups_owner" json:"interviewsales_user_id,omitempty"`
	ScheduledCommunity  *string    `gorm:"size:255;index:idx_followups_community" json:"scheduledcommunity,omitempty"`
	FollowupStage       string     `gorm:"size:32;not null;default:'待接收';index:idx_followups_stage" json:"followupstage"`
	CreatedAt           time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

func (Followup) TableName() string {
	return "followups"
}

// FollowupFilter represents filter criteria for followup queries
type FollowupFilter struct {
	LeadID               *string
	InterviewsalesUserID *int64
	ScheduledCommunity   *string
	FollowupStage        *string
	CreatedAfter         *time.Time
	CreatedBefore        *time.Time
}

func (f *Followup) IsTerminal() bool {
	for _, s := range TerminalFollowupStages {
		if f.FollowupStage == s {
			return true
		}
	}
	return false
}
