package model

import "time"

// ApplicationStatus
const (
	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationRejected = "rejected"
)

// ApplicationID 申请主键，(userId, serverId) 对唯一。
// 同一对用户/服务器同一时间最多一条非终态申请，由主键本身保证。
func ApplicationID(userID, serverID string) string { return "ma_" + userID + "-" + serverID }

// MemberApplication 表示一次入服申请。
// 状态只会从 pending 迁移到 accepted/rejected 一次，终态记录不可再改。
type MemberApplication struct {
	ID       string `bson:"_id" json:"id"` // ma_<user>-<server>
	UserID   string `bson:"user_id" json:"userId"`
	ServerID string `bson:"server_id" json:"serverId"`

	ApplicationStatus string `bson:"application_status" json:"applicationStatus"` // pending/accepted/rejected
	Description       string `bson:"description" json:"description"`              // 申请留言

	HandledBy string     `bson:"handled_by,omitempty" json:"handledBy,omitempty"` // 审批人
	HandledAt *time.Time `bson:"handled_at,omitempty" json:"handledAt,omitempty"`

	CreateTime time.Time `bson:"create_time" json:"createTime"`
	UpdateTime time.Time `bson:"update_time" json:"updateTime"`
}

// Terminal 是否已处于终态。
func (a *MemberApplication) Terminal() bool {
	return a.ApplicationStatus == ApplicationAccepted || a.ApplicationStatus == ApplicationRejected
}

func (a *MemberApplication) GetTableName() string { return "member_applications" }
