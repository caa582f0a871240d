package model

import "time"

// Status
const (
	UserNormal   int32 = 0
	UserBanned   int32 = 1
	UserClosed   int32 = 2
	UserReadOnly int32 = 3
)

// User 表示语音社区中的用户主档。
// 进度字段（level/xp/...）由进度引擎维护，任何一次发放之后
// 必须满足 xp < requiredXp(level)。
type User struct {
	// —— 基础标识 ——
	UserID   string `bson:"user_id" json:"userId"`   // 全局唯一、不可变的用户ID（主键）
	Nickname string `bson:"nickname" json:"nickname"`
	FaceURL  string `bson:"face_url,omitempty" json:"faceUrl,omitempty"`
	Status   int32  `bson:"status,omitempty" json:"status"` // 0=正常,1=禁用,2=注销,3=冻结只读

	// —— 等级与经验 ——
	Level      int32   `bson:"level" json:"level"`
	XP         int64   `bson:"xp" json:"xp"`                   // 当前等级内的经验，升级循环保证不溢出
	RequiredXP int64   `bson:"required_xp" json:"requiredXp"`  // 当前等级升级所需经验（随 level 重算）
	Progress   float64 `bson:"progress" json:"progress"`       // xp / requiredXp，展示用
	VIPTier    int32   `bson:"vip_tier,omitempty" json:"vip"`  // VIP 档位，加成 1 + 0.2*tier

	// —— 实时位置（展示用，允许轻微不一致）——
	CurrentServerID  string `bson:"current_server_id,omitempty" json:"currentServerId,omitempty"`
	CurrentChannelID string `bson:"current_channel_id,omitempty" json:"currentChannelId,omitempty"`

	// —— 进度引擎时间戳 ——
	LastActiveAt    time.Time `bson:"last_active_at,omitempty" json:"lastActiveAt"`
	LastXPAwardedAt time.Time `bson:"last_xp_awarded_at,omitempty" json:"lastXpAwardedAt"` // 只在发放成功后前移

	// —— 时间与扩展 ——
	CreateTime time.Time `bson:"create_time" json:"createTime"`
	UpdateTime time.Time `bson:"update_time" json:"updateTime"`
	Ex         string    `bson:"ex,omitempty" json:"-"` // 预留扩展(JSON)
}

func (u *User) GetUserID() string    { return u.UserID }
func (u *User) GetTableName() string { return "users" }
