package model

import "time"

// 权限等级（1~8），>=5 才能处理他人的入服申请/成员编辑。
const (
	PermVisitor      int32 = 1
	PermMember       int32 = 2
	PermChannelMod   int32 = 3
	PermChannelAdmin int32 = 4
	PermServerAdmin  int32 = 5
	PermServerOwner  int32 = 6
	PermStaff        int32 = 7
	PermOfficial     int32 = 8

	PermManageThreshold = PermServerAdmin
)

// MemberID 成员记录主键，(userId, serverId) 对唯一。
func MemberID(userID, serverID string) string { return "mb_" + userID + "-" + serverID }

// Member 表示用户与服务器的关系记录。
// 一条记录对应一个服务器 + 一个用户。
type Member struct {
	ID       string `bson:"_id" json:"id"` // mb_<user>-<server>
	UserID   string `bson:"user_id" json:"userId"`
	ServerID string `bson:"server_id" json:"serverId"`

	// —— 基本展示信息 ——
	Nickname string `bson:"nickname,omitempty" json:"nickname,omitempty"` // 服务器内昵称（可与全局昵称不同）

	// —— 权限/角色 ——
	PermissionLevel int32 `bson:"permission_level" json:"permissionLevel"` // 1~8

	// —— 贡献 ——
	Contribution int64 `bson:"contribution" json:"contribution"` // 只增不减（管理重置除外）

	// —— 风控状态 ——
	IsBlocked bool `bson:"is_blocked" json:"isBlocked"` // 被拉黑的成员不能发起服务器操作

	// —— 时间与扩展 ——
	JoinTime   time.Time `bson:"join_time" json:"joinTime"`
	UpdateTime time.Time `bson:"update_time" json:"updateTime"`
	Ex         string    `bson:"ex,omitempty" json:"-"`
}

func (m *Member) GetTableName() string { return "members" }
