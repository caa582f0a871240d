package model

import "time"

// Server 表示一个语音服务器（社区）。
// Wealth 与成员贡献同步增长：每次经验发放，用户经验、成员贡献、
// 服务器财富三者一起变动。
type Server struct {
	ServerID    string `bson:"server_id" json:"serverId"` // 主键
	Name        string `bson:"name" json:"name"`
	OwnerUserID string `bson:"owner_user_id" json:"ownerUserId"`
	IconURL     string `bson:"icon_url,omitempty" json:"iconUrl,omitempty"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`

	Wealth int64 `bson:"wealth" json:"wealth"` // 服务器财富，只增不减（管理重置除外）

	CreateTime time.Time `bson:"create_time" json:"createTime"`
	UpdateTime time.Time `bson:"update_time" json:"updateTime"`
	Ex         string    `bson:"ex,omitempty" json:"-"`
}

func (s *Server) GetTableName() string { return "servers" }
