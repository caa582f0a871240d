package model

import "time"

// Channel 表示服务器内的一个语音/文字频道。
type Channel struct {
	ChannelID string `bson:"channel_id" json:"channelId"` // 主键
	ServerID  string `bson:"server_id" json:"serverId"`
	Name      string `bson:"name" json:"name"`
	Order     int32  `bson:"order,omitempty" json:"order"`

	CreateTime time.Time `bson:"create_time" json:"createTime"`
	UpdateTime time.Time `bson:"update_time" json:"updateTime"`
}

func (c *Channel) GetTableName() string { return "channels" }
