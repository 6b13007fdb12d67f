package models

import "time"

// Totem 指向公会内“创建组队”公共入口消息，每个公会一条，整体覆盖写。
type Totem struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
