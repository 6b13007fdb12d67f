package models

import "time"

// PartyRecord 是 Party 在 PostgreSQL 中的持久化副本，用于历史查询。
// 实时状态以 Redis 文档为准，这里只做异步落库。
type PartyRecord struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	GuildID     string    `gorm:"not null;index" json:"guild_id"`
	ChannelID   string    `gorm:"not null" json:"channel_id"`
	MessageID   string    `gorm:"index" json:"message_id"`
	LeaderID    string    `gorm:"not null" json:"leader_id"`
	Title       string    `gorm:"type:varchar(255)" json:"title"`
	Schedule    string    `gorm:"type:varchar(255)" json:"schedule"`
	Description string    `json:"description"`
	Status      string    `gorm:"not null;default:open" json:"status"`
	Slots       string    `gorm:"type:jsonb" json:"slots"` // 槽位表的 JSON 快照
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (PartyRecord) TableName() string {
	return "party_records"
}

// MembershipEvent 记录一次成员变更（加入/退出/踢出/取消），用于审计
type MembershipEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PartyID   string    `gorm:"not null;index;size:36" json:"party_id"`
	GuildID   string    `gorm:"not null;index" json:"guild_id"`
	Type      string    `gorm:"not null;size:16" json:"type"` // created, joined, left, kicked, cancelled
	ActorID   string    `gorm:"not null" json:"actor_id"`
	TargetID  string    `json:"target_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (MembershipEvent) TableName() string {
	return "membership_events"
}
