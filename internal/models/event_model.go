package models

import "time"

// 事件类型：Party 生命周期内的成员与状态变更
const (
	EventPartyCreated   = "created"
	EventMemberJoined   = "joined"
	EventMemberLeft     = "left"
	EventMemberKicked   = "kicked"
	EventPartyCancelled = "cancelled"
)

// PartyEvent 是发往通知边界（Kafka / 网关 Hub）的事件载荷。
// 通知是尽力而为的：投递失败不影响已持久化的 Party 状态。
type PartyEvent struct {
	Type      string    `json:"type"`
	GuildID   string    `json:"guild_id"`
	PartyID   string    `json:"party_id"`
	ActorID   string    `json:"actor_id"`
	TargetID  string    `json:"target_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	Status    Status    `json:"status"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}
