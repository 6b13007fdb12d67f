package models

import "time"

// Status 表示 Party 的生命周期状态
type Status string

const (
	StatusOpen      Status = "open"
	StatusFull      Status = "full"
	StatusCancelled Status = "cancelled"
)

// Slot 是 Party 内一个具名的、容量受限的成员列表
type Slot struct {
	Role     string   `json:"role"`
	Capacity int      `json:"capacity"`
	Members  []string `json:"members"`
}

// IsFull reports whether the slot has no free capacity left.
func (s *Slot) IsFull() bool {
	return len(s.Members) >= s.Capacity
}

// HasMember reports whether the user occupies this slot.
func (s *Slot) HasMember(userID string) bool {
	for _, id := range s.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// Party 是活动组队记录，以单文档形式存储在 Redis 中。
// 槽位表保持角色声明顺序，角色名在一个 Party 内唯一。
type Party struct {
	ID          string    `json:"id"`
	GuildID     string    `json:"guild_id"`
	ChannelID   string    `json:"channel_id"`
	MessageID   string    `json:"message_id"`
	LeaderID    string    `json:"leader_id"`
	Title       string    `json:"title"`
	Schedule    string    `json:"schedule"`
	Description string    `json:"description"`
	Slots       []Slot    `json:"slots"`
	Status      Status    `json:"status"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Slot returns the slot with the given role label, or nil.
func (p *Party) Slot(role string) *Slot {
	for i := range p.Slots {
		if p.Slots[i].Role == role {
			return &p.Slots[i]
		}
	}
	return nil
}

// MemberSlot returns the slot occupied by the user, or nil.
// 一个用户在同一个 Party 中最多占据一个槽位。
func (p *Party) MemberSlot(userID string) *Slot {
	for i := range p.Slots {
		if p.Slots[i].HasMember(userID) {
			return &p.Slots[i]
		}
	}
	return nil
}

// HasMember reports whether the user occupies any slot of the party.
func (p *Party) HasMember(userID string) bool {
	return p.MemberSlot(userID) != nil
}

// DeriveStatus 是唯一的状态推导入口：每次成员变更后统一调用，
// 避免状态计算散落在各个调用点。
//   - 已取消 -> cancelled（终态）
//   - 槽位表非空且全部满员 -> full
//   - 其余情况（含空槽位表）-> open
func DeriveStatus(slots []Slot, cancelled bool) Status {
	if cancelled {
		return StatusCancelled
	}
	if len(slots) == 0 {
		return StatusOpen
	}
	for i := range slots {
		if !slots[i].IsFull() {
			return StatusOpen
		}
	}
	return StatusFull
}

// PartySnapshot 是一次变更后返回给宿主的只读视图，供其重绘公共消息。
type PartySnapshot struct {
	PartyID     string `json:"party_id"`
	Title       string `json:"title"`
	Schedule    string `json:"schedule"`
	Description string `json:"description"`
	LeaderID    string `json:"leader_id"`
	Slots       []Slot `json:"slots"`
	Status      Status `json:"status"`
}

// Snapshot returns a copy of the party state that is safe to hand out:
// the slot table is deep-copied so callers can never mutate the record.
func (p *Party) Snapshot() *PartySnapshot {
	slots := make([]Slot, len(p.Slots))
	for i, s := range p.Slots {
		members := make([]string, len(s.Members))
		copy(members, s.Members)
		slots[i] = Slot{Role: s.Role, Capacity: s.Capacity, Members: members}
	}
	return &PartySnapshot{
		PartyID:     p.ID,
		Title:       p.Title,
		Schedule:    p.Schedule,
		Description: p.Description,
		LeaderID:    p.LeaderID,
		Slots:       slots,
		Status:      p.Status,
	}
}
