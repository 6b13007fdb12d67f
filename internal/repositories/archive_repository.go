package repositories

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zenkaedev/Zenkae-sub000/internal/models"
)

// ArchiveRepository 把 Party 的每次变更异步落库到 PostgreSQL，
// 用于历史查询和成员变更审计。实时状态以 Redis 文档为准。
type ArchiveRepository struct {
	db *gorm.DB
}

func NewArchiveRepository(db *gorm.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// SaveParty 将 Party 当前状态写入 party_records（存在则整体更新）
func (r *ArchiveRepository) SaveParty(party *models.Party) error {
	slots, err := json.Marshal(party.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots of party %s: %w", party.ID, err)
	}

	record := models.PartyRecord{
		ID:          party.ID,
		GuildID:     party.GuildID,
		ChannelID:   party.ChannelID,
		MessageID:   party.MessageID,
		LeaderID:    party.LeaderID,
		Title:       party.Title,
		Schedule:    party.Schedule,
		Description: party.Description,
		Status:      string(party.Status),
		Slots:       string(slots),
		CreatedAt:   party.CreatedAt,
		UpdatedAt:   party.UpdatedAt,
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&record).Error
}

// AppendEvent 追加一条成员变更事件
func (r *ArchiveRepository) AppendEvent(event *models.MembershipEvent) error {
	return r.db.Create(event).Error
}

// RecentParties 返回公会最近的组队记录，按更新时间倒序
func (r *ArchiveRepository) RecentParties(guildID string, limit int) ([]models.PartyRecord, error) {
	var records []models.PartyRecord
	err := r.db.Where("guild_id = ?", guildID).
		Order("updated_at desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// PartyEvents 返回某个 Party 的成员变更历史，按时间升序
func (r *ArchiveRepository) PartyEvents(partyID string) ([]models.MembershipEvent, error) {
	var events []models.MembershipEvent
	err := r.db.Where("party_id = ?", partyID).
		Order("id asc").
		Find(&events).Error
	return events, err
}
