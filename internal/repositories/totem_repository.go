package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/zenkaedev/Zenkae-sub000/internal/models"
)

const totemKeyPrefix = "totem:"

// TotemRepository 维护每个公会唯一的“创建组队”入口指针。
// 写入是整体覆盖，不存在读-改-写冲突，重复发布最多产生一条重复消息
// （指针记录本身不会重复）。
type TotemRepository struct {
	rdb *redis.Client
}

func NewTotemRepository(rdb *redis.Client) *TotemRepository {
	return &TotemRepository{rdb: rdb}
}

func totemKey(guildID string) string {
	return totemKeyPrefix + guildID
}

// Save 覆盖写入公会的入口指针
func (r *TotemRepository) Save(ctx context.Context, guildID, channelID, messageID string) error {
	totem := models.Totem{
		GuildID:   guildID,
		ChannelID: channelID,
		MessageID: messageID,
		UpdatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(&totem)
	if err != nil {
		return fmt.Errorf("marshal totem for guild %s: %w", guildID, err)
	}
	if err := r.rdb.Set(ctx, totemKey(guildID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save totem for guild %s: %w", guildID, err)
	}
	return nil
}

// Get 获取公会的入口指针；不存在时返回 (nil, nil)
func (r *TotemRepository) Get(ctx context.Context, guildID string) (*models.Totem, error) {
	data, err := r.rdb.Get(ctx, totemKey(guildID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get totem for guild %s: %w", guildID, err)
	}

	var totem models.Totem
	if err := json.Unmarshal([]byte(data), &totem); err != nil {
		return nil, fmt.Errorf("unmarshal totem for guild %s: %w", guildID, err)
	}
	return &totem, nil
}
