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

const (
	partyKeyPrefix   = "party:"
	partyMsgIndexKey = "party:msg:"

	// maxMutateRetries 限制乐观锁冲突后的重试次数，
	// 超过后以 ErrMutateRetryExhausted 失败，由上层转成“请重试”结果
	maxMutateRetries = 3
)

// ErrMutateRetryExhausted 表示乐观并发重试次数耗尽，属于瞬时冲突，可立即重试
var ErrMutateRetryExhausted = errors.New("party mutation retries exhausted")

// PartyRepository 以单文档形式在 Redis 中维护 Party 记录。
// 槽位变更通过 WATCH + 事务管道实现 compare-and-swap：
// 读取最新快照，应用纯变更函数，仅在文档自读取后未被改动时写回。
// 宿主可能运行多个实例，因此绝不依赖进程内锁。
type PartyRepository struct {
	rdb *redis.Client
}

func NewPartyRepository(rdb *redis.Client) *PartyRepository {
	return &PartyRepository{rdb: rdb}
}

func partyKey(id string) string {
	return partyKeyPrefix + id
}

func msgIndexKey(messageID string) string {
	return partyMsgIndexKey + messageID
}

// Create 写入一条新的 Party 文档
func (r *PartyRepository) Create(ctx context.Context, party *models.Party) error {
	payload, err := json.Marshal(party)
	if err != nil {
		return fmt.Errorf("marshal party %s: %w", party.ID, err)
	}
	if err := r.rdb.Set(ctx, partyKey(party.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("create party %s: %w", party.ID, err)
	}
	if party.MessageID != "" {
		if err := r.rdb.Set(ctx, msgIndexKey(party.MessageID), party.ID, 0).Err(); err != nil {
			return fmt.Errorf("index party %s by message: %w", party.ID, err)
		}
	}
	return nil
}

// GetByID 按 ID 获取 Party；不存在时返回 (nil, nil)，不作为错误处理
func (r *PartyRepository) GetByID(ctx context.Context, id string) (*models.Party, error) {
	data, err := r.rdb.Get(ctx, partyKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get party %s: %w", id, err)
	}

	var party models.Party
	if err := json.Unmarshal([]byte(data), &party); err != nil {
		return nil, fmt.Errorf("unmarshal party %s: %w", id, err)
	}
	return &party, nil
}

// GetByMessage 通过公共消息 ID 反查 Party；不存在时返回 (nil, nil)
func (r *PartyRepository) GetByMessage(ctx context.Context, messageID string) (*models.Party, error) {
	id, err := r.rdb.Get(ctx, msgIndexKey(messageID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve party by message %s: %w", messageID, err)
	}
	return r.GetByID(ctx, id)
}

// MutateSlots 对 Party 文档执行一次原子的读-改-写。
// fn 必须是纯函数：它可能在冲突重试时被多次调用。
// fn 返回错误时放弃写入，并把该错误原样返回（用于领域层的负向结果）。
// Party 不存在时返回 (nil, nil)。
func (r *PartyRepository) MutateSlots(ctx context.Context, id string, fn func(*models.Party) error) (*models.Party, error) {
	key := partyKey(id)

	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		var mutated *models.Party

		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				// 不存在：保持 mutated 为 nil，正常返回
				return nil
			}
			if err != nil {
				return err
			}

			var party models.Party
			if err := json.Unmarshal([]byte(data), &party); err != nil {
				return fmt.Errorf("unmarshal party %s: %w", id, err)
			}

			if err := fn(&party); err != nil {
				return err
			}

			party.Version++
			party.UpdatedAt = time.Now().UTC()

			payload, err := json.Marshal(&party)
			if err != nil {
				return fmt.Errorf("marshal party %s: %w", id, err)
			}

			// 事务管道：WATCH 的键在 GET 之后被其他请求改动时，EXEC 失败
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				return nil
			})
			if err != nil {
				return err
			}

			mutated = &party
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			// 乐观锁冲突：对最新快照重试
			continue
		}
		if err != nil {
			return nil, err
		}
		return mutated, nil
	}

	return nil, ErrMutateRetryExhausted
}

// SetStatus 覆盖 Party 的状态字段
func (r *PartyRepository) SetStatus(ctx context.Context, id string, status models.Status) (*models.Party, error) {
	return r.MutateSlots(ctx, id, func(p *models.Party) error {
		p.Status = status
		return nil
	})
}

// UpdateMessageRef 在宿主发布公共消息后，记录消息 ID 并维护反查索引
func (r *PartyRepository) UpdateMessageRef(ctx context.Context, id, messageID string) (*models.Party, error) {
	party, err := r.MutateSlots(ctx, id, func(p *models.Party) error {
		p.MessageID = messageID
		return nil
	})
	if err != nil || party == nil {
		return party, err
	}
	if err := r.rdb.Set(ctx, msgIndexKey(messageID), id, 0).Err(); err != nil {
		return nil, fmt.Errorf("index party %s by message: %w", id, err)
	}
	return party, nil
}

// Delete 逻辑删除：Party 永不物理删除，取消是一次终态状态写
func (r *PartyRepository) Delete(ctx context.Context, id string) (*models.Party, error) {
	return r.SetStatus(ctx, id, models.StatusCancelled)
}
