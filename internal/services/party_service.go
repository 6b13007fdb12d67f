package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenkaedev/Zenkae-sub000/internal/models"
	"github.com/zenkaedev/Zenkae-sub000/internal/repositories"
	"github.com/zenkaedev/Zenkae-sub000/internal/slotspec"
	"github.com/zenkaedev/Zenkae-sub000/internal/utils"
)

// Outcome 是每个意图的处理结果，供宿主向用户渲染反馈。
// 领域层面的失败（满员、重复加入等）是正常的负向结果，不是 error。
type Outcome string

const (
	OutcomeOK                     Outcome = "ok"
	OutcomeNotFound               Outcome = "not_found"
	OutcomeRoleFull               Outcome = "role_full"
	OutcomeAlreadyMember          Outcome = "already_member"
	OutcomeNotAMember             Outcome = "not_a_member"
	OutcomeForbiddenLeaderAction  Outcome = "forbidden_leader_action"
	OutcomeConflictRetryExhausted Outcome = "conflict_retry_exhausted"
)

// 变更函数内部使用的哨兵错误，finish 统一映射为 Outcome
var (
	errPartyUnavailable = errors.New("party is cancelled")
	errRoleFull         = errors.New("role is full or absent")
	errAlreadyMember    = errors.New("user already occupies a slot")
	errNotAMember       = errors.New("user occupies no slot")
	errForbiddenLeader  = errors.New("leader-only action")
)

// Notifier 是尽力而为的通知边界（Kafka 生产者）
type Notifier interface {
	PublishPartyEvent(event *models.PartyEvent) error
}

// Broadcaster 把最新快照推送给网关节点（WebSocket Hub）
type Broadcaster interface {
	BroadcastToGuild(guildID string, message any)
}

// PartyService 实现槽位分配引擎与 Party 生命周期。
// 所有成员变更都通过 PartyRepository.MutateSlots 的 CAS 循环执行：
// 容量与唯一性检查发生在变更时刻，绝不提前单独校验，
// 避免 check-then-act 竞态。
type PartyService struct {
	partyRepo *repositories.PartyRepository
	totemRepo *repositories.TotemRepository
	archive   *repositories.ArchiveRepository
	notifier  Notifier
	hub       Broadcaster
	pool      *utils.WorkerPool
	logger    *zap.Logger
}

// NewPartyService 创建服务实例。notifier、hub、archive、pool 均可为 nil，
// 对应能力缺失时服务降级为仅维护 Party 状态。
func NewPartyService(
	partyRepo *repositories.PartyRepository,
	totemRepo *repositories.TotemRepository,
	archive *repositories.ArchiveRepository,
	notifier Notifier,
	hub Broadcaster,
	pool *utils.WorkerPool,
	logger *zap.Logger,
) *PartyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartyService{
		partyRepo: partyRepo,
		totemRepo: totemRepo,
		archive:   archive,
		notifier:  notifier,
		hub:       hub,
		pool:      pool,
		logger:    logger,
	}
}

// CreatePartyRequest 创建组队请求
type CreatePartyRequest struct {
	GuildID     string `json:"guild_id" binding:"required"`
	ChannelID   string `json:"channel_id" binding:"required"`
	LeaderID    string `json:"leader_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Schedule    string `json:"schedule"`
	Description string `json:"description"`
	SlotSpec    string `json:"slot_spec"`
}

// Create 解析容量描述符并创建 Party，队长自动入座第一个有容量的角色。
// 描述符解析不出任何角色时仍然创建（队长未入座）——创建表单是自由文本，
// 这里保持宽松行为。
func (s *PartyService) Create(ctx context.Context, req *CreatePartyRequest) (*models.Party, error) {
	slots := slotspec.Parse(req.SlotSpec)
	if len(slots) > 0 {
		slots[0].Members = append(slots[0].Members, req.LeaderID)
	}

	now := time.Now().UTC()
	party := &models.Party{
		ID:          uuid.NewString(),
		GuildID:     req.GuildID,
		ChannelID:   req.ChannelID,
		LeaderID:    req.LeaderID,
		Title:       req.Title,
		Schedule:    req.Schedule,
		Description: req.Description,
		Slots:       slots,
		Status:      models.DeriveStatus(slots, false),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.partyRepo.Create(ctx, party); err != nil {
		return nil, err
	}

	s.recordAndAnnounce(party, models.EventPartyCreated, req.LeaderID, "", "")
	return party, nil
}

// Join 将用户加入指定角色。失败条件：Party 不存在或已取消、角色不在槽位表
// 或已满员、用户已占据任一槽位。角色缺失与满员同样处理——解析阶段就丢弃了
// 零容量角色，缺失的角色等价于没有剩余容量。
func (s *PartyService) Join(ctx context.Context, partyID, userID, role string) (Outcome, *models.PartySnapshot, error) {
	party, err := s.partyRepo.MutateSlots(ctx, partyID, func(p *models.Party) error {
		if p.Status == models.StatusCancelled {
			return errPartyUnavailable
		}
		if p.HasMember(userID) {
			return errAlreadyMember
		}
		slot := p.Slot(role)
		if slot == nil || slot.IsFull() {
			return errRoleFull
		}
		slot.Members = append(slot.Members, userID)
		p.Status = models.DeriveStatus(p.Slots, false)
		return nil
	})
	return s.finish(party, err, models.EventMemberJoined, userID, "", role)
}

// Leave 将用户从其占据的槽位移除。队长不能退出，只能取消整个 Party。
// 空出的槽位总会重新打开容量，full 状态无条件回落为 open。
func (s *PartyService) Leave(ctx context.Context, partyID, userID string) (Outcome, *models.PartySnapshot, error) {
	party, err := s.partyRepo.MutateSlots(ctx, partyID, func(p *models.Party) error {
		if p.Status == models.StatusCancelled {
			return errPartyUnavailable
		}
		if p.LeaderID == userID {
			return errForbiddenLeader
		}
		return removeMember(p, userID)
	})
	return s.finish(party, err, models.EventMemberLeft, userID, "", "")
}

// Kick 由队长将目标用户移出。移除语义与 Leave 完全一致；
// 授权检查（只能队长踢人、不能踢队长自己）在这一层完成。
func (s *PartyService) Kick(ctx context.Context, partyID, actingUserID, targetUserID string) (Outcome, *models.PartySnapshot, error) {
	party, err := s.partyRepo.MutateSlots(ctx, partyID, func(p *models.Party) error {
		if p.Status == models.StatusCancelled {
			return errPartyUnavailable
		}
		if actingUserID != p.LeaderID || targetUserID == p.LeaderID {
			return errForbiddenLeader
		}
		return removeMember(p, targetUserID)
	})
	return s.finish(party, err, models.EventMemberKicked, actingUserID, targetUserID, "")
}

// Cancel 由队长显式取消 Party，状态进入终态 cancelled。
// 幂等：对已取消的 Party 再次调用是无操作的成功，不是错误。
func (s *PartyService) Cancel(ctx context.Context, partyID, actingUserID string) (Outcome, *models.PartySnapshot, error) {
	alreadyCancelled := false
	party, err := s.partyRepo.MutateSlots(ctx, partyID, func(p *models.Party) error {
		alreadyCancelled = p.Status == models.StatusCancelled
		if alreadyCancelled {
			return nil
		}
		if actingUserID != p.LeaderID {
			return errForbiddenLeader
		}
		p.Status = models.StatusCancelled
		return nil
	})
	if err == nil && party != nil && alreadyCancelled {
		return OutcomeOK, party.Snapshot(), nil
	}
	return s.finish(party, err, models.EventPartyCancelled, actingUserID, "", "")
}

// removeMember 是 Leave 与 Kick 共享的移除原语
func removeMember(p *models.Party, userID string) error {
	slot := p.MemberSlot(userID)
	if slot == nil {
		return errNotAMember
	}
	members := slot.Members[:0]
	for _, id := range slot.Members {
		if id != userID {
			members = append(members, id)
		}
	}
	slot.Members = members
	p.Status = models.DeriveStatus(p.Slots, false)
	return nil
}

// finish 把变更结果统一映射为 (Outcome, Snapshot)：
//   - 文档缺失 -> not_found
//   - 哨兵错误 -> 对应的负向结果
//   - CAS 重试耗尽 -> conflict_retry_exhausted（瞬时，可立即重试）
//   - 其余错误属于基础设施故障，原样向上传播
func (s *PartyService) finish(party *models.Party, err error, eventType, actorID, targetID, role string) (Outcome, *models.PartySnapshot, error) {
	switch {
	case err == nil && party == nil:
		return OutcomeNotFound, nil, nil
	case err == nil:
		s.recordAndAnnounce(party, eventType, actorID, targetID, role)
		return OutcomeOK, party.Snapshot(), nil
	case errors.Is(err, errPartyUnavailable):
		// 已取消的 Party 不再是有效的操作目标
		return OutcomeNotFound, nil, nil
	case errors.Is(err, errRoleFull):
		return OutcomeRoleFull, nil, nil
	case errors.Is(err, errAlreadyMember):
		return OutcomeAlreadyMember, nil, nil
	case errors.Is(err, errNotAMember):
		return OutcomeNotAMember, nil, nil
	case errors.Is(err, errForbiddenLeader):
		return OutcomeForbiddenLeaderAction, nil, nil
	case errors.Is(err, repositories.ErrMutateRetryExhausted):
		return OutcomeConflictRetryExhausted, nil, nil
	default:
		return "", nil, err
	}
}

// Get 返回 Party 的只读快照；不存在时返回 (nil, nil)
func (s *PartyService) Get(ctx context.Context, partyID string) (*models.PartySnapshot, error) {
	party, err := s.partyRepo.GetByID(ctx, partyID)
	if err != nil || party == nil {
		return nil, err
	}
	return party.Snapshot(), nil
}

// GetByMessage 通过公共消息 ID 解析 Party 快照；不存在时返回 (nil, nil)
func (s *PartyService) GetByMessage(ctx context.Context, messageID string) (*models.PartySnapshot, error) {
	party, err := s.partyRepo.GetByMessage(ctx, messageID)
	if err != nil || party == nil {
		return nil, err
	}
	return party.Snapshot(), nil
}

// BindMessage 在宿主发布公共消息后记录消息 ID，
// 之后的意图可以从消息反查 Party
func (s *PartyService) BindMessage(ctx context.Context, partyID, messageID string) (Outcome, *models.PartySnapshot, error) {
	party, err := s.partyRepo.UpdateMessageRef(ctx, partyID, messageID)
	switch {
	case err == nil && party == nil:
		return OutcomeNotFound, nil, nil
	case err == nil:
		s.archiveAsync(party)
		return OutcomeOK, party.Snapshot(), nil
	case errors.Is(err, repositories.ErrMutateRetryExhausted):
		return OutcomeConflictRetryExhausted, nil, nil
	default:
		return "", nil, err
	}
}

// PublishTotem 覆盖写入公会的创建入口指针。
// 重复发布是幂等的（指针记录不会重复），上一条入口消息是否删除由宿主决定。
func (s *PartyService) PublishTotem(ctx context.Context, guildID, channelID, messageID string) error {
	return s.totemRepo.Save(ctx, guildID, channelID, messageID)
}

// Totem 返回公会当前的入口指针；未发布过时返回 (nil, nil)
func (s *PartyService) Totem(ctx context.Context, guildID string) (*models.Totem, error) {
	return s.totemRepo.Get(ctx, guildID)
}

// RecentParties 返回公会最近的组队历史（来自归档库）
func (s *PartyService) RecentParties(guildID string, limit int) ([]models.PartyRecord, error) {
	if s.archive == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.archive.RecentParties(guildID, limit)
}

// recordAndAnnounce 在一次成功变更后异步落库，并把事件发往通知边界。
// 两者都是尽力而为：失败只记日志，不影响已写入的 Party 文档。
func (s *PartyService) recordAndAnnounce(party *models.Party, eventType, actorID, targetID, role string) {
	s.archiveAsync(party)

	if s.archive != nil {
		event := &models.MembershipEvent{
			PartyID:  party.ID,
			GuildID:  party.GuildID,
			Type:     eventType,
			ActorID:  actorID,
			TargetID: targetID,
			Role:     role,
		}
		s.submit(func() {
			if err := s.archive.AppendEvent(event); err != nil {
				s.logger.Warn("append membership event failed",
					zap.String("party_id", event.PartyID),
					zap.String("type", event.Type),
					zap.Error(err))
			}
		})
	}

	if s.notifier != nil {
		event := &models.PartyEvent{
			Type:      eventType,
			GuildID:   party.GuildID,
			PartyID:   party.ID,
			ActorID:   actorID,
			TargetID:  targetID,
			Role:      role,
			Status:    party.Status,
			Title:     party.Title,
			Timestamp: time.Now().UTC(),
		}
		if err := s.notifier.PublishPartyEvent(event); err != nil {
			s.logger.Warn("publish party event failed, running degraded",
				zap.String("party_id", party.ID),
				zap.String("type", eventType),
				zap.Error(err))
		}
	}

	if s.hub != nil {
		s.hub.BroadcastToGuild(party.GuildID, party.Snapshot())
	}
}

func (s *PartyService) archiveAsync(party *models.Party) {
	if s.archive == nil {
		return
	}
	// Snapshot 先行拷贝，落库协程不触碰原始文档
	record := *party
	s.submit(func() {
		if err := s.archive.SaveParty(&record); err != nil {
			s.logger.Warn("archive party failed",
				zap.String("party_id", record.ID),
				zap.Error(err))
		}
	})
}

func (s *PartyService) submit(job func()) {
	if s.pool == nil {
		job()
		return
	}
	if !s.pool.TrySubmit(job) {
		s.logger.Warn("worker pool saturated, running job inline")
		job()
	}
}
