package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zenkaedev/Zenkae-sub000/internal/models"
	"github.com/zenkaedev/Zenkae-sub000/internal/services"
	"github.com/zenkaedev/Zenkae-sub000/pkg/ratelimit"
)

// PartyHandler 把网关送来的意图分发给槽位分配引擎。
// 每个意图携带 acting-user id；网关本身已通过服务令牌认证。
type PartyHandler struct {
	PartyService *services.PartyService
	Limiter      ratelimit.Limiter
	JoinPerMin   int
}

func NewPartyHandler(partyService *services.PartyService, limiter ratelimit.Limiter, joinPerMin int) *PartyHandler {
	if joinPerMin <= 0 {
		joinPerMin = 30
	}
	return &PartyHandler{
		PartyService: partyService,
		Limiter:      limiter,
		JoinPerMin:   joinPerMin,
	}
}

// CreateParty 解析创建请求并建立新的 Party
func (h *PartyHandler) CreateParty(c *gin.Context) {
	var req services.CreatePartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	party, err := h.PartyService.Create(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"outcome":  services.OutcomeOK,
		"snapshot": party.Snapshot(),
	})
}

// GetParty 返回 Party 的只读快照
func (h *PartyHandler) GetParty(c *gin.Context) {
	snapshot, err := h.PartyService.Get(c.Request.Context(), c.Param("party_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusNotFound, gin.H{"outcome": services.OutcomeNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": services.OutcomeOK, "snapshot": snapshot})
}

// GetPartyByMessage 通过公共消息 ID 反查 Party
func (h *PartyHandler) GetPartyByMessage(c *gin.Context) {
	snapshot, err := h.PartyService.GetByMessage(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusNotFound, gin.H{"outcome": services.OutcomeNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": services.OutcomeOK, "snapshot": snapshot})
}

// JoinParty 处理加入意图，带按用户的限流（防按钮连点）
func (h *PartyHandler) JoinParty(c *gin.Context) {
	var req struct {
		ActingUserID string `json:"acting_user_id" binding:"required"`
		Role         string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	if h.Limiter != nil {
		allowed, err := h.Limiter.Allow(c.Request.Context(), "join:"+req.ActingUserID, h.JoinPerMin, time.Minute)
		if err != nil {
			// 限流器自身决定降级策略（fail-open 时不返回错误），
			// 走到这里说明它选择了 fail-closed
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "限流检查失败，请稍后再试"})
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "操作过于频繁，请稍后再试"})
			return
		}
	}

	outcome, snapshot, err := h.PartyService.Join(c.Request.Context(), c.Param("party_id"), req.ActingUserID, req.Role)
	respondOutcome(c, outcome, snapshot, err)
}

// LeaveParty 处理退出意图；队长退出会被拒绝（只能取消）
func (h *PartyHandler) LeaveParty(c *gin.Context) {
	var req struct {
		ActingUserID string `json:"acting_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	outcome, snapshot, err := h.PartyService.Leave(c.Request.Context(), c.Param("party_id"), req.ActingUserID)
	respondOutcome(c, outcome, snapshot, err)
}

// KickMember 处理踢人意图；仅队长可用，且不能踢队长自己
func (h *PartyHandler) KickMember(c *gin.Context) {
	var req struct {
		ActingUserID string `json:"acting_user_id" binding:"required"`
		TargetUserID string `json:"target_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	outcome, snapshot, err := h.PartyService.Kick(c.Request.Context(), c.Param("party_id"), req.ActingUserID, req.TargetUserID)
	respondOutcome(c, outcome, snapshot, err)
}

// CancelParty 处理取消意图；仅队长可用，幂等
func (h *PartyHandler) CancelParty(c *gin.Context) {
	var req struct {
		ActingUserID string `json:"acting_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	outcome, snapshot, err := h.PartyService.Cancel(c.Request.Context(), c.Param("party_id"), req.ActingUserID)
	respondOutcome(c, outcome, snapshot, err)
}

// BindMessage 在宿主发布公共消息后记录消息 ID
func (h *PartyHandler) BindMessage(c *gin.Context) {
	var req struct {
		MessageID string `json:"message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	outcome, snapshot, err := h.PartyService.BindMessage(c.Request.Context(), c.Param("party_id"), req.MessageID)
	respondOutcome(c, outcome, snapshot, err)
}

// PublishTotem 覆盖写入公会的创建入口指针
func (h *PartyHandler) PublishTotem(c *gin.Context) {
	var req struct {
		ChannelID string `json:"channel_id" binding:"required"`
		MessageID string `json:"message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	if err := h.PartyService.PublishTotem(c.Request.Context(), c.Param("guild_id"), req.ChannelID, req.MessageID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": services.OutcomeOK})
}

// GetTotem 返回公会当前的创建入口指针
func (h *PartyHandler) GetTotem(c *gin.Context) {
	totem, err := h.PartyService.Totem(c.Request.Context(), c.Param("guild_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if totem == nil {
		c.JSON(http.StatusNotFound, gin.H{"outcome": services.OutcomeNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": services.OutcomeOK, "totem": totem})
}

// RecentParties 返回公会最近的组队历史（归档库）
func (h *PartyHandler) RecentParties(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := h.PartyService.RecentParties(c.Param("guild_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"parties": records})
}

// respondOutcome 把意图结果映射为 HTTP 状态码：
// 负向结果是正常业务响应，只有基础设施故障才是 500
func respondOutcome(c *gin.Context, outcome services.Outcome, snapshot *models.PartySnapshot, err error) {
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	switch outcome {
	case services.OutcomeNotFound:
		status = http.StatusNotFound
	case services.OutcomeForbiddenLeaderAction:
		status = http.StatusForbidden
	case services.OutcomeRoleFull, services.OutcomeAlreadyMember, services.OutcomeNotAMember:
		status = http.StatusConflict
	case services.OutcomeConflictRetryExhausted:
		// 瞬时冲突，宿主可立即重试
		status = http.StatusServiceUnavailable
	}

	body := gin.H{"outcome": outcome}
	if snapshot != nil {
		body["snapshot"] = snapshot
	}
	c.JSON(status, body)
}
