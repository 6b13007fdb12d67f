package routers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zenkaedev/Zenkae-sub000/internal/handlers"
	"github.com/zenkaedev/Zenkae-sub000/middleware/jwt"
	logger "github.com/zenkaedev/Zenkae-sub000/middleware/log"
	"github.com/zenkaedev/Zenkae-sub000/pkg/middlewares"
	"github.com/zenkaedev/Zenkae-sub000/pkg/ws"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine,
	tokenManager *jwt.TokenManager,
	partyHandler *handlers.PartyHandler,
	hub *ws.Hub, // 注入 Hub，网关通过 WS 接收快照与通知
) {
	// 每个意图请求注入 trace id，便于跨 CAS 重试与通知链路追踪
	r.Use(logger.TraceMiddleware())

	// WebSocket 路由（网关接入）
	r.GET("/ws", middlewares.AuthMiddleware(tokenManager), func(c *gin.Context) {
		ws.ServeWs(hub, c)
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"Status": "OK",
		})
	})

	// 意图并发上限，防止单实例过载
	r.Use(middlewares.MaxConcurrencyMiddleware(1024))

	RegisterPartyRoutes(r, tokenManager, partyHandler)
}

// RegisterPartyRoutes 注册组队相关路由，全部要求网关服务令牌
func RegisterPartyRoutes(r *gin.Engine, tokenManager *jwt.TokenManager, partyHandler *handlers.PartyHandler) {
	api := r.Group("/api/v1")
	api.Use(middlewares.AuthMiddleware(tokenManager))
	{
		// Party 意图
		api.POST("/parties", partyHandler.CreateParty)                    // 创建组队
		api.GET("/parties/:party_id", partyHandler.GetParty)              // 查询快照
		api.POST("/parties/:party_id/join", partyHandler.JoinParty)       // 加入角色
		api.POST("/parties/:party_id/leave", partyHandler.LeaveParty)     // 退出
		api.POST("/parties/:party_id/kick", partyHandler.KickMember)      // 踢出成员（仅队长）
		api.POST("/parties/:party_id/cancel", partyHandler.CancelParty)   // 取消（仅队长，终态）
		api.PUT("/parties/:party_id/message", partyHandler.BindMessage)   // 绑定公共消息
		api.GET("/messages/:message_id/party", partyHandler.GetPartyByMessage)

		// Totem 与公会历史
		api.PUT("/guilds/:guild_id/totem", partyHandler.PublishTotem)     // 发布创建入口
		api.GET("/guilds/:guild_id/totem", partyHandler.GetTotem)         // 查询创建入口
		api.GET("/guilds/:guild_id/parties", partyHandler.RecentParties)  // 最近组队历史
	}
}
