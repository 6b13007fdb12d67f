package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxConcurrencyMiddleware 最大并发控制中间件
// 限制同时处理的意图数量，防止 Goroutine 数量无限增长导致 OOM
func MaxConcurrencyMiddleware(maxConcurrent int) gin.HandlerFunc {
	// 使用带缓冲的 channel 作为信号量
	sem := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		select {
		case sem <- struct{}{}: // 尝试获取信号量
			defer func() { <-sem }() // 处理完释放信号量
			c.Next()
		default:
			// 获取失败，说明并发已满，直接拒绝
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Service Unavailable - Too many concurrent requests",
			})
		}
	}
}
