package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // 允许写入消息到对端的最大时间
	pongWait       = 60 * time.Second    // 允许读取下一个 pong 消息的最大时间
	pingPeriod     = (pongWait * 9) / 10 // 发送 ping 到对端的周期。必须小于 pongWait
	maxMessageSize = 4096                // 允许来自对端的最大消息大小
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client 代表一个网关进程的 WebSocket 连接。
// 网关声明自己服务的公会列表，Hub 据此推送快照与通知。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn        // WebSocket 连接
	send     chan *BroadcastMessage // 缓冲通道，用于发送消息
	gateway  string                 // 网关标识（来自认证后的服务令牌）
	guildIDs []string               // 该网关订阅的公会列表
}

// readPump 处理网关发来的控制消息（目前只有动态订阅）
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("网关 %s 连接异常断开: %v", c.gateway, err)
			}
			break
		}

		// 控制消息: {"action": "subscribe", "guild_ids": ["..."]}
		var req struct {
			Action   string   `json:"action"`
			GuildIDs []string `json:"guild_ids"`
		}
		if err := json.Unmarshal(message, &req); err != nil {
			log.Printf("json 反序列化错误: %v", err)
			continue
		}

		if req.Action == "subscribe" && len(req.GuildIDs) > 0 {
			c.hub.Subscribe(c, req.GuildIDs)
		}
	}
}

// writePump 泵送来自 Hub 的消息到 WebSocket 连接
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			json.NewEncoder(w).Encode(msg)

			// 添加队列中的其他消息（如果有）
			n := len(c.send)
			for range n {
				json.NewEncoder(w).Encode(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs 处理网关的 WebSocket 接入请求。
// 订阅的公会列表来自查询参数，也可以在连接建立后动态 subscribe。
func ServeWs(hub *Hub, c *gin.Context) {
	gateway, exists := c.Get("gateway_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级 websocket 失败: %v", err)
		return
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan *BroadcastMessage, 256),
		gateway:  gateway.(string),
		guildIDs: c.QueryArray("guild_id"),
	}
	client.hub.register <- client
	go client.writePump()
	go client.readPump()
}
