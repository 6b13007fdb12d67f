package ws

import (
	"context"
	"encoding/json"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"github.com/zenkaedev/Zenkae-sub000/pkg/utils"
)

const (
	// 所有节点订阅的快照广播频道
	broadcastChannel = "party:broadcast"
	// 节点专属的用户通知频道前缀，按一致性哈希路由
	notifyChannelPrefix = "party:notify:"
)

// BroadcastMessage 按公会广播的载荷（通常是 PartySnapshot 或 PartyEvent）
type BroadcastMessage struct {
	GuildID string `json:"guild_id"`
	Message any    `json:"message"`
}

// UserNotice 发给单个用户的尽力而为通知（踢出、取消等场景）
type UserNotice struct {
	UserID string `json:"user_id"`
	Notice any    `json:"notice"`
}

// Hub 维护网关连接并把 Party 的最新状态推送出去：
// 公会级广播用于宿主重绘公共消息，用户级通知用于私信提醒。
// 多实例部署时通过 Redis Pub/Sub 跨节点分发，
// 用户通知按一致性哈希只投递到持有该用户连接的节点。
type Hub struct {
	// 注册的客户端（网关连接）
	clients map[*Client]bool

	// 公会对应的客户端集合 GuildID -> Client -> bool
	rooms map[string]map[*Client]bool

	// 互斥锁，保护 map 的并发读写
	mu sync.RWMutex

	// 注册/注销/广播通道
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	// Redis 客户端，用于分布式广播
	redis *redis.Client

	// 一致性哈希环与当前节点
	hashRing *utils.HashRing
	nodeID   string
}

func NewHub(redisClient *redis.Client, ring *utils.HashRing, nodeID string) *Hub {
	return &Hub{
		broadcast:  make(chan *BroadcastMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		redis:      redisClient,
		hashRing:   ring,
		nodeID:     nodeID,
	}
}

func (h *Hub) Run() {
	// 启动 Redis 订阅协程
	if h.redis != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			for _, guildID := range client.guildIDs {
				h.joinRoomLocked(guildID, client)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.leaveAllRoomsLocked(client)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			// 收集需要关闭的客户端，避免在 RLock 中修改 map
			var closedClients []*Client

			if clients, ok := h.rooms[msg.GuildID]; ok {
				for client := range clients {
					select {
					case client.send <- msg:
					default:
						// 发送缓冲区满，标记为需要关闭
						closedClients = append(closedClients, client)
					}
				}
			}
			h.mu.RUnlock()

			if len(closedClients) > 0 {
				h.mu.Lock()
				for _, client := range closedClients {
					// Double check，防止已经处理过
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
						h.leaveAllRoomsLocked(client)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// joinRoomLocked / leaveAllRoomsLocked 必须在持有写锁时调用

func (h *Hub) joinRoomLocked(guildID string, client *Client) {
	if _, ok := h.rooms[guildID]; !ok {
		h.rooms[guildID] = make(map[*Client]bool)
	}
	h.rooms[guildID][client] = true
}

func (h *Hub) leaveAllRoomsLocked(client *Client) {
	for _, guildID := range client.guildIDs {
		if room, ok := h.rooms[guildID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, guildID)
			}
		}
	}
}

// Subscribe 把已注册的客户端加入新的公会房间（网关扩容时动态订阅）
func (h *Hub) Subscribe(client *Client, guildIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, guildID := range guildIDs {
		client.guildIDs = append(client.guildIDs, guildID)
		h.joinRoomLocked(guildID, client)
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.redis.Subscribe(ctx, broadcastChannel, notifyChannelPrefix+h.nodeID)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for msg := range ch {
		switch msg.Channel {
		case broadcastChannel:
			var broadcastMsg BroadcastMessage
			if err := json.Unmarshal([]byte(msg.Payload), &broadcastMsg); err == nil {
				// 从 Redis 收到的消息直接送入本地广播，不再二次 Publish，避免死循环
				h.broadcast <- &broadcastMsg
			}
		default:
			var notice UserNotice
			if err := json.Unmarshal([]byte(msg.Payload), &notice); err == nil {
				h.deliverNoticeLocal(&notice)
			}
		}
	}
}

// BroadcastToGuild 把消息推给订阅了该公会的所有网关连接。
// 有 Redis 时走 Pub/Sub 覆盖所有节点，否则只投递本地连接。
func (h *Hub) BroadcastToGuild(guildID string, message any) {
	msg := &BroadcastMessage{
		GuildID: guildID,
		Message: message,
	}

	if h.redis != nil {
		payload, err := json.Marshal(msg)
		if err == nil && h.redis.Publish(context.Background(), broadcastChannel, payload).Err() == nil {
			return
		}
		// Redis 不可用时退化为本地投递
	}
	h.broadcast <- msg
}

// NotifyUser 把通知投递到持有该用户连接的网关节点（按一致性哈希路由）。
// 尽力而为：目标节点不在线或用户未连接时静默丢弃。
func (h *Hub) NotifyUser(userID string, notice any) {
	n := &UserNotice{UserID: userID, Notice: notice}

	targetNode := ""
	if h.hashRing != nil {
		targetNode = h.hashRing.Get(userID)
	}

	if targetNode != "" && targetNode != h.nodeID && h.redis != nil {
		if payload, err := json.Marshal(n); err == nil {
			_ = h.redis.Publish(context.Background(), notifyChannelPrefix+targetNode, payload).Err()
		}
		return
	}
	h.deliverNoticeLocal(n)
}

// deliverNoticeLocal 把用户通知交给本地所有网关连接，由网关按用户转发私信
func (h *Hub) deliverNoticeLocal(notice *UserNotice) {
	msg := &BroadcastMessage{Message: notice}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// 缓冲区满的连接交给广播路径回收
		}
	}
}
