package consumer

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"

	"github.com/zenkaedev/Zenkae-sub000/internal/models"
	"github.com/zenkaedev/Zenkae-sub000/internal/repositories"
	"github.com/zenkaedev/Zenkae-sub000/pkg/ws"
)

// PartyEventConsumer 消费 Party 事件并把私信提醒推给受影响的用户。
// 投递是尽力而为的：用户不在线或通道失败时事件照常标记为已消费。
type PartyEventConsumer struct {
	archive *repositories.ArchiveRepository
	hub     *ws.Hub
}

func NewPartyEventConsumer(archive *repositories.ArchiveRepository, hub *ws.Hub) *PartyEventConsumer {
	return &PartyEventConsumer{
		archive: archive,
		hub:     hub,
	}
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (consumer *PartyEventConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (consumer *PartyEventConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (consumer *PartyEventConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event models.PartyEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			log.Printf("反序列化事件失败: %v", err)
			session.MarkMessage(message, "")
			continue
		}

		consumer.dispatch(&event)
		session.MarkMessage(message, "")
	}
	return nil
}

// dispatch 决定哪些用户需要收到私信提醒
func (consumer *PartyEventConsumer) dispatch(event *models.PartyEvent) {
	if consumer.hub == nil {
		return
	}

	switch event.Type {
	case models.EventMemberKicked:
		// 只提醒被踢的用户
		if event.TargetID != "" {
			consumer.hub.NotifyUser(event.TargetID, event)
		}

	case models.EventPartyCancelled:
		// 提醒除队长外的全部在座成员，名单从归档库取
		for _, userID := range consumer.memberIDs(event.PartyID) {
			if userID != event.ActorID {
				consumer.hub.NotifyUser(userID, event)
			}
		}
	}
}

// memberIDs 从归档记录里还原 Party 的成员名单
func (consumer *PartyEventConsumer) memberIDs(partyID string) []string {
	if consumer.archive == nil {
		return nil
	}

	events, err := consumer.archive.PartyEvents(partyID)
	if err != nil {
		log.Printf("读取 Party %s 的事件历史失败: %v", partyID, err)
		return nil
	}

	// 按事件历史重放在座名单：joined 加入，left/kicked 移除
	seated := make(map[string]bool)
	for i := range events {
		e := &events[i]
		switch e.Type {
		case models.EventPartyCreated, models.EventMemberJoined:
			seated[e.ActorID] = true
		case models.EventMemberLeft:
			delete(seated, e.ActorID)
		case models.EventMemberKicked:
			delete(seated, e.TargetID)
		}
	}

	ids := make([]string, 0, len(seated))
	for id := range seated {
		ids = append(ids, id)
	}
	return ids
}

func StartConsumer(brokers []string, groupID string, topic string, consumer *PartyEventConsumer) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		log.Fatalf("创建消费者组客户端失败: %v", err)
	}

	ctx := context.Background()
	go func() {
		for {
			if err := client.Consume(ctx, []string{topic}, consumer); err != nil {
				log.Printf("消费者错误: %v", err)
			}
			// check if context was cancelled, signaling that the consumer should stop
			if ctx.Err() != nil {
				return
			}
		}
	}()
}
