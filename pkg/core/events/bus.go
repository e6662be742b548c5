package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// 事件总线Topic
const (
	TopicExecutionEvents = "mailpilot.execution.events" // 执行状态事件流
	TopicActionOutcomes  = "mailpilot.action.outcomes"  // 动作结果（Engine消费）
)

// Bus 进程内事件总线（对外导出）
// 基于watermill gochannel实现，Gateway和Engine通过它解耦
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus 创建事件总线（对外导出的工厂方法）
func NewBus() *Bus {
	logger := watermill.NewStdLogger(false, false)
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logger)
	return &Bus{pubsub: pubsub}
}

// PublishEvent 发布执行事件
func (b *Bus) PublishEvent(ev *Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("序列化执行事件失败: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubsub.Publish(TopicExecutionEvents, msg)
}

// SubscribeEvents 订阅执行事件流
// 返回的channel在ctx取消后关闭
func (b *Bus) SubscribeEvents(ctx context.Context) (<-chan *Event, error) {
	messages, err := b.pubsub.Subscribe(ctx, TopicExecutionEvents)
	if err != nil {
		return nil, fmt.Errorf("订阅执行事件失败: %w", err)
	}

	out := make(chan *Event, 64)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- &ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// PublishOutcome 发布动作结果
func (b *Bus) PublishOutcome(outcome *ActionOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("序列化动作结果失败: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubsub.Publish(TopicActionOutcomes, msg)
}

// SubscribeOutcomes 订阅动作结果
func (b *Bus) SubscribeOutcomes(ctx context.Context) (<-chan *ActionOutcome, error) {
	messages, err := b.pubsub.Subscribe(ctx, TopicActionOutcomes)
	if err != nil {
		return nil, fmt.Errorf("订阅动作结果失败: %w", err)
	}

	out := make(chan *ActionOutcome, 64)
	go func() {
		defer close(out)
		for msg := range messages {
			var outcome ActionOutcome
			if err := json.Unmarshal(msg.Payload, &outcome); err != nil {
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- &outcome:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close 关闭事件总线
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
