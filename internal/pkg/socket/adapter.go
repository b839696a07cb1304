package socket

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Packet 一次广播的路由信息，跨节点传输
type Packet struct {
	Rooms  []string        `json:"rooms,omitempty"`
	Except string          `json:"except,omitempty"`
	All    bool            `json:"all,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// Adapter 广播适配器，多实例部署时把广播扇出到所有节点
type Adapter interface {
	Broadcast(ctx context.Context, p *Packet) error
	// Run 订阅广播并交给 deliver 投递到本节点连接，阻塞直到 ctx 结束
	Run(ctx context.Context, deliver func(*Packet)) error
}

// RedisAdapter 基于 Redis Pub/Sub，所有节点（含发送方）都从订阅收到广播
type RedisAdapter struct {
	client  *redis.Client
	channel string

	readyOnce sync.Once
	ready     chan struct{}
}

func NewRedisAdapter(client *redis.Client, channel string) *RedisAdapter {
	return &RedisAdapter{
		client:  client,
		channel: channel,
		ready:   make(chan struct{}),
	}
}

// Ready 订阅建立后关闭
func (a *RedisAdapter) Ready() <-chan struct{} {
	return a.ready
}

func (a *RedisAdapter) Broadcast(ctx context.Context, p *Packet) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err = a.client.Publish(ctx, a.channel, payload).Err(); err != nil {
		return fmt.Errorf("socket: publish broadcast: %w", err)
	}
	return nil
}

func (a *RedisAdapter) Run(ctx context.Context, deliver func(*Packet)) error {
	sub := a.client.Subscribe(ctx, a.channel)
	defer func() {
		_ = sub.Close()
	}()

	// 等待订阅确认，避免 Ready 之前发布的消息丢失
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("socket: subscribe %s: %w", a.channel, err)
	}
	a.readyOnce.Do(func() { close(a.ready) })
	log.Info("socket: redis adapter subscribed", "channel", a.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var p Packet
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				log.Warn("socket: bad broadcast packet", "err", err)
				continue
			}
			deliver(&p)
		}
	}
}
