package kafka

import (
	"Solace/internal/api/config"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// publishTimeout 生产者输入队列写满时最多等待的时长，超时丢弃事件
const publishTimeout = 200 * time.Millisecond

var ErrPublishTimeout = errors.New("kafka: producer input full, event dropped")

// EventPublisher 异步投递业务事件，投递失败只记录日志
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
	// Run 消费投递结果，阻塞直到 ctx 结束并关闭生产者
	Run(ctx context.Context) error
}

// NewEventPublisher kafka.enable 关闭时返回空实现
func NewEventPublisher(cfg config.KafkaConfig) (EventPublisher, error) {
	if !cfg.Enable {
		return &noopPublisher{}, nil
	}
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	log.Info("Kafka producer started", "topic", cfg.Topic, "brokers", cfg.Brokers)
	return newAsyncPublisher(producer, cfg.Topic), nil
}

type asyncPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	timeout  time.Duration
}

func newAsyncPublisher(producer sarama.AsyncProducer, topic string) *asyncPublisher {
	return &asyncPublisher{producer: producer, topic: topic, timeout: publishTimeout}
}

func (s *asyncPublisher) Publish(ctx context.Context, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		log.WarnContext(ctx, "kafka producer saturated, dropping event", "topic", s.topic, "key", key)
		return ErrPublishTimeout
	}
}

func (s *asyncPublisher) Run(ctx context.Context) error {
	errs := s.producer.Errors()
	for {
		select {
		case <-ctx.Done():
			return s.producer.Close()
		case perr, ok := <-errs:
			if !ok {
				return nil
			}
			log.Error("kafka publish failed", "topic", perr.Msg.Topic, "err", perr.Err)
		}
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

func (noopPublisher) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
