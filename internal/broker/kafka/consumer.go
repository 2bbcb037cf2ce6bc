package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/ShopShip/internal/broker/messages"
	"github.com/BearBump/ShopShip/internal/logging"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r   messageReader
	log *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return newConsumerWithReader(kafka.NewReader(cfg))
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, log: zap.NewNop()}
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	c.log = logging.OrNop(l)
	return c
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume delivers messages until ctx ends or the handler fails.
// A message is committed only after its handler succeeded.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := handler(msg.Key, msg.Value); err != nil {
			// not committed: the message is redelivered after restart
			return err
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

// ConsumeShippingUpdated decodes ShippingUpdated events. Undecodable messages are logged
// and committed so they do not block the partition.
func (c *Consumer) ConsumeShippingUpdated(ctx context.Context, handler func(ctx context.Context, ev messages.ShippingUpdated) error) error {
	return c.Consume(ctx, func(key, value []byte) error {
		var ev messages.ShippingUpdated
		if err := json.Unmarshal(value, &ev); err != nil {
			c.log.Warn("skip malformed shipping event", zap.ByteString("key", key), zap.Error(err))
			return nil
		}
		return handler(ctx, ev)
	})
}
