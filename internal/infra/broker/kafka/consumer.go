package kafka

import (
	"context"
	"log/slog"

	"github.com/IBM/sarama"

	"rentalcore/internal/infra/broker"
	"rentalcore/internal/pkg/errs"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, errs.Wrap(err, "kafka: consumer group")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{group: g, handler: handler, logger: logger}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		if err := c.group.Consume(ctx, topics, consumerGroupHandler{handler: c.handler, logger: c.logger}); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler MessageHandler
	logger  *slog.Logger
}

func (h consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.handler.Handle(sess.Context(), message); err != nil {
			// left unmarked; redelivered after the next rebalance
			h.logger.Warn("kafka message not handled", "topic", message.Topic, "partition", message.Partition, "offset", message.Offset, "error", err)
			continue
		}
		sess.MarkMessage(message, "")
	}
	return nil
}

// CloudEventHandler adapts an EventHandler to Kafka messages carrying
// structured CloudEvents. Malformed envelopes are acknowledged and logged.
type CloudEventHandler struct {
	Handler broker.EventHandler
	Logger  *slog.Logger
}

func (h CloudEventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	err := broker.Dispatch(ctx, h.Handler, msg.Value)
	if errs.Is(err, broker.ErrMalformedEnvelope) {
		if h.Logger != nil {
			h.Logger.ErrorContext(ctx, "malformed event dropped", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
		return nil
	}
	return err
}
