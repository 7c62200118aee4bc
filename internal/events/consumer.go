// Package events consumes the external system's filter_config.updated and
// product.indexed events and turns them into cache invalidation, the one
// piece of cross-boundary plumbing this service owns (spec §1's indexing
// pipeline and admin dashboard remain external collaborators; this package
// only reacts to their announcements).
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storefront-query-engine/internal/cache"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event is the minimal shape this service needs from either topic: which
// shop changed. Both filter_config.updated and product.indexed events carry
// this field, following the ProductEvent shape used across the teacher's
// Kafka messages.
type Event struct {
	EventType string    `json:"eventType"`
	Shop      string    `json:"shop"`
	Timestamp time.Time `json:"timestamp"`
}

// Consumer reads configuration/product-update events and invalidates the
// affected shop's cache entries, grounded on
// search-service/internal/repository/kafka/event_consumer.go's reader loop.
type Consumer struct {
	reader  *kafka.Reader
	manager *cache.Manager
	logger  *zap.Logger
}

// NewConsumer validates brokers/topic/group and builds a Consumer, matching
// the teacher's constructor validation.
func NewConsumer(brokers []string, topic, group string, manager *cache.Manager, logger *zap.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if group == "" {
		return nil, errors.New("kafka: consumer group is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})

	return &Consumer{reader: reader, manager: manager, logger: logger}, nil
}

// Start runs the read loop until ctx is cancelled. Each message is processed
// under its own 10s timeout, matching the teacher's per-message deadline.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("events: failed to read message", zap.Error(err))
			continue
		}

		msgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		c.processMessage(msgCtx, msg)
		cancel()
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Warn("events: failed to decode message", zap.Error(err))
		return
	}

	if event.Shop == "" {
		return
	}

	switch event.EventType {
	case "filter_config.updated", "product.indexed", "product.deleted":
		c.manager.InvalidateShop(event.Shop)
		c.logger.Info("events: invalidated shop cache", zap.String("shop", event.Shop), zap.String("eventType", event.EventType))
	default:
		c.logger.Debug("events: ignoring unrecognized event type", zap.String("eventType", event.EventType))
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
