package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/segmentio/kafka-go"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	Reader MessageReader
	Origin string
	Logger *logger.Logger
}

// NewConsumer creates a consumer for topic in its own group, so every
// instance sees every message.
func NewConsumer(brokers []string, topic, groupID, origin string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{Reader: reader, Origin: origin, Logger: log}
}

// ConsumeTicketRedeemed feeds redemptions published by other instances to
// handle until ctx is cancelled. Messages from this instance are skipped.
func (c *Consumer) ConsumeTicketRedeemed(ctx context.Context, handle func(models.TicketRedeemedEvent)) error {
	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.log("ERROR", fmt.Sprintf("read message: %v", err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if origin(msg) == c.Origin && c.Origin != "" {
			continue
		}

		var event models.TicketRedeemedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log("WARN", fmt.Sprintf("skipping malformed message at offset %d: %v", msg.Offset, err))
			continue
		}
		handle(event)
	}
}

func (c *Consumer) Close() error {
	return c.Reader.Close()
}

func origin(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == OriginHeader {
			return string(h.Value)
		}
	}
	return ""
}

func (c *Consumer) log(level, msg string) {
	if c.Logger == nil {
		return
	}
	if level == "ERROR" {
		c.Logger.Error("KAFKA", msg)
		return
	}
	c.Logger.Warn("KAFKA", msg)
}
