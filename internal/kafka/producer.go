package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/segmentio/kafka-go"
)

// OriginHeader names the instance that produced a message, so an instance
// can skip its own events when consuming.
const OriginHeader = "origin"

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer              MessageWriter
	OrderPaidTopic      string
	TicketRedeemedTopic string
	Origin              string
	Logger              *logger.Logger
}

// NewProducer builds a producer writing to brokers. Topics are chosen per
// message.
func NewProducer(brokers []string, orderPaidTopic, ticketRedeemedTopic, origin string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{
		Writer:              writer,
		OrderPaidTopic:      orderPaidTopic,
		TicketRedeemedTopic: ticketRedeemedTopic,
		Origin:              origin,
		Logger:              log,
	}
}

// NewDisabledProducer accepts every publish and drops it. Used when
// KAFKA_ENABLED is false.
func NewDisabledProducer(log *logger.Logger) *Producer {
	return &Producer{Logger: log}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, v interface{}) error {
	if p.Writer == nil {
		p.debug(fmt.Sprintf("kafka disabled, dropping %s message %s", topic, key))
		return nil
	}

	msgBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   msgBytes,
		Headers: []kafka.Header{{Key: OriginHeader, Value: []byte(p.Origin)}},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	if p.Logger != nil {
		p.Logger.LogKafka("publish", topic, key)
	}
	return nil
}

// PublishOrderPaid streams the paid order event, keyed by order id
func (p *Producer) PublishOrderPaid(ctx context.Context, event models.OrderPaidEvent) error {
	return p.Publish(ctx, p.OrderPaidTopic, event.OrderID, event)
}

// PublishTicketRedeemed streams an accepted scan, keyed by ticket id
func (p *Producer) PublishTicketRedeemed(ctx context.Context, event models.TicketRedeemedEvent) error {
	return p.Publish(ctx, p.TicketRedeemedTopic, event.TicketID, event)
}

func (p *Producer) Close() error {
	if p.Writer == nil {
		return nil
	}
	return p.Writer.Close()
}

func (p *Producer) debug(msg string) {
	if p.Logger != nil {
		p.Logger.Debug("KAFKA", msg)
	}
}
