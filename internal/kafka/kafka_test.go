package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

type scriptedReader struct {
	msgs []kafka.Message
	next int
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if r.next < len(r.msgs) {
		m := r.msgs[r.next]
		r.next++
		return m, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) Close() error { return nil }

func TestPublishOrderPaid(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{Writer: w, OrderPaidTopic: "storefront.order.paid", Origin: "node-a"}

	err := p.PublishOrderPaid(context.Background(), models.OrderPaidEvent{
		OrderID: "ord-1",
		UserID:  "user-1",
		Total:   decimal.RequireFromString("84.00"),
		Tickets: 3,
	})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "storefront.order.paid", msg.Topic)
	assert.Equal(t, "ord-1", string(msg.Key))
	assert.Equal(t, "node-a", origin(msg))

	var got models.OrderPaidEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, 3, got.Tickets)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(84)))
}

func TestPublish_WrapsWriterError(t *testing.T) {
	p := &Producer{Writer: &recordingWriter{err: errors.New("leader not available")}, TicketRedeemedTopic: "storefront.ticket.redeemed"}

	err := p.PublishTicketRedeemed(context.Background(), models.TicketRedeemedEvent{TicketID: "t1"})
	assert.ErrorContains(t, err, "storefront.ticket.redeemed")
	assert.ErrorContains(t, err, "leader not available")
}

func TestDisabledProducer_IsNoop(t *testing.T) {
	p := NewDisabledProducer(nil)

	assert.NoError(t, p.PublishTicketRedeemed(context.Background(), models.TicketRedeemedEvent{TicketID: "t1"}))
	assert.NoError(t, p.Close())
}

func TestConsumeTicketRedeemed_SkipsOwnAndMalformed(t *testing.T) {
	event := func(id, from string) kafka.Message {
		body, _ := json.Marshal(models.TicketRedeemedEvent{TicketID: id, EventID: "evt-1", ScannedAt: time.Now().UTC()})
		return kafka.Message{Value: body, Headers: []kafka.Header{{Key: OriginHeader, Value: []byte(from)}}}
	}
	reader := &scriptedReader{msgs: []kafka.Message{
		event("t1", "node-b"),
		event("t2", "node-a"),
		{Value: []byte("{broken")},
		event("t3", "node-c"),
	}}
	c := &Consumer{Reader: reader, Origin: "node-a"}

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- c.ConsumeTicketRedeemed(ctx, func(e models.TicketRedeemedEvent) {
			got = append(got, e.TicketID)
			if len(got) == 2 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, []string{"t1", "t3"}, got)
}
