package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bundleshop/internal/datamodels/event"
)

type ackRecorder struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type memArchive struct {
	saved []event.Event
	err   error
}

func (m *memArchive) Save(ctx context.Context, e event.Event) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, e)
	return nil
}

func delivery(t *testing.T, ack *ackRecorder, body []byte) amqp.Delivery {
	t.Helper()
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, MessageId: "msg-1", Body: body}
}

func TestHandleDelivery_Archives(t *testing.T) {
	body, err := json.Marshal(event.Event{Type: event.TypeOrderCreated, OrderNo: "BS250101000001"})
	require.NoError(t, err)

	ack, store := &ackRecorder{}, &memArchive{}
	handleDelivery(context.Background(), store, delivery(t, ack, body))

	assert.Equal(t, 1, ack.acked)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "msg-1", store.saved[0].ID)
}

func TestHandleDelivery_BadBodyDropped(t *testing.T) {
	ack, store := &ackRecorder{}, &memArchive{}
	handleDelivery(context.Background(), store, delivery(t, ack, []byte("{oops")))

	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
	assert.Empty(t, store.saved)
}

func TestHandleDelivery_StoreFailureRequeuesOnce(t *testing.T) {
	body, err := json.Marshal(event.Event{ID: "e1", Type: event.TypePaymentSlipUploaded})
	require.NoError(t, err)
	store := &memArchive{err: errors.New("mongo down")}

	ack := &ackRecorder{}
	handleDelivery(context.Background(), store, delivery(t, ack, body))
	assert.True(t, ack.requeue)

	ack = &ackRecorder{}
	d := delivery(t, ack, body)
	d.Redelivered = true
	handleDelivery(context.Background(), store, d)
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}
