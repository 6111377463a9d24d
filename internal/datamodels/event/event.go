package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/bundleshop/internal/datamodels/order"
)

// Type 事件类型，同时作为 MQ routing key / NATS subject
type Type string

const (
	TypeOrderCreated        Type = "order.created"
	TypePaymentSlipUploaded Type = "payment.slip_uploaded"
)

// Event 订单生命周期事件，投递给通知方
type Event struct {
	ID            string              `json:"id" bson:"event_id"`
	Type          Type                `json:"type" bson:"type"`
	OrderID       int64               `json:"order_id" bson:"order_id"`
	OrderNo       string              `json:"order_no" bson:"order_no"`
	FriendlyID    string              `json:"friendly_id" bson:"friendly_id"`
	Customer      order.Customer      `json:"customer" bson:"customer"`
	TotalAmount   decimal.Decimal     `json:"total_amount" bson:"-"`
	PaymentMethod order.PaymentMethod `json:"payment_method" bson:"payment_method"`
	SlipURL       string              `json:"slip_url,omitempty" bson:"slip_url,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at" bson:"occurred_at"`
}

// FromOrder 以订单当前状态构造事件
func FromOrder(t Type, o *order.Order) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          t,
		OrderID:       o.ID,
		OrderNo:       o.OrderNo,
		FriendlyID:    o.FriendlyID,
		Customer:      o.Customer,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		SlipURL:       o.PaymentSlipURL,
		OccurredAt:    time.Now(),
	}
}
