package order

import "errors"

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// FulfillmentStatus 履约状态
type FulfillmentStatus string

const (
	StatusNew       FulfillmentStatus = "new"
	StatusConfirmed FulfillmentStatus = "confirmed"
	StatusPreparing FulfillmentStatus = "preparing"
	StatusShipped   FulfillmentStatus = "shipped"
	StatusCompleted FulfillmentStatus = "completed"
	StatusCanceled  FulfillmentStatus = "canceled"
)

// PaymentStatus 支付状态，与履约状态互相独立
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRejected PaymentStatus = "rejected"
)

// 状态历史里的 axis 取值
const (
	AxisFulfillment = "fulfillment"
	AxisPayment     = "payment"
)

var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	StatusNew:       {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusPreparing, StatusCanceled},
	StatusPreparing: {StatusShipped},
	StatusShipped:   {StatusCompleted},
	StatusCompleted: nil,
	StatusCanceled:  nil,
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:   {PaymentPending},
	PaymentPending:  {PaymentPaid, PaymentRejected},
	PaymentRejected: {PaymentUnpaid},
	PaymentPaid:     nil,
}

// ParseFulfillmentStatus 把外部输入转换为履约状态，不在枚举内返回 ErrInvalidStatus
func ParseFulfillmentStatus(s string) (FulfillmentStatus, error) {
	st := FulfillmentStatus(s)
	if _, ok := fulfillmentTransitions[st]; !ok {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// ParsePaymentStatus 把外部输入转换为支付状态
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	if _, ok := paymentTransitions[st]; !ok {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// CanTransition 判断 s -> to 是否在履约流转表内
func (s FulfillmentStatus) CanTransition(to FulfillmentStatus) bool {
	for _, next := range fulfillmentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s FulfillmentStatus) Terminal() bool {
	return len(fulfillmentTransitions[s]) == 0
}

// CanTransition 判断 s -> to 是否在支付流转表内
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Terminal() bool {
	return len(paymentTransitions[s]) == 0
}
