package model

import (
	"errors"
	"fmt"
)

// OrderStatus is the lifecycle stage of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
)

// ErrInvalidStatus is returned for statuses outside the order flow.
var ErrInvalidStatus = errors.New("invalid order status")

// PaymentPix is the payment method that needs manual approval.
const PaymentPix = "PIX"

var orderFlow = []OrderStatus{StatusPending, StatusPreparing, StatusReady, StatusDelivered}

var statusLabels = map[OrderStatus]string{
	StatusPending:   "Pendente",
	StatusPreparing: "Preparando",
	StatusReady:     "Pronto",
	StatusDelivered: "Entregue",
}

// Label returns the display label, or the raw status when unknown.
func (s OrderStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// NextStatus returns the status after s. Delivered orders have no next status.
func NextStatus(s OrderStatus) (OrderStatus, error) {
	for i, st := range orderFlow {
		if st == s {
			if i == len(orderFlow)-1 {
				return "", fmt.Errorf("order already %s", s)
			}
			return orderFlow[i+1], nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// ParseOrderStatus validates a user-supplied status.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w %q: want pending, preparing, ready or delivered", ErrInvalidStatus, s)
	}
	return st, nil
}

// OrderItem is one line of an order.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is a customer order taken by the bot.
type Order struct {
	ID              string      `json:"id"`
	ContactName     string      `json:"contactName"`
	ContactNumber   string      `json:"contactNumber"`
	Items           []OrderItem `json:"items"`
	Total           float64     `json:"total"`
	Status          OrderStatus `json:"status"`
	PaymentMethod   string      `json:"paymentMethod"`
	PaymentApproved bool        `json:"paymentApproved"`
	Observations    string      `json:"observations,omitempty"`
	Date            string      `json:"date"`
}

// AwaitingPix reports whether the order shows the PIX approval action.
func (o Order) AwaitingPix() bool {
	return o.Status == StatusPending && o.PaymentMethod == PaymentPix && !o.PaymentApproved
}

// FormatPrice renders a BRL amount the way the dashboard shows it, e.g. "R$ 1.234,50".
func FormatPrice(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	cents := int64(v*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var grouped []byte
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, '.')
		}
		grouped = append(grouped, digits[i])
	}
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped, frac)
}
