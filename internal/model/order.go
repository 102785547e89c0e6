package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusShipped   = "shipped"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// OrderStatuses lists every accepted status value.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func IsValidStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// OrderDraft is a validated order that has not been persisted yet.
type OrderDraft struct {
	OrderID      string          `json:"order_id"`
	CustomerID   string          `json:"customer_id"`
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	OrderDate    time.Time       `json:"order_date"`
	Status       string          `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// Order is a persisted order.
type Order struct {
	ID           int             `json:"id"`
	OrderID      string          `json:"order_id"`
	CustomerID   string          `json:"customer_id"`
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	OrderDate    time.Time       `json:"order_date"`
	Status       string          `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

func NewOrder(d OrderDraft, createdAt time.Time) Order {
	return Order{
		OrderID:      d.OrderID,
		CustomerID:   d.CustomerID,
		ProductID:    d.ProductID,
		Quantity:     d.Quantity,
		PricePerUnit: d.PricePerUnit,
		OrderDate:    d.OrderDate,
		Status:       d.Status,
		TotalAmount:  d.TotalAmount,
		CreatedAt:    createdAt,
	}
}

type OrderFilter struct {
	CustomerID string
	Status     string
	Skip       int
	Limit      int
}
