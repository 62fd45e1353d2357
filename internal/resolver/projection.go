package resolver

import (
	"errors"
	"fmt"
	"time"

	"ordergraph/internal/domain"
)

// ErrUnresolvedRelation is returned when a projection is asked to map a relation
// that was never loaded. Projections never load data themselves.
var ErrUnresolvedRelation = errors.New("relation not resolved before projection")

// OrderSummary is the read-only response shape of an order with its lines.
type OrderSummary struct {
	OrderID     int64              `json:"orderId"`
	MemberName  string             `json:"memberName"`
	OrderDate   time.Time          `json:"orderDate"`
	OrderStatus domain.OrderStatus `json:"orderStatus"`
	Address     domain.Address     `json:"address"`
	OrderItems  []OrderItemSummary `json:"orderItems"`
}

// OrderItemSummary is one order line in an OrderSummary.
type OrderItemSummary struct {
	ItemName   string `json:"itemName"`
	OrderPrice int    `json:"orderPrice"`
	Count      int    `json:"count"`
}

// SimpleOrderSummary is an order with its to-one relations only.
type SimpleOrderSummary struct {
	OrderID     int64              `json:"orderId"`
	MemberName  string             `json:"memberName"`
	OrderDate   time.Time          `json:"orderDate"`
	OrderStatus domain.OrderStatus `json:"orderStatus"`
	Address     domain.Address     `json:"address"`
}

// MapSimpleOrderSummary projects an order whose member and delivery are loaded.
func MapSimpleOrderSummary(order domain.Order) (SimpleOrderSummary, error) {
	if order.Member == nil {
		return SimpleOrderSummary{}, fmt.Errorf("%w: order %d member", ErrUnresolvedRelation, order.ID)
	}
	if order.Delivery == nil {
		return SimpleOrderSummary{}, fmt.Errorf("%w: order %d delivery", ErrUnresolvedRelation, order.ID)
	}
	return SimpleOrderSummary{
		OrderID:     order.ID,
		MemberName:  order.Member.Name,
		OrderDate:   order.OrderDate,
		OrderStatus: order.Status,
		Address:     order.Delivery.Address,
	}, nil
}

// MapOrderSummary projects a fully resolved order. A nil OrderItems slice means the
// collection was never loaded; an empty one means the order has no lines.
func MapOrderSummary(order domain.Order) (OrderSummary, error) {
	simple, err := MapSimpleOrderSummary(order)
	if err != nil {
		return OrderSummary{}, err
	}
	if order.OrderItems == nil {
		return OrderSummary{}, fmt.Errorf("%w: order %d orderItems", ErrUnresolvedRelation, order.ID)
	}

	lines := make([]OrderItemSummary, 0, len(order.OrderItems))
	for _, oi := range order.OrderItems {
		if oi.Item == nil {
			return OrderSummary{}, fmt.Errorf("%w: order item %d item", ErrUnresolvedRelation, oi.ID)
		}
		lines = append(lines, OrderItemSummary{
			ItemName:   oi.Item.Name,
			OrderPrice: oi.OrderPrice,
			Count:      oi.Count,
		})
	}
	return withLines(simple, lines), nil
}

// MapOrderSummaries projects every order, failing on the first unresolved relation.
func MapOrderSummaries(orders []domain.Order) ([]OrderSummary, error) {
	out := make([]OrderSummary, 0, len(orders))
	for _, order := range orders {
		summary, err := MapOrderSummary(order)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// MapSimpleOrderSummaries projects every order's to-one relations.
func MapSimpleOrderSummaries(orders []domain.Order) ([]SimpleOrderSummary, error) {
	out := make([]SimpleOrderSummary, 0, len(orders))
	for _, order := range orders {
		summary, err := MapSimpleOrderSummary(order)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func withLines(s SimpleOrderSummary, lines []OrderItemSummary) OrderSummary {
	return OrderSummary{
		OrderID:     s.OrderID,
		MemberName:  s.MemberName,
		OrderDate:   s.OrderDate,
		OrderStatus: s.OrderStatus,
		Address:     s.Address,
		OrderItems:  lines,
	}
}
