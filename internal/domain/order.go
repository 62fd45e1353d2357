// Package domain holds the order aggregate and its invariants.
package domain

import (
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOrdered  OrderStatus = "ORDERED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// ParseOrderStatus validates a status name.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch OrderStatus(raw) {
	case OrderStatusOrdered, OrderStatusCanceled:
		return OrderStatus(raw), nil
	default:
		return "", &InvalidQueryParameterError{Parameter: "status", Reason: fmt.Sprintf("unknown order status %q", raw)}
	}
}

// DeliveryStatus is the shipping state of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusReady    DeliveryStatus = "READY"
	DeliveryStatusComplete DeliveryStatus = "COMP"
)

// Address is an embedded value object shared by members and deliveries.
type Address struct {
	City    string `json:"city"`
	Street  string `json:"street"`
	Zipcode string `json:"zipcode"`
}

// Member places orders. Its order list is not modelled; orders reference members.
type Member struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Address Address `json:"address"`
}

// Delivery belongs to exactly one order.
type Delivery struct {
	ID      int64          `json:"id"`
	Address Address        `json:"address"`
	Status  DeliveryStatus `json:"status"`
}

// Order is the aggregate root.
type Order struct {
	ID         int64       `json:"id"`
	Status     OrderStatus `json:"status"`
	OrderDate  time.Time   `json:"orderDate"`
	Member     *Member     `json:"member"`
	Delivery   *Delivery   `json:"delivery"`
	OrderItems []OrderItem `json:"orderItems"`
}

// NewOrder assembles a new order from already created order items.
func NewOrder(member *Member, delivery *Delivery, orderDate time.Time, items ...OrderItem) (*Order, error) {
	if member == nil || delivery == nil {
		return nil, ErrMissingRelation
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	return &Order{
		Status:     OrderStatusOrdered,
		OrderDate:  orderDate,
		Member:     member,
		Delivery:   delivery,
		OrderItems: append([]OrderItem(nil), items...),
	}, nil
}

// Cancel marks the order canceled and returns stock for every order item.
// Stock is returned at most once.
func (o *Order) Cancel() error {
	if o.Delivery != nil && o.Delivery.Status == DeliveryStatusComplete {
		return ErrAlreadyDelivered
	}
	if o.Status == OrderStatusCanceled {
		return ErrAlreadyCanceled
	}
	o.Status = OrderStatusCanceled
	for i := range o.OrderItems {
		o.OrderItems[i].Cancel()
	}
	return nil
}

// TotalPrice sums the order item totals.
func (o *Order) TotalPrice() int {
	total := 0
	for _, item := range o.OrderItems {
		total += item.TotalPrice()
	}
	return total
}

// BindID sets the order identifier on the order and its items after insertion.
func (o *Order) BindID(id int64) {
	o.ID = id
	for i := range o.OrderItems {
		o.OrderItems[i].OrderID = id
	}
}

// OrderItem is one line of an order. OrderPrice is the unit price at order time.
type OrderItem struct {
	ID         int64 `json:"id"`
	OrderID    int64 `json:"-"`
	Item       *Item `json:"item"`
	OrderPrice int   `json:"orderPrice"`
	Count      int   `json:"count"`
}

// NewOrderItem creates an order line and removes the ordered quantity from stock.
func NewOrderItem(item *Item, orderPrice, count int) (OrderItem, error) {
	if count < 1 {
		return OrderItem{}, ErrInvalidCount
	}
	if err := item.RemoveStock(count); err != nil {
		return OrderItem{}, err
	}
	return OrderItem{Item: item, OrderPrice: orderPrice, Count: count}, nil
}

// Cancel returns the ordered quantity to stock.
func (oi *OrderItem) Cancel() {
	if oi.Item != nil {
		oi.Item.AddStock(oi.Count)
	}
}

// TotalPrice is OrderPrice times Count.
func (oi OrderItem) TotalPrice() int {
	return oi.OrderPrice * oi.Count
}
