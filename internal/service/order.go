package service

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/domain"
	"ordergraph/internal/logging"
	"ordergraph/internal/planner"
	"ordergraph/internal/resolver"
)

// OrderLine requests count units of one item.
type OrderLine struct {
	ItemID int64
	Count  int
}

// OrderService places and cancels orders.
type OrderService struct {
	executor dbexec.QueryExecutor
	reader   *resolver.Resolver
	now      func() time.Time
}

// NewOrderService creates an order service stamping orders with the wall clock.
func NewOrderService(executor dbexec.QueryExecutor, reader *resolver.Resolver) *OrderService {
	return &OrderService{executor: executor, reader: reader, now: time.Now}
}

// Order places a single-line order at the item's current price.
func (s *OrderService) Order(ctx context.Context, memberID, itemID int64, count int) (int64, error) {
	return s.Place(ctx, memberID, OrderLine{ItemID: itemID, Count: count})
}

// Place creates an order shipped to the member's address. Stock is removed for
// every line; any failure leaves the store unchanged.
func (s *OrderService) Place(ctx context.Context, memberID int64, lines ...OrderLine) (int64, error) {
	if len(lines) == 0 {
		return 0, domain.ErrEmptyOrder
	}

	var orderID int64
	err := inTx(ctx, s.executor, func(ctx context.Context, tx dbexec.TxExecutor) error {
		member, err := s.reader.FindMember(ctx, memberID)
		if err != nil {
			return err
		}

		items := make(map[int64]*domain.Item, len(lines))
		orderItems := make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			item, ok := items[line.ItemID]
			if !ok {
				if item, err = s.reader.FindItem(ctx, line.ItemID); err != nil {
					return err
				}
				items[line.ItemID] = item
			}
			orderItem, err := domain.NewOrderItem(item, item.Price, line.Count)
			if err != nil {
				return err
			}
			orderItems = append(orderItems, orderItem)
		}

		delivery := &domain.Delivery{Address: member.Address, Status: domain.DeliveryStatusReady}
		order, err := domain.NewOrder(member, delivery, s.now(), orderItems...)
		if err != nil {
			return err
		}

		planned, err := planner.PlanInsertDelivery(*delivery)
		if err != nil {
			return err
		}
		if delivery.ID, err = execInsert(ctx, tx, planned); err != nil {
			return err
		}
		if planned, err = planner.PlanInsertOrder(*order); err != nil {
			return err
		}
		id, err := execInsert(ctx, tx, planned)
		if err != nil {
			return err
		}
		order.BindID(id)
		for i := range order.OrderItems {
			if planned, err = planner.PlanInsertOrderItem(order.OrderItems[i]); err != nil {
				return err
			}
			if order.OrderItems[i].ID, err = execInsert(ctx, tx, planned); err != nil {
				return err
			}
		}
		if err := removeStock(ctx, tx, lines); err != nil {
			return err
		}
		orderID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).Info("order placed",
		slog.Int64("order_id", orderID),
		slog.Int64("member_id", memberID),
		slog.Int("lines", len(lines)),
	)
	return orderID, nil
}

// Cancel cancels an order and returns its stock. Orders whose delivery
// completed or that are already canceled cannot be canceled.
func (s *OrderService) Cancel(ctx context.Context, orderID int64) error {
	err := inTx(ctx, s.executor, func(ctx context.Context, tx dbexec.TxExecutor) error {
		order, err := s.reader.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.Cancel(); err != nil {
			return err
		}

		planned, err := planner.PlanCancelOrder(order.ID)
		if err != nil {
			return err
		}
		affected, err := execAffected(ctx, tx, planned)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrAlreadyCanceled
		}

		returned := make(map[int64]int, len(order.OrderItems))
		for _, oi := range order.OrderItems {
			returned[oi.Item.ID] += oi.Count
		}
		for _, id := range slices.Sorted(maps.Keys(returned)) {
			if planned, err = planner.PlanAddItemStock(id, returned[id]); err != nil {
				return err
			}
			if err := execUpdate(ctx, tx, planned); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("order canceled", slog.Int64("order_id", orderID))
	return nil
}

// removeStock decrements stock per item in id order. A concurrent order that
// drained the stock first makes the guarded update miss.
func removeStock(ctx context.Context, tx dbexec.TxExecutor, lines []OrderLine) error {
	requested := make(map[int64]int, len(lines))
	for _, line := range lines {
		requested[line.ItemID] += line.Count
	}
	for _, id := range slices.Sorted(maps.Keys(requested)) {
		planned, err := planner.PlanRemoveItemStock(id, requested[id])
		if err != nil {
			return err
		}
		affected, err := execAffected(ctx, tx, planned)
		if err != nil {
			return err
		}
		if affected > 0 {
			continue
		}
		available, err := currentStock(ctx, tx, id)
		if err != nil {
			return err
		}
		return &domain.InsufficientStockError{ItemID: id, Requested: requested[id], Available: available}
	}
	return nil
}

func currentStock(ctx context.Context, tx dbexec.Querier, itemID int64) (int, error) {
	planned, err := planner.PlanItemStock(itemID)
	if err != nil {
		return 0, err
	}
	rows, err := tx.QueryContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, &domain.NotFoundError{Entity: planner.TableItem, ID: itemID}
	}
	var stock int
	if err := rows.Scan(&stock); err != nil {
		return 0, err
	}
	return stock, rows.Err()
}
