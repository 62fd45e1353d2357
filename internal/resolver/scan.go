package resolver

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/domain"
	"ordergraph/internal/planner"
)

// scanRows reads every row as raw values and closes rows.
func scanRows(rows dbexec.Rows, width int) ([][]interface{}, error) {
	defer rows.Close()

	var results [][]interface{}
	for rows.Next() {
		values := make([]interface{}, width)
		ptrs := make([]interface{}, width)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		results = append(results, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Drivers disagree on how they hand back integers, text and datetimes
// (int64 or []byte, string or []byte, time.Time or text), so values are converted here.

func asInt64(v interface{}) (int64, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		return x, true, nil
	case int32:
		return int64(x), true, nil
	case int:
		return int64(x), true, nil
	case uint64:
		return int64(x), true, nil
	case float64:
		return int64(x), true, nil
	case []byte:
		n, err := strconv.ParseInt(string(x), 10, 64)
		return n, err == nil, err
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil, err
	default:
		return 0, false, fmt.Errorf("unsupported integer value %T", v)
	}
}

func asString(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	default:
		return fmt.Sprint(x), true
	}
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02",
}

func asTime(v interface{}) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case nil:
		return time.Time{}, nil
	}
	s, _ := asString(v)
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported datetime value %q", s)
}

// requireInt64 reads a NOT NULL integer column.
func requireInt64(v interface{}, column string) (int64, error) {
	n, ok, err := asInt64(v)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", column, err)
	}
	if !ok {
		return 0, fmt.Errorf("column %s: unexpected NULL", column)
	}
	return n, nil
}

func requireInt(v interface{}, column string) (int, error) {
	n, err := requireInt64(v, column)
	return int(n), err
}

// orderRow is an order with the foreign keys of its to-one relations.
type orderRow struct {
	order      domain.Order
	memberID   int64
	deliveryID int64
}

func decodeOrder(vals []interface{}) (orderRow, error) {
	id, err := requireInt64(vals[0], "order_id")
	if err != nil {
		return orderRow{}, err
	}
	memberID, err := requireInt64(vals[1], "member_id")
	if err != nil {
		return orderRow{}, err
	}
	deliveryID, err := requireInt64(vals[2], "delivery_id")
	if err != nil {
		return orderRow{}, err
	}
	orderDate, err := asTime(vals[3])
	if err != nil {
		return orderRow{}, err
	}
	status, _ := asString(vals[4])
	return orderRow{
		order:      domain.Order{ID: id, OrderDate: orderDate, Status: domain.OrderStatus(status)},
		memberID:   memberID,
		deliveryID: deliveryID,
	}, nil
}

func decodeAddress(vals []interface{}) domain.Address {
	city, _ := asString(vals[0])
	street, _ := asString(vals[1])
	zipcode, _ := asString(vals[2])
	return domain.Address{City: city, Street: street, Zipcode: zipcode}
}

func decodeMember(vals []interface{}) (*domain.Member, error) {
	id, err := requireInt64(vals[0], "member_id")
	if err != nil {
		return nil, err
	}
	name, _ := asString(vals[1])
	return &domain.Member{ID: id, Name: name, Address: decodeAddress(vals[2:5])}, nil
}

func decodeDelivery(vals []interface{}) (*domain.Delivery, error) {
	id, err := requireInt64(vals[0], "delivery_id")
	if err != nil {
		return nil, err
	}
	status, _ := asString(vals[4])
	return &domain.Delivery{ID: id, Address: decodeAddress(vals[1:4]), Status: domain.DeliveryStatus(status)}, nil
}

// orderItemRow is an order line with the id of the item it references.
type orderItemRow struct {
	orderItem domain.OrderItem
	itemID    int64
}

// decodeOrderItem returns ok=false when the row came from an outer join with no match.
func decodeOrderItem(vals []interface{}) (orderItemRow, bool, error) {
	id, ok, err := asInt64(vals[0])
	if err != nil || !ok {
		return orderItemRow{}, false, err
	}
	orderID, err := requireInt64(vals[1], "order_id")
	if err != nil {
		return orderItemRow{}, false, err
	}
	itemID, err := requireInt64(vals[2], "item_id")
	if err != nil {
		return orderItemRow{}, false, err
	}
	price, err := requireInt(vals[3], "order_price")
	if err != nil {
		return orderItemRow{}, false, err
	}
	count, err := requireInt(vals[4], "count")
	if err != nil {
		return orderItemRow{}, false, err
	}
	return orderItemRow{
		orderItem: domain.OrderItem{ID: id, OrderID: orderID, OrderPrice: price, Count: count},
		itemID:    itemID,
	}, true, nil
}

// decodeItem returns nil when the item columns are NULL.
func decodeItem(vals []interface{}) (*domain.Item, error) {
	id, ok, err := asInt64(vals[0])
	if err != nil || !ok {
		return nil, err
	}
	dtype, _ := asString(vals[1])
	kind, err := domain.ParseItemKind(dtype)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", id, err)
	}
	name, _ := asString(vals[2])
	price, err := requireInt(vals[3], "price")
	if err != nil {
		return nil, err
	}
	stock, err := requireInt(vals[4], "stock_quantity")
	if err != nil {
		return nil, err
	}

	item := &domain.Item{ID: id, Name: name, Price: price, StockQuantity: stock, Kind: kind}
	sub := make([]string, 6)
	for i := range sub {
		sub[i], _ = asString(vals[5+i])
	}
	switch kind {
	case domain.ItemKindBook:
		item.Book = &domain.BookDetails{Author: sub[0], ISBN: sub[1]}
	case domain.ItemKindAlbum:
		item.Album = &domain.AlbumDetails{Artist: sub[2], Etc: sub[3]}
	case domain.ItemKindMovie:
		item.Movie = &domain.MovieDetails{Director: sub[4], Actor: sub[5]}
	}
	return item, nil
}

// decodeProjectionRoot reads the narrowed order columns shared by the projection and flat plans.
func decodeProjectionRoot(vals []interface{}) (SimpleOrderSummary, error) {
	id, err := requireInt64(vals[0], "order_id")
	if err != nil {
		return SimpleOrderSummary{}, err
	}
	memberName, _ := asString(vals[1])
	orderDate, err := asTime(vals[2])
	if err != nil {
		return SimpleOrderSummary{}, err
	}
	status, _ := asString(vals[3])
	return SimpleOrderSummary{
		OrderID:     id,
		MemberName:  memberName,
		OrderDate:   orderDate,
		OrderStatus: domain.OrderStatus(status),
		Address:     decodeAddress(vals[4:7]),
	}, nil
}

// itemProjectionRow is an order line summary keyed by its order.
type itemProjectionRow struct {
	orderID int64
	line    OrderItemSummary
}

func decodeItemProjection(vals []interface{}) (itemProjectionRow, error) {
	orderID, err := requireInt64(vals[0], "order_id")
	if err != nil {
		return itemProjectionRow{}, err
	}
	name, _ := asString(vals[1])
	price, err := requireInt(vals[2], "order_price")
	if err != nil {
		return itemProjectionRow{}, err
	}
	count, err := requireInt(vals[3], "count")
	if err != nil {
		return itemProjectionRow{}, err
	}
	return itemProjectionRow{orderID: orderID, line: OrderItemSummary{ItemName: name, OrderPrice: price, Count: count}}, nil
}

// Column offsets of the wide rows produced by the join plans.
var (
	toOneWidth       = planner.OrderColumnCount + planner.MemberColumnCount + planner.DeliveryColumnCount
	joinManyWidth    = toOneWidth + planner.OrderItemColumnCount + planner.ItemColumnCount
	flatWidth        = planner.ProjectionRootColumnCount + 4
	itemProjectWidth = 4
)

// decodeToOne reads an order row followed by its member and delivery columns.
func decodeToOne(vals []interface{}) (domain.Order, error) {
	row, err := decodeOrder(vals[:planner.OrderColumnCount])
	if err != nil {
		return domain.Order{}, err
	}
	offset := planner.OrderColumnCount
	member, err := decodeMember(vals[offset : offset+planner.MemberColumnCount])
	if err != nil {
		return domain.Order{}, err
	}
	offset += planner.MemberColumnCount
	delivery, err := decodeDelivery(vals[offset : offset+planner.DeliveryColumnCount])
	if err != nil {
		return domain.Order{}, err
	}
	order := row.order
	order.Member = member
	order.Delivery = delivery
	return order, nil
}
