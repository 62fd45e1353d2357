package planner

import "ordergraph/internal/sqlutil"

// Table names. Every identifier is quoted when rendered; `order` is a reserved word.
const (
	TableOrder        = "order"
	TableMember       = "member"
	TableDelivery     = "delivery"
	TableOrderItem    = "order_item"
	TableItem         = "item"
	TableCategory     = "category"
	TableCategoryItem = "category_item"
)

// Table aliases used by every read plan.
const (
	aliasOrder        = "o"
	aliasMember       = "m"
	aliasDelivery     = "d"
	aliasOrderItem    = "oi"
	aliasItem         = "i"
	aliasCategoryItem = "ci"
	aliasCategory     = "c"
)

// Qualified columns accepted by Condition.
const (
	ColumnOrderID     = "o.`order_id`"
	ColumnOrderStatus = "o.`status`"
	ColumnMemberName  = "m.`name`"
)

// Column groups. Scanners in the resolver read them in this order.
var (
	orderColumnNames     = []string{"order_id", "member_id", "delivery_id", "order_date", "status"}
	memberColumnNames    = []string{"member_id", "name", "city", "street", "zipcode"}
	deliveryColumnNames  = []string{"delivery_id", "city", "street", "zipcode", "status"}
	orderItemColumnNames = []string{"order_item_id", "order_id", "item_id", "order_price", "count"}
	itemColumnNames      = []string{"item_id", "dtype", "name", "price", "stock_quantity", "author", "isbn", "artist", "etc", "director", "actor"}
)

// Column group widths, exported for scanners that slice a wide row.
var (
	OrderColumnCount     = len(orderColumnNames)
	MemberColumnCount    = len(memberColumnNames)
	DeliveryColumnCount  = len(deliveryColumnNames)
	OrderItemColumnCount = len(orderItemColumnNames)
	ItemColumnCount      = len(itemColumnNames)
)

func qualified(alias string, names []string) []string {
	cols := make([]string, len(names))
	for i, name := range names {
		cols[i] = sqlutil.Column(alias, name)
	}
	return cols
}

func concatColumns(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func joinOn(table, alias, leftAlias, leftColumn, rightColumn string) string {
	return sqlutil.TableAs(table, alias) + " ON " + sqlutil.Column(alias, rightColumn) + " = " + sqlutil.Column(leftAlias, leftColumn)
}

var (
	joinMember    = joinOn(TableMember, aliasMember, aliasOrder, "member_id", "member_id")
	joinDelivery  = joinOn(TableDelivery, aliasDelivery, aliasOrder, "delivery_id", "delivery_id")
	joinOrderItem = joinOn(TableOrderItem, aliasOrderItem, aliasOrder, "order_id", "order_id")
	joinItem      = joinOn(TableItem, aliasItem, aliasOrderItem, "item_id", "item_id")
)
