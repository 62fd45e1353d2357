package planner

import (
	"errors"
	"fmt"

	"ordergraph/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// IsEmpty reports whether the plan has nothing to run.
func (q SQLQuery) IsEmpty() bool {
	return q.SQL == ""
}

// ErrMultipleCollectionFetch is returned when a join fetch names more than one to-many relation.
var ErrMultipleCollectionFetch = errors.New("join fetch supports at most one to-many relation")

var orderRootOrder = sqlutil.Column(aliasOrder, "order_id")

func selectFrom(columns []string) sq.SelectBuilder {
	return sq.Select(columns...).
		From(sqlutil.TableAs(TableOrder, aliasOrder)).
		PlaceholderFormat(sq.Question)
}

func finish(builder sq.SelectBuilder) (SQLQuery, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanOrderRoots selects order rows joined to member for filtering, capped at limit rows.
func PlanOrderRoots(conds []Condition, limit int) (SQLQuery, error) {
	builder := selectFrom(qualified(aliasOrder, orderColumnNames)).
		Join(joinMember)
	builder, err := applyConditions(builder, conds)
	if err != nil {
		return SQLQuery{}, err
	}
	builder = builder.OrderBy(orderRootOrder)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return finish(builder)
}

func planByID(table, alias string, names []string, idColumn string, id int64) (SQLQuery, error) {
	return finish(sq.Select(qualified(alias, names)...).
		From(sqlutil.TableAs(table, alias)).
		Where(sq.Eq{sqlutil.Column(alias, idColumn): id}).
		PlaceholderFormat(sq.Question))
}

// PlanMemberByID loads one member.
func PlanMemberByID(id int64) (SQLQuery, error) {
	return planByID(TableMember, aliasMember, memberColumnNames, "member_id", id)
}

// PlanDeliveryByID loads one delivery.
func PlanDeliveryByID(id int64) (SQLQuery, error) {
	return planByID(TableDelivery, aliasDelivery, deliveryColumnNames, "delivery_id", id)
}

// PlanItemByID loads one item.
func PlanItemByID(id int64) (SQLQuery, error) {
	return planByID(TableItem, aliasItem, itemColumnNames, "item_id", id)
}

// PlanOrderItemsByOrder loads the order items of one order in insertion order.
func PlanOrderItemsByOrder(orderID int64) (SQLQuery, error) {
	return finish(sq.Select(qualified(aliasOrderItem, orderItemColumnNames)...).
		From(sqlutil.TableAs(TableOrderItem, aliasOrderItem)).
		Where(sq.Eq{sqlutil.Column(aliasOrderItem, "order_id"): orderID}).
		OrderBy(sqlutil.Column(aliasOrderItem, "order_item_id")).
		PlaceholderFormat(sq.Question))
}

// PlanOrdersWithToOne selects orders with member and delivery in one join.
// Only to-one relations are joined, so the row count equals the root count and the page applies to roots.
func PlanOrdersWithToOne(conds []Condition, page Page) (SQLQuery, error) {
	builder := selectFrom(concatColumns(
		qualified(aliasOrder, orderColumnNames),
		qualified(aliasMember, memberColumnNames),
		qualified(aliasDelivery, deliveryColumnNames),
	)).
		Join(joinMember).
		Join(joinDelivery)
	builder, err := applyConditions(builder, conds)
	if err != nil {
		return SQLQuery{}, err
	}
	builder = builder.OrderBy(orderRootOrder).
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset))
	return finish(builder)
}

// PlanOrderItemsBatch loads order items for a chunk of order ids.
// An empty id list yields an empty plan.
func PlanOrderItemsBatch(orderIDs []int64) (SQLQuery, error) {
	if len(orderIDs) == 0 {
		return SQLQuery{}, nil
	}
	return finish(sq.Select(qualified(aliasOrderItem, orderItemColumnNames)...).
		From(sqlutil.TableAs(TableOrderItem, aliasOrderItem)).
		Where(sq.Eq{sqlutil.Column(aliasOrderItem, "order_id"): orderIDs}).
		OrderBy(sqlutil.Column(aliasOrderItem, "order_id"), sqlutil.Column(aliasOrderItem, "order_item_id")).
		PlaceholderFormat(sq.Question))
}

// PlanItemsBatch loads items for a chunk of item ids.
func PlanItemsBatch(itemIDs []int64) (SQLQuery, error) {
	if len(itemIDs) == 0 {
		return SQLQuery{}, nil
	}
	return finish(sq.Select(qualified(aliasItem, itemColumnNames)...).
		From(sqlutil.TableAs(TableItem, aliasItem)).
		Where(sq.Eq{sqlutil.Column(aliasItem, "item_id"): itemIDs}).
		OrderBy(sqlutil.Column(aliasItem, "item_id")).
		PlaceholderFormat(sq.Question))
}

// projectionRootColumns: order_id, member name, order_date, status, delivery address.
var projectionRootColumns = []string{
	sqlutil.Column(aliasOrder, "order_id"),
	sqlutil.Column(aliasMember, "name"),
	sqlutil.Column(aliasOrder, "order_date"),
	sqlutil.Column(aliasOrder, "status"),
	sqlutil.Column(aliasDelivery, "city"),
	sqlutil.Column(aliasDelivery, "street"),
	sqlutil.Column(aliasDelivery, "zipcode"),
}

// ProjectionRootColumnCount is the width of a projection root row.
var ProjectionRootColumnCount = len(projectionRootColumns)

// projectionItemColumns: order_id, item name, order_price, count.
var projectionItemColumns = []string{
	sqlutil.Column(aliasOrderItem, "order_id"),
	sqlutil.Column(aliasItem, "name"),
	sqlutil.Column(aliasOrderItem, "order_price"),
	sqlutil.Column(aliasOrderItem, "count"),
}

// PlanOrderProjections selects only the columns the order summary needs.
func PlanOrderProjections(conds []Condition, page Page) (SQLQuery, error) {
	builder := selectFrom(projectionRootColumns).
		Join(joinMember).
		Join(joinDelivery)
	builder, err := applyConditions(builder, conds)
	if err != nil {
		return SQLQuery{}, err
	}
	builder = builder.OrderBy(orderRootOrder).
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset))
	return finish(builder)
}

func itemProjectionSelect() sq.SelectBuilder {
	return sq.Select(projectionItemColumns...).
		From(sqlutil.TableAs(TableOrderItem, aliasOrderItem)).
		Join(joinItem).
		PlaceholderFormat(sq.Question)
}

// PlanOrderItemProjections selects the item lines of one order.
func PlanOrderItemProjections(orderID int64) (SQLQuery, error) {
	return finish(itemProjectionSelect().
		Where(sq.Eq{sqlutil.Column(aliasOrderItem, "order_id"): orderID}).
		OrderBy(sqlutil.Column(aliasOrderItem, "order_item_id")))
}

// PlanOrderItemProjectionsBatch selects the item lines of a chunk of orders.
func PlanOrderItemProjectionsBatch(orderIDs []int64) (SQLQuery, error) {
	if len(orderIDs) == 0 {
		return SQLQuery{}, nil
	}
	return finish(itemProjectionSelect().
		Where(sq.Eq{sqlutil.Column(aliasOrderItem, "order_id"): orderIDs}).
		OrderBy(sqlutil.Column(aliasOrderItem, "order_id"), sqlutil.Column(aliasOrderItem, "order_item_id")))
}

// PlanOrderFlat selects projection columns joined down to items in a single statement.
// Each order appears once per order item, or once with NULL item columns when it has none.
// The row stream cannot be paged by order, so no LIMIT is applied.
func PlanOrderFlat(conds []Condition) (SQLQuery, error) {
	columns := append(append([]string{}, projectionRootColumns...),
		sqlutil.Column(aliasOrderItem, "order_item_id"),
		sqlutil.Column(aliasItem, "name"),
		sqlutil.Column(aliasOrderItem, "order_price"),
		sqlutil.Column(aliasOrderItem, "count"),
	)
	builder := selectFrom(columns).
		Join(joinMember).
		Join(joinDelivery).
		LeftJoin(joinOrderItem).
		LeftJoin(joinItem)
	builder, err := applyConditions(builder, conds)
	if err != nil {
		return SQLQuery{}, err
	}
	return finish(builder.OrderBy(orderRootOrder, sqlutil.Column(aliasOrderItem, "order_item_id")))
}

// Relation names a relation that a join fetch may include.
type Relation struct {
	Name    string
	ToMany  bool
	joins   []string
	columns []string
	orderBy string
}

var (
	// RelationMember joins the owning member.
	RelationMember = Relation{
		Name:    "member",
		joins:   []string{"JOIN " + joinMember},
		columns: qualified(aliasMember, memberColumnNames),
	}
	// RelationDelivery joins the delivery.
	RelationDelivery = Relation{
		Name:    "delivery",
		joins:   []string{"JOIN " + joinDelivery},
		columns: qualified(aliasDelivery, deliveryColumnNames),
	}
	// RelationOrderItems joins order items and their items. Orders without items keep one row.
	RelationOrderItems = Relation{
		Name:    "orderItems",
		ToMany:  true,
		joins:   []string{"LEFT JOIN " + joinOrderItem, "LEFT JOIN " + joinItem},
		columns: concatColumns(qualified(aliasOrderItem, orderItemColumnNames), qualified(aliasItem, itemColumnNames)),
		orderBy: sqlutil.Column(aliasOrderItem, "order_item_id"),
	}
	// RelationItemCategories joins the categories of every ordered item.
	RelationItemCategories = Relation{
		Name:   "itemCategories",
		ToMany: true,
		joins: []string{
			"LEFT JOIN " + joinOrderItem,
			"LEFT JOIN " + joinItem,
			"LEFT JOIN " + joinOn(TableCategoryItem, aliasCategoryItem, aliasItem, "item_id", "item_id"),
			"LEFT JOIN " + joinOn(TableCategory, aliasCategory, aliasCategoryItem, "category_id", "category_id"),
		},
		columns: []string{sqlutil.Column(aliasCategory, "category_id"), sqlutil.Column(aliasCategory, "name")},
		orderBy: sqlutil.Column(aliasCategory, "category_id"),
	}
)

// PlanFetchJoin selects orders with the given relations in one statement.
// Joining two to-many relations multiplies rows per order and is rejected.
func PlanFetchJoin(conds []Condition, relations ...Relation) (SQLQuery, error) {
	toMany := 0
	for _, rel := range relations {
		if rel.ToMany {
			toMany++
		}
	}
	if toMany > 1 {
		return SQLQuery{}, fmt.Errorf("%w: %d requested", ErrMultipleCollectionFetch, toMany)
	}

	columns := qualified(aliasOrder, orderColumnNames)
	for _, rel := range relations {
		columns = append(columns, rel.columns...)
	}
	builder := selectFrom(columns)
	for _, rel := range relations {
		for _, join := range rel.joins {
			builder = builder.JoinClause(join)
		}
	}
	builder, err := applyConditions(builder, conds)
	if err != nil {
		return SQLQuery{}, err
	}

	orderBy := []string{orderRootOrder}
	for _, rel := range relations {
		if rel.orderBy != "" {
			orderBy = append(orderBy, rel.orderBy)
		}
	}
	return finish(builder.OrderBy(orderBy...))
}
