package planner

import (
	"time"

	"ordergraph/internal/domain"
	"ordergraph/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

func finishInsert(builder sq.InsertBuilder) (SQLQuery, error) {
	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func finishUpdate(builder sq.UpdateBuilder) (SQLQuery, error) {
	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func quoteAll(names ...string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = sqlutil.QuoteIdentifier(name)
	}
	return out
}

// PlanInsertMember inserts a member row.
func PlanInsertMember(m domain.Member) (SQLQuery, error) {
	return finishInsert(sq.Insert(sqlutil.QuoteIdentifier(TableMember)).
		Columns(quoteAll("name", "city", "street", "zipcode")...).
		Values(m.Name, m.Address.City, m.Address.Street, m.Address.Zipcode))
}

// PlanMembersByName finds members with exactly this name.
func PlanMembersByName(name string) (SQLQuery, error) {
	return finish(sq.Select(qualified(aliasMember, memberColumnNames)...).
		From(sqlutil.TableAs(TableMember, aliasMember)).
		Where(sq.Eq{sqlutil.Column(aliasMember, "name"): name}).
		OrderBy(sqlutil.Column(aliasMember, "member_id")).
		PlaceholderFormat(sq.Question))
}

// PlanMembers lists every member.
func PlanMembers() (SQLQuery, error) {
	return finish(sq.Select(qualified(aliasMember, memberColumnNames)...).
		From(sqlutil.TableAs(TableMember, aliasMember)).
		OrderBy(sqlutil.Column(aliasMember, "member_id")).
		PlaceholderFormat(sq.Question))
}

// PlanUpdateMemberName renames a member.
func PlanUpdateMemberName(id int64, name string) (SQLQuery, error) {
	return finishUpdate(sq.Update(sqlutil.QuoteIdentifier(TableMember)).
		Set(sqlutil.QuoteIdentifier("name"), name).
		Where(sq.Eq{sqlutil.QuoteIdentifier("member_id"): id}))
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func itemSubtypeValues(item domain.Item) []interface{} {
	var author, isbn, artist, etc, director, actor string
	switch {
	case item.Book != nil:
		author, isbn = item.Book.Author, item.Book.ISBN
	case item.Album != nil:
		artist, etc = item.Album.Artist, item.Album.Etc
	case item.Movie != nil:
		director, actor = item.Movie.Director, item.Movie.Actor
	}
	return []interface{}{nullable(author), nullable(isbn), nullable(artist), nullable(etc), nullable(director), nullable(actor)}
}

// PlanInsertItem inserts an item with its subtype columns.
func PlanInsertItem(item domain.Item) (SQLQuery, error) {
	values := append([]interface{}{string(item.Kind), item.Name, item.Price, item.StockQuantity}, itemSubtypeValues(item)...)
	return finishInsert(sq.Insert(sqlutil.QuoteIdentifier(TableItem)).
		Columns(quoteAll(itemColumnNames[1:]...)...).
		Values(values...))
}

// PlanUpdateItem rewrites the mutable item fields.
func PlanUpdateItem(id int64, name string, price, stock int) (SQLQuery, error) {
	return finishUpdate(sq.Update(sqlutil.QuoteIdentifier(TableItem)).
		Set(sqlutil.QuoteIdentifier("name"), name).
		Set(sqlutil.QuoteIdentifier("price"), price).
		Set(sqlutil.QuoteIdentifier("stock_quantity"), stock).
		Where(sq.Eq{sqlutil.QuoteIdentifier("item_id"): id}))
}

// PlanRemoveItemStock decrements stock by quantity. The row is only updated
// while enough stock remains, so zero affected rows means insufficient stock.
func PlanRemoveItemStock(id int64, quantity int) (SQLQuery, error) {
	stock := sqlutil.QuoteIdentifier("stock_quantity")
	return finishUpdate(sq.Update(sqlutil.QuoteIdentifier(TableItem)).
		Set(stock, sq.Expr(stock+" - ?", quantity)).
		Where(sq.Eq{sqlutil.QuoteIdentifier("item_id"): id}).
		Where(sq.GtOrEq{stock: quantity}))
}

// PlanAddItemStock increments stock by quantity.
func PlanAddItemStock(id int64, quantity int) (SQLQuery, error) {
	stock := sqlutil.QuoteIdentifier("stock_quantity")
	return finishUpdate(sq.Update(sqlutil.QuoteIdentifier(TableItem)).
		Set(stock, sq.Expr(stock+" + ?", quantity)).
		Where(sq.Eq{sqlutil.QuoteIdentifier("item_id"): id}))
}

// PlanItemStock reads the current stock of one item.
func PlanItemStock(id int64) (SQLQuery, error) {
	return finish(sq.Select(sqlutil.QuoteIdentifier("stock_quantity")).
		From(sqlutil.QuoteIdentifier(TableItem)).
		Where(sq.Eq{sqlutil.QuoteIdentifier("item_id"): id}).
		PlaceholderFormat(sq.Question))
}

// PlanItems lists every item.
func PlanItems() (SQLQuery, error) {
	return finish(sq.Select(qualified(aliasItem, itemColumnNames)...).
		From(sqlutil.TableAs(TableItem, aliasItem)).
		OrderBy(sqlutil.Column(aliasItem, "item_id")).
		PlaceholderFormat(sq.Question))
}

// PlanInsertDelivery inserts a delivery row.
func PlanInsertDelivery(d domain.Delivery) (SQLQuery, error) {
	return finishInsert(sq.Insert(sqlutil.QuoteIdentifier(TableDelivery)).
		Columns(quoteAll("city", "street", "zipcode", "status")...).
		Values(d.Address.City, d.Address.Street, d.Address.Zipcode, string(d.Status)))
}

// PlanInsertOrder inserts an order row; member and delivery must already have ids.
func PlanInsertOrder(o domain.Order) (SQLQuery, error) {
	return finishInsert(sq.Insert(sqlutil.QuoteIdentifier(TableOrder)).
		Columns(quoteAll(orderColumnNames[1:]...)...).
		Values(o.Member.ID, o.Delivery.ID, o.OrderDate.UTC().Truncate(time.Second), string(o.Status)))
}

// PlanInsertOrderItem inserts one order line.
func PlanInsertOrderItem(oi domain.OrderItem) (SQLQuery, error) {
	return finishInsert(sq.Insert(sqlutil.QuoteIdentifier(TableOrderItem)).
		Columns(quoteAll(orderItemColumnNames[1:]...)...).
		Values(oi.OrderID, oi.Item.ID, oi.OrderPrice, oi.Count))
}

// PlanCancelOrder moves an ORDERED order to CANCELED. Zero affected rows means
// the order was canceled concurrently.
func PlanCancelOrder(id int64) (SQLQuery, error) {
	status := sqlutil.QuoteIdentifier("status")
	return finishUpdate(sq.Update(sqlutil.QuoteIdentifier(TableOrder)).
		Set(status, string(domain.OrderStatusCanceled)).
		Where(sq.Eq{sqlutil.QuoteIdentifier("order_id"): id}).
		Where(sq.Eq{status: string(domain.OrderStatusOrdered)}))
}
