// Package testutil holds the shared order fixture used by store-backed tests.
package testutil

// Fixture shape: five orders, the fourth without order lines, members and items
// shared between orders so identity-map reuse and batching are observable.
const (
	FixtureOrderCount  = 5
	FixtureMemberCount = 3
	FixtureItemCount   = 6
	// FixtureEmptyOrderID has no order lines.
	FixtureEmptyOrderID = 4
	// FixtureCompletedOrderID has a completed delivery.
	FixtureCompletedOrderID = 3
)

// FixtureSQL inserts the fixture with explicit ids.
const FixtureSQL = "" +
	"INSERT INTO `member` (`member_id`, `name`, `city`, `street`, `zipcode`) VALUES " +
	"(1, 'userA', 'Seoul', 'street 1', '1111'), " +
	"(2, 'userB', 'Busan', 'street 2', '2222'), " +
	"(3, 'user_C', 'Jinju', 'street 3', '3333');\n" +
	"INSERT INTO `item` (`item_id`, `dtype`, `name`, `price`, `stock_quantity`, `author`, `isbn`, `artist`, `etc`, `director`, `actor`) VALUES " +
	"(1, 'B', 'JPA1 BOOK', 10000, 100, 'kim', '111', NULL, NULL, NULL, NULL), " +
	"(2, 'B', 'JPA2 BOOK', 20000, 100, 'kim', '222', NULL, NULL, NULL, NULL), " +
	"(3, 'B', 'SPRING1 BOOK', 20000, 200, 'lee', '333', NULL, NULL, NULL, NULL), " +
	"(4, 'B', 'SPRING2 BOOK', 40000, 300, 'lee', '444', NULL, NULL, NULL, NULL), " +
	"(5, 'A', 'Kind of Blue', 15000, 50, NULL, NULL, 'Miles Davis', 'remaster', NULL, NULL), " +
	"(6, 'M', 'Heat', 12000, 30, NULL, NULL, NULL, NULL, 'Michael Mann', 'Al Pacino');\n" +
	"INSERT INTO `delivery` (`delivery_id`, `city`, `street`, `zipcode`, `status`) VALUES " +
	"(1, 'Seoul', 'street 1', '1111', 'READY'), " +
	"(2, 'Busan', 'street 2', '2222', 'READY'), " +
	"(3, 'Seoul', 'street 1', '1111', 'COMP'), " +
	"(4, 'Jinju', 'street 3', '3333', 'READY'), " +
	"(5, 'Busan', 'street 2', '2222', 'READY');\n" +
	"INSERT INTO `order` (`order_id`, `member_id`, `delivery_id`, `order_date`, `status`) VALUES " +
	"(1, 1, 1, '2024-01-01 10:00:00', 'ORDERED'), " +
	"(2, 2, 2, '2024-01-02 10:00:00', 'ORDERED'), " +
	"(3, 1, 3, '2024-01-03 10:00:00', 'CANCELED'), " +
	"(4, 3, 4, '2024-01-04 10:00:00', 'ORDERED'), " +
	"(5, 2, 5, '2024-01-05 10:00:00', 'ORDERED');\n" +
	"INSERT INTO `order_item` (`order_item_id`, `order_id`, `item_id`, `order_price`, `count`) VALUES " +
	"(1, 1, 1, 10000, 1), " +
	"(2, 1, 2, 20000, 2), " +
	"(3, 2, 3, 20000, 3), " +
	"(4, 2, 4, 40000, 4), " +
	"(5, 3, 5, 15000, 1), " +
	"(6, 5, 1, 10000, 2), " +
	"(7, 5, 6, 12000, 1), " +
	"(8, 5, 2, 20000, 1);\n" +
	"INSERT INTO `category` (`category_id`, `name`, `parent_id`) VALUES " +
	"(1, 'Books', NULL), (2, 'Media', NULL);\n" +
	"INSERT INTO `category_item` (`category_id`, `item_id`) VALUES " +
	"(1, 1), (1, 2), (1, 3), (1, 4), (2, 5), (2, 6);\n"

// FixtureLines lists item names per order id in insertion order.
var FixtureLines = map[int64][]string{
	1: {"JPA1 BOOK", "JPA2 BOOK"},
	2: {"SPRING1 BOOK", "SPRING2 BOOK"},
	3: {"Kind of Blue"},
	4: {},
	5: {"JPA1 BOOK", "Heat", "JPA2 BOOK"},
}
