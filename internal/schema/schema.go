// Package schema holds the DDL of the order store for MySQL and SQLite.
// It creates tables that do not exist; it does not version or alter them.
package schema

import (
	"context"
	"fmt"
	"strings"

	"ordergraph/internal/dbexec"
)

// Dialect selects the DDL variant.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

const mysqlDDL = "" +
	"CREATE TABLE IF NOT EXISTS `member` (" +
	"`member_id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
	"`name` VARCHAR(255) NOT NULL UNIQUE," +
	"`city` VARCHAR(255), `street` VARCHAR(255), `zipcode` VARCHAR(32));\n" +
	"CREATE TABLE IF NOT EXISTS `delivery` (" +
	"`delivery_id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
	"`city` VARCHAR(255), `street` VARCHAR(255), `zipcode` VARCHAR(32)," +
	"`status` VARCHAR(16) NOT NULL);\n" +
	"CREATE TABLE IF NOT EXISTS `item` (" +
	"`item_id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
	"`dtype` CHAR(1) NOT NULL," +
	"`name` VARCHAR(255) NOT NULL," +
	"`price` INT NOT NULL," +
	"`stock_quantity` INT NOT NULL," +
	"`author` VARCHAR(255), `isbn` VARCHAR(255), `artist` VARCHAR(255), `etc` VARCHAR(255)," +
	"`director` VARCHAR(255), `actor` VARCHAR(255));\n" +
	"CREATE TABLE IF NOT EXISTS `order` (" +
	"`order_id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
	"`member_id` BIGINT NOT NULL," +
	"`delivery_id` BIGINT NOT NULL UNIQUE," +
	"`order_date` DATETIME NOT NULL," +
	"`status` VARCHAR(16) NOT NULL," +
	"FOREIGN KEY (`member_id`) REFERENCES `member` (`member_id`)," +
	"FOREIGN KEY (`delivery_id`) REFERENCES `delivery` (`delivery_id`));\n" +
	"CREATE TABLE IF NOT EXISTS `order_item` (" +
	"`order_item_id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
	"`order_id` BIGINT NOT NULL," +
	"`item_id` BIGINT NOT NULL," +
	"`order_price` INT NOT NULL," +
	"`count` INT NOT NULL," +
	"INDEX `idx_order_item_order` (`order_id`)," +
	"FOREIGN KEY (`order_id`) REFERENCES `order` (`order_id`)," +
	"FOREIGN KEY (`item_id`) REFERENCES `item` (`item_id`));\n" +
	"CREATE TABLE IF NOT EXISTS `category` (" +
	"`category_id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
	"`name` VARCHAR(255) NOT NULL," +
	"`parent_id` BIGINT NULL);\n" +
	"CREATE TABLE IF NOT EXISTS `category_item` (" +
	"`category_id` BIGINT NOT NULL," +
	"`item_id` BIGINT NOT NULL," +
	"PRIMARY KEY (`category_id`, `item_id`));\n"

const sqliteDDL = "" +
	"CREATE TABLE IF NOT EXISTS `member` (" +
	"`member_id` INTEGER PRIMARY KEY AUTOINCREMENT," +
	"`name` TEXT NOT NULL UNIQUE," +
	"`city` TEXT, `street` TEXT, `zipcode` TEXT);\n" +
	"CREATE TABLE IF NOT EXISTS `delivery` (" +
	"`delivery_id` INTEGER PRIMARY KEY AUTOINCREMENT," +
	"`city` TEXT, `street` TEXT, `zipcode` TEXT," +
	"`status` TEXT NOT NULL);\n" +
	"CREATE TABLE IF NOT EXISTS `item` (" +
	"`item_id` INTEGER PRIMARY KEY AUTOINCREMENT," +
	"`dtype` TEXT NOT NULL," +
	"`name` TEXT NOT NULL," +
	"`price` INTEGER NOT NULL," +
	"`stock_quantity` INTEGER NOT NULL," +
	"`author` TEXT, `isbn` TEXT, `artist` TEXT, `etc` TEXT," +
	"`director` TEXT, `actor` TEXT);\n" +
	"CREATE TABLE IF NOT EXISTS `order` (" +
	"`order_id` INTEGER PRIMARY KEY AUTOINCREMENT," +
	"`member_id` INTEGER NOT NULL REFERENCES `member` (`member_id`)," +
	"`delivery_id` INTEGER NOT NULL UNIQUE REFERENCES `delivery` (`delivery_id`)," +
	"`order_date` DATETIME NOT NULL," +
	"`status` TEXT NOT NULL);\n" +
	"CREATE TABLE IF NOT EXISTS `order_item` (" +
	"`order_item_id` INTEGER PRIMARY KEY AUTOINCREMENT," +
	"`order_id` INTEGER NOT NULL REFERENCES `order` (`order_id`)," +
	"`item_id` INTEGER NOT NULL REFERENCES `item` (`item_id`)," +
	"`order_price` INTEGER NOT NULL," +
	"`count` INTEGER NOT NULL);\n" +
	"CREATE INDEX IF NOT EXISTS `idx_order_item_order` ON `order_item` (`order_id`);\n" +
	"CREATE TABLE IF NOT EXISTS `category` (" +
	"`category_id` INTEGER PRIMARY KEY AUTOINCREMENT," +
	"`name` TEXT NOT NULL," +
	"`parent_id` INTEGER NULL);\n" +
	"CREATE TABLE IF NOT EXISTS `category_item` (" +
	"`category_id` INTEGER NOT NULL," +
	"`item_id` INTEGER NOT NULL," +
	"PRIMARY KEY (`category_id`, `item_id`));\n"

// DDL returns the statements for dialect.
func DDL(dialect Dialect) (string, error) {
	switch dialect {
	case DialectMySQL:
		return mysqlDDL, nil
	case DialectSQLite:
		return sqliteDDL, nil
	default:
		return "", fmt.Errorf("unsupported schema dialect %q", dialect)
	}
}

// Apply creates the tables on execer.
func Apply(ctx context.Context, execer dbexec.Execer, dialect Dialect) error {
	ddl, err := DDL(dialect)
	if err != nil {
		return err
	}
	return ExecScript(ctx, execer, ddl)
}

// ExecScript runs semicolon separated statements in order.
func ExecScript(ctx context.Context, execer dbexec.Execer, script string) error {
	for i, stmt := range SplitStatements(script) {
		if _, err := execer.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

// SplitStatements splits a script on semicolons outside quoted text.
// Blank statements and lines starting with "--" are dropped.
func SplitStatements(script string) []string {
	var (
		out     []string
		current strings.Builder
		quote   rune
	)
	flush := func() {
		stmt := strings.TrimSpace(stripComments(current.String()))
		if stmt != "" {
			out = append(out, stmt)
		}
		current.Reset()
	}
	for _, r := range script {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()
	return out
}

func stripComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
