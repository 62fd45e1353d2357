// Command seed loads the demo data set: two members, four books and one
// two-line order per member. With -create-schema it first creates the tables.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"ordergraph/internal/config"
	"ordergraph/internal/dbexec"
	"ordergraph/internal/domain"
	"ordergraph/internal/logging"
	"ordergraph/internal/resolver"
	"ordergraph/internal/schema"
	"ordergraph/internal/service"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"
	_ "modernc.org/sqlite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := config.NewFlagSet("ordergraph-seed")
	createSchema := fs.Bool("create-schema", false, "Create missing tables before seeding")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFlags(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if result := cfg.Validate(); result.HasErrors() {
		return fmt.Errorf("configuration validation failed: %s", result.Error())
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})
	ctx := logging.WithLogger(context.Background(), logger)

	if err := cfg.Database.RegisterTLS(); err != nil {
		return err
	}
	db, err := sql.Open(cfg.Database.DriverName(), cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if cfg.Database.DriverName() == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	executor := dbexec.NewStandardExecutor(db)
	if *createSchema {
		if err := schema.Apply(ctx, executor, schema.Dialect(cfg.Database.DriverName())); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		logger.Info("schema ensured", slog.String("driver", cfg.Database.DriverName()))
	}

	reader := resolver.NewResolver(executor, resolver.Options{BatchSize: cfg.Resolver.BatchSize})
	return seed(ctx, service.New(executor, reader))
}

type demoMember struct {
	name    string
	address domain.Address
	books   [2]*domain.Item
	counts  [2]int
}

func demoData() []demoMember {
	return []demoMember{
		{
			name:    "userA",
			address: domain.Address{City: "Seoul", Street: "1", Zipcode: "1111"},
			books: [2]*domain.Item{
				domain.NewBook("JPA1 BOOK", 10000, 100, "", ""),
				domain.NewBook("JPA2 BOOK", 20000, 100, "", ""),
			},
			counts: [2]int{1, 2},
		},
		{
			name:    "userB",
			address: domain.Address{City: "Busan", Street: "2", Zipcode: "2222"},
			books: [2]*domain.Item{
				domain.NewBook("SPRING1 BOOK", 20000, 200, "", ""),
				domain.NewBook("SPRING2 BOOK", 40000, 300, "", ""),
			},
			counts: [2]int{3, 4},
		},
	}
}

// seed inserts the demo data unless members already exist.
func seed(ctx context.Context, svc *service.Services) error {
	logger := logging.FromContext(ctx)

	existing, err := svc.Members.FindMembers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("store already has members, skipping seed", slog.Int("members", len(existing)))
		return nil
	}

	for _, demo := range demoData() {
		memberID, err := svc.Members.Join(ctx, domain.Member{Name: demo.name, Address: demo.address})
		if err != nil {
			return fmt.Errorf("join %s: %w", demo.name, err)
		}

		lines := make([]service.OrderLine, 0, len(demo.books))
		for i, book := range demo.books {
			itemID, err := svc.Items.SaveItem(ctx, book)
			if err != nil {
				return fmt.Errorf("save %s: %w", book.Name, err)
			}
			lines = append(lines, service.OrderLine{ItemID: itemID, Count: demo.counts[i]})
		}

		orderID, err := svc.Orders.Place(ctx, memberID, lines...)
		if err != nil {
			return fmt.Errorf("order for %s: %w", demo.name, err)
		}
		logger.Info("seeded member order",
			slog.String("member", demo.name),
			slog.Int64("order_id", orderID),
		)
	}
	return nil
}
