package main

import (
	"context"
	"path/filepath"
	"testing"

	"ordergraph/internal/planner"
	"ordergraph/internal/resolver"
	"ordergraph/internal/service"
	"ordergraph/internal/testutil/sqlitedb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedLoadsDemoOrders(t *testing.T) {
	tdb := sqlitedb.New(t)
	reader := resolver.NewResolver(tdb.Executor, resolver.Options{})
	svc := service.New(tdb.Executor, reader)
	ctx := context.Background()

	require.NoError(t, seed(ctx, svc))

	orders, err := reader.ListOrderFlat(ctx, planner.OrderSearch{})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "userA", orders[0].MemberName)
	assert.Equal(t, "Seoul", orders[0].Address.City)
	assert.Equal(t, []resolver.OrderItemSummary{
		{ItemName: "JPA1 BOOK", OrderPrice: 10000, Count: 1},
		{ItemName: "JPA2 BOOK", OrderPrice: 20000, Count: 2},
	}, orders[0].OrderItems)
	assert.Equal(t, "userB", orders[1].MemberName)
	assert.Len(t, orders[1].OrderItems, 2)

	items, err := svc.Items.FindItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 4)
	stock := map[string]int{}
	for _, item := range items {
		stock[item.Name] = item.StockQuantity
	}
	assert.Equal(t, map[string]int{
		"JPA1 BOOK":    99,
		"JPA2 BOOK":    98,
		"SPRING1 BOOK": 197,
		"SPRING2 BOOK": 296,
	}, stock)
}

func TestSeedSkipsPopulatedStore(t *testing.T) {
	tdb := sqlitedb.New(t)
	reader := resolver.NewResolver(tdb.Executor, resolver.Options{})
	svc := service.New(tdb.Executor, reader)
	ctx := context.Background()

	require.NoError(t, seed(ctx, svc))
	require.NoError(t, seed(ctx, svc))

	members, err := svc.Members.FindMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRunCreatesSchemaInSQLiteFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "shop.db")
	args := []string{
		"--database.driver=sqlite",
		"--database.path=" + path,
		"--observability.logging.level=error",
		"--create-schema",
	}
	require.NoError(t, run(args))
	require.NoError(t, run(args))

	assert.Error(t, run([]string{"--database.driver=sqlite", "--database.path=" + filepath.Join(t.TempDir(), "empty.db")}))
}
