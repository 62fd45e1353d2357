package resolver

import (
	"context"
	"testing"

	"ordergraph/internal/planner"
	"ordergraph/internal/testutil"
	"ordergraph/internal/testutil/mysqldb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategiesAgainstMySQL(t *testing.T) {
	tdb := mysqldb.NewWithFixtures(t)
	r := NewResolver(tdb.Executor, Options{BatchSize: 2, Parallelism: 2})
	ctx := context.Background()

	baseline, err := r.ListOrderSummaries(ctx, planner.OrderSearch{})
	require.NoError(t, err)
	require.Len(t, baseline, testutil.FixtureOrderCount)
	assert.Equal(t, testutil.FixtureLines, summaryLines(baseline))

	for _, info := range Strategies() {
		t.Run(string(info.Strategy), func(t *testing.T) {
			got, err := r.Resolve(ctx, Request{Strategy: info.Strategy})
			require.NoError(t, err)
			assert.Equal(t, baseline, got)
		})
	}

	page := planner.Page{Offset: 1, Limit: 2}
	got, err := r.Resolve(ctx, Request{Strategy: StrategyProjectionBatched, Page: &page})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, summaryIDs(got))
}
