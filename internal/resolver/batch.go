package resolver

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchLoader resolves a one-to-many relation for many parents with IN-clause
// queries of at most MaxInClause keys each.
type BatchLoader[K comparable, V any] struct {
	// MaxInClause bounds the keys per query. Zero or negative means one query for all keys.
	MaxInClause int
	// Parallelism bounds how many chunk queries run at once. Values below 2 run chunks in order.
	Parallelism int
	// Fetch loads the children of one chunk of parent keys.
	Fetch func(ctx context.Context, keys []K) ([]V, error)
	// KeyOf returns the parent key a child belongs to.
	KeyOf func(V) K
}

// Load returns the children of every key. Each distinct non-zero key has an entry,
// empty when it has no children; children keep the order Fetch returned them in.
// No query is issued for an empty key set.
func (l BatchLoader[K, V]) Load(ctx context.Context, keys []K) (map[K][]V, error) {
	keys = uniqueKeys(keys)
	grouped := make(map[K][]V, len(keys))
	if len(keys) == 0 {
		return grouped, nil
	}
	for _, key := range keys {
		grouped[key] = []V{}
	}

	chunks := chunkKeys(keys, l.MaxInClause)
	results := make([][]V, len(chunks))

	if l.Parallelism < 2 || len(chunks) == 1 {
		for i, chunk := range chunks {
			children, err := l.Fetch(ctx, chunk)
			if err != nil {
				return nil, err
			}
			results[i] = children
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.Parallelism)
		for i, chunk := range chunks {
			g.Go(func() error {
				children, err := l.Fetch(gctx, chunk)
				if err != nil {
					return err
				}
				results[i] = children
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	// Merge in chunk order so the result does not depend on completion order.
	for _, children := range results {
		for _, child := range children {
			key := l.KeyOf(child)
			if _, ok := grouped[key]; !ok {
				continue
			}
			grouped[key] = append(grouped[key], child)
		}
	}
	return grouped, nil
}

// ChunkCount returns the number of queries Load issues for n distinct keys.
func (l BatchLoader[K, V]) ChunkCount(n int) int {
	if n <= 0 {
		return 0
	}
	if l.MaxInClause <= 0 {
		return 1
	}
	return (n + l.MaxInClause - 1) / l.MaxInClause
}
