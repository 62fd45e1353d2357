package service

import (
	"context"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/domain"
	"ordergraph/internal/planner"
	"ordergraph/internal/resolver"
)

// ItemService maintains the item catalogue.
type ItemService struct {
	executor dbexec.QueryExecutor
	reader   *resolver.Resolver
}

// SaveItem inserts item and sets its id.
func (s *ItemService) SaveItem(ctx context.Context, item *domain.Item) (int64, error) {
	if err := item.Validate(); err != nil {
		return 0, &domain.InvalidQueryParameterError{Parameter: "item", Reason: err.Error()}
	}
	planned, err := planner.PlanInsertItem(*item)
	if err != nil {
		return 0, err
	}

	var id int64
	err = inTx(ctx, s.executor, func(ctx context.Context, tx dbexec.TxExecutor) error {
		var err error
		id, err = execInsert(ctx, tx, planned)
		return err
	})
	if err != nil {
		return 0, err
	}
	item.ID = id
	return id, nil
}

// UpdateItem rewrites name, price and stock of an existing item.
func (s *ItemService) UpdateItem(ctx context.Context, id int64, name string, price, stock int) error {
	if price < 0 || stock < 0 {
		return &domain.InvalidQueryParameterError{Parameter: "item", Reason: "price and stock must not be negative"}
	}
	return inTx(ctx, s.executor, func(ctx context.Context, tx dbexec.TxExecutor) error {
		if _, err := s.reader.FindItem(ctx, id); err != nil {
			return err
		}
		planned, err := planner.PlanUpdateItem(id, name, price, stock)
		if err != nil {
			return err
		}
		return execUpdate(ctx, tx, planned)
	})
}

// FindItems lists every item.
func (s *ItemService) FindItems(ctx context.Context) ([]domain.Item, error) {
	return s.reader.ListItems(ctx)
}

// FindOne loads one item.
func (s *ItemService) FindOne(ctx context.Context, id int64) (*domain.Item, error) {
	return s.reader.FindItem(ctx, id)
}
