// Package service implements the write path: member registration, the item
// catalogue and order placement. Every mutating operation runs in one
// transaction and reads through the resolver bound to that transaction.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/logging"
	"ordergraph/internal/planner"
	"ordergraph/internal/resolver"
)

// Services groups the write-path services over one executor.
type Services struct {
	Members *MemberService
	Items   *ItemService
	Orders  *OrderService
}

// New builds the services. reader resolves entities inside each transaction.
func New(executor dbexec.QueryExecutor, reader *resolver.Resolver) *Services {
	return &Services{
		Members: &MemberService{executor: executor, reader: reader},
		Items:   &ItemService{executor: executor, reader: reader},
		Orders:  NewOrderService(executor, reader),
	}
}

// inTx runs fn in a transaction. Reads issued through the resolver with the
// returned context join the transaction.
func inTx(ctx context.Context, executor dbexec.QueryExecutor, fn func(ctx context.Context, tx dbexec.TxExecutor) error) (err error) {
	tx, err := executor.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txCtx := resolver.WithSession(ctx, dbexec.TxSession(tx))
	if err := fn(txCtx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.FromContext(ctx).Warn("rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}
	return tx.Commit()
}

// execInsert runs an insert plan and returns the generated id.
func execInsert(ctx context.Context, tx dbexec.Execer, planned planner.SQLQuery) (int64, error) {
	res, err := tx.ExecContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read generated id: %w", err)
	}
	return id, nil
}

func execUpdate(ctx context.Context, tx dbexec.Execer, planned planner.SQLQuery) error {
	_, err := tx.ExecContext(ctx, planned.SQL, planned.Args...)
	return err
}

// execAffected runs a guarded update and returns the number of rows it changed.
func execAffected(ctx context.Context, tx dbexec.Execer, planned planner.SQLQuery) (int64, error) {
	res, err := tx.ExecContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}
