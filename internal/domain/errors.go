package domain

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrAlreadyDelivered is returned when cancelling an order whose delivery completed.
	ErrAlreadyDelivered = errors.New("order already delivered")
	// ErrAlreadyCanceled is returned when cancelling an order that is already canceled.
	ErrAlreadyCanceled = errors.New("order already canceled")
	// ErrEmptyOrder is returned when an order would be created without order items.
	ErrEmptyOrder = errors.New("order requires at least one order item")
	// ErrInvalidCount is returned when an order item quantity is below one.
	ErrInvalidCount = errors.New("order item count must be at least 1")
	// ErrMissingRelation is returned when an order is built without member or delivery.
	ErrMissingRelation = errors.New("order requires a member and a delivery")
)

// NotFoundError reports that a lookup by identifier found nothing.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// InsufficientStockError reports a stock removal that would drive stock negative.
type InsufficientStockError struct {
	ItemID    int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

// InvalidQueryParameterError reports a caller contract violation on read parameters.
type InvalidQueryParameterError struct {
	Parameter string
	Reason    string
}

func (e *InvalidQueryParameterError) Error() string {
	return fmt.Sprintf("invalid query parameter %s: %s", e.Parameter, e.Reason)
}

// DuplicateMemberError reports a member name that is already registered.
type DuplicateMemberError struct {
	Name string
}

func (e *DuplicateMemberError) Error() string {
	return fmt.Sprintf("member %q already exists", e.Name)
}

// ErrorKind groups errors by how callers should react to them.
type ErrorKind string

const (
	KindBadRequest   ErrorKind = "bad_request"
	KindNotFound     ErrorKind = "not_found"
	KindBusinessRule ErrorKind = "business_rule"
	KindStore        ErrorKind = "store_unavailable"
	KindInternal     ErrorKind = "internal"
)

// Classify maps an error to the kind surfaced to API callers.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var invalid *InvalidQueryParameterError
	if errors.As(err, &invalid) {
		return KindBadRequest
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return KindNotFound
	}
	var stock *InsufficientStockError
	var duplicate *DuplicateMemberError
	if errors.As(err, &stock) || errors.As(err, &duplicate) ||
		errors.Is(err, ErrAlreadyDelivered) || errors.Is(err, ErrAlreadyCanceled) || errors.Is(err, ErrEmptyOrder) || errors.Is(err, ErrInvalidCount) {
		return KindBusinessRule
	}
	if IsStoreError(err) {
		return KindStore
	}
	return KindInternal
}

// IsStoreError reports whether err originates from the database driver or connection.
func IsStoreError(err error) bool {
	var mysqlErr *mysql.MySQLError
	switch {
	case errors.As(err, &mysqlErr):
		return true
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, sql.ErrTxDone),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}
