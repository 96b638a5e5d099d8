// internal/pkg/apperror/apperror.go
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an application error for the transport layer
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidArgument   Kind = "invalid_argument"
	KindInsufficientStock Kind = "insufficient_stock"
	KindEmptyCart         Kind = "empty_cart"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal"
)

// Error is a classified application error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// InsufficientStockError reports a cart line that asks for more than is on hand
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q (id %d): available %d, requested %d",
		e.ProductName, e.ProductID, e.Available, e.Requested)
}

func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, keeping it in the chain
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...interface{}) error {
	return New(KindNotFound, format, args...)
}

func InvalidArgument(format string, args ...interface{}) error {
	return New(KindInvalidArgument, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return New(KindConflict, format, args...)
}

func Unauthorized(format string, args ...interface{}) error {
	return New(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return New(KindForbidden, format, args...)
}

func InvalidTransition(from, to string) error {
	return New(KindInvalidTransition, "cannot change order status from %s to %s", from, to)
}

var ErrEmptyCart = &Error{Kind: KindEmptyCart, Message: "cart is empty"}

func InsufficientStock(productID uint, name string, available, requested int) error {
	return &InsufficientStockError{
		ProductID:   productID,
		ProductName: name,
		Available:   available,
		Requested:   requested,
	}
}

// KindOf reports the kind of err, or KindInternal when it is unclassified
func KindOf(err error) Kind {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return KindInsufficientStock
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
