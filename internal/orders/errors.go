package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrCodeTaken        = errors.New("representative code already taken")
	ErrIdentityTaken    = errors.New("external identity already registered")
	ErrNegativeStock    = errors.New("stock cannot become negative")
	ErrLedgerNotEnabled = errors.New("ledger not configured")
)

// Rejections, conflict and persistence failures of SubmitOrder.
var (
	ErrEmptyCart              = errors.New("empty cart")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidPaymentFraction = errors.New("invalid payment fraction")
	ErrUnauthorizedSubmitter  = errors.New("unauthorized submitter")
	ErrUnknownProduct         = errors.New("unknown product")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrLimitExceeded          = errors.New("limit exceeded")
	ErrDeductionConflict      = errors.New("deduction conflict")
	ErrPersistence            = errors.New("persistence failure")
)

type UnauthorizedReason string

const (
	ReasonNotRegistered UnauthorizedReason = "not_registered"
	ReasonDeactivated   UnauthorizedReason = "deactivated"
)

type UnauthorizedError struct {
	ExternalID int64
	Reason     UnauthorizedReason
}

func (e *UnauthorizedError) Error() string {
	if e.Reason == ReasonDeactivated {
		return fmt.Sprintf("representative %d is deactivated", e.ExternalID)
	}
	return fmt.Sprintf("representative %d is not registered", e.ExternalID)
}

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorizedSubmitter }

type UnknownProductError struct {
	ProductID int64
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *UnknownProductError) Is(target error) bool { return target == ErrUnknownProduct }

type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
	Unit      string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough %q: %d %s available", e.Name, e.Available, e.Unit)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type LimitExceededError struct {
	ProductID int64
	Name      string
	Requested int
	Limit     int
	Unit      string
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("limit for %q: at most %d %s per order", e.Name, e.Limit, e.Unit)
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }

// Kind classifies a submission error for callers.
type Kind string

const (
	KindRejection   Kind = "rejection"
	KindConflict    Kind = "conflict"
	KindPersistence Kind = "persistence"
)

func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrDeductionConflict):
		return KindConflict
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidPaymentFraction),
		errors.Is(err, ErrUnauthorizedSubmitter),
		errors.Is(err, ErrUnknownProduct),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrLimitExceeded):
		return KindRejection
	}
	return KindPersistence
}
