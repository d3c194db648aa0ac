package ledger

import (
	"errors"
	"fmt"
	"time"
)

// ReadError is returned when a remote read fails. It aborts the fetch it
// belongs to.
type ReadError struct {
	Field string
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Field, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError is returned when a submission is rejected, either locally
// before it is sent or by the ledger.
type WriteError struct {
	Op  Operation
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to submit %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// NotFoundError means a receipt is not available yet.
type NotFoundError struct {
	TxID TxID
}

func (e *NotFoundError) Error() string {
	if e.TxID == "" {
		return "unknown transaction"
	}
	return fmt.Sprintf("unknown transaction %s", e.TxID)
}

// ErrNotFound matches any NotFoundError with errors.Is.
var ErrNotFound = &NotFoundError{}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// TimeoutError is returned when a transaction was not confirmed within the
// attempt budget.
type TimeoutError struct {
	TxID     TxID
	Attempts int
	Interval time.Duration
}

// Budget is the total wait the watcher allowed.
func (e *TimeoutError) Budget() time.Duration {
	return time.Duration(e.Attempts) * e.Interval
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction %s was not confirmed within %s (%d attempts); is anyone producing blocks on this chain?", e.TxID, e.Budget(), e.Attempts)
}

// SubscriptionFault is raised when a notification channel breaks.
type SubscriptionFault struct {
	Err error
}

func (e *SubscriptionFault) Error() string {
	return fmt.Sprintf("notification subscription failed: %v", e.Err)
}

func (e *SubscriptionFault) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsReadError(err error) bool {
	var target *ReadError
	return errors.As(err, &target)
}

func IsWriteError(err error) bool {
	var target *WriteError
	return errors.As(err, &target)
}

func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

func IsSubscriptionFault(err error) bool {
	var target *SubscriptionFault
	return errors.As(err, &target)
}
