package settlement

import (
	"errors"
	"fmt"
)

// ErrOrderBusy otra instancia del worker tiene el lock de la orden.
var ErrOrderBusy = errors.New("settlement: orden bloqueada por otra instancia")

// ErrGrantUnrecorded el router habilitó el acceso pero la orden no quedó completed.
// El Job va a dead-letter para conciliación manual.
var ErrGrantUnrecorded = errors.New("settlement: acceso habilitado sin registrar")

// RetryableError fallo transitorio (store, lock) antes de cualquier escritura terminal:
// el worker reencola el Job con backoff.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("settlement: %s: %v", e.Op, e.Err) }
func (e *RetryableError) Unwrap() error { return e.Err }

func retryable(op string, err error) error {
	return &RetryableError{Op: op, Err: err}
}

// IsRetryable indica si err debe reencolarse.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}
