package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"rentals/internal/app/uow"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

var ErrConcurrentUpdate = fmt.Errorf("postgres: concurrent update detected: %w", uow.ErrConflict)

// mapError translates lock timeouts to uow.ErrBusy and serialization
// failures to uow.ErrConflict.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeLockNotAvailable:
		return fmt.Errorf("%w: %s", uow.ErrBusy, pqErr.Message)
	case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
		return fmt.Errorf("%w: %s", uow.ErrConflict, pqErr.Message)
	}
	return err
}
