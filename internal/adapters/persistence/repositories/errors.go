package repositories

import (
	"errors"
	"fmt"

	"coop-ledger/internal/core/domain"

	"gorm.io/gorm"
)

// mutationError carries a caller mutation's error out of a transaction untouched
type mutationError struct {
	err error
}

func (e mutationError) Error() string { return e.err.Error() }
func (e mutationError) Unwrap() error { return e.err }

// translate maps driver errors onto the domain taxonomy
func translate(err error) error {
	if err == nil {
		return nil
	}
	var me mutationError
	if errors.As(err, &me) {
		return me.err
	}
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDuplicate):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", domain.ErrDuplicate, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
