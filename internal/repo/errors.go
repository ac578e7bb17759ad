package repo

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("repo: not found")
	ErrConflict = errors.New("repo: unique constraint violated")
	ErrStale    = errors.New("repo: row changed since it was read")
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// mapErr turns driver errors the services care about into sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errors.Join(ErrConflict, err)
	}
	return err
}
