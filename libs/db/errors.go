package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the services branch on.
const (
	CodeExclusionViolation   = "23P01"
	CodeLockNotAvailable     = "55P03"
	CodeQueryCanceled        = "57014"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// ErrorCode returns the SQLSTATE of a Postgres error, or "" for anything else.
func ErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsExclusionViolation(err error) bool {
	return ErrorCode(err) == CodeExclusionViolation
}

// IsRetryable reports whether the transaction failed on contention and can be retried as a whole.
func IsRetryable(err error) bool {
	switch ErrorCode(err) {
	case CodeLockNotAvailable, CodeQueryCanceled, CodeSerializationFailure, CodeDeadlockDetected:
		return true
	}
	return false
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
