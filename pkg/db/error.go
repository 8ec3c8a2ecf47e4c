package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if PGCode(err) == codeUniqueViolation {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsCheckViolation reports a violated CHECK constraint, such as a stock
// balance that would go negative.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) || PGCode(err) == codeCheckViolation {
		return true
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}

// IsSerializationFailure covers serialization failures and deadlocks, both of
// which are safe to retry from the start of the transaction.
func IsSerializationFailure(err error) bool {
	switch PGCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	if err == nil {
		return false
	}
	msg := err.Error()
	// MySQL 1213 deadlock, SQLite busy.
	return strings.Contains(msg, "Error 1213") || strings.Contains(msg, "database is locked")
}

func IsLockTimeout(err error) bool {
	return PGCode(err) == codeLockNotAvailable
}

// IsRetryable reports transient contention failures.
func IsRetryable(err error) bool {
	return IsSerializationFailure(err) || IsLockTimeout(err)
}

// PGCode extracts the SQLSTATE from either driver's error type.
func PGCode(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsDriverError reports errors originating from the database layer rather
// than from domain validation.
func IsDriverError(err error) bool {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return PGCode(err) != ""
}
