package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestPGCode(t *testing.T) {
	assert.Equal(t, "40001", PGCode(fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40001"})))
	assert.Equal(t, "55P03", PGCode(&pq.Error{Code: "55P03"}))
	assert.Equal(t, "", PGCode(errors.New("boom")))
	assert.Equal(t, "", PGCode(nil))
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsSerializationFailure(&pq.Error{Code: "40P01"}))
	assert.True(t, IsLockTimeout(&pgconn.PgError{Code: "55P03"}))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "55P03"}))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(nil))
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: materials.code")))
	assert.False(t, IsDuplicateKeyErr(nil))
}

func TestIsCheckViolation(t *testing.T) {
	assert.True(t, IsCheckViolation(&pgconn.PgError{Code: "23514"}))
	assert.True(t, IsCheckViolation(errors.New("CHECK constraint failed: stock_non_negative")))
	assert.False(t, IsCheckViolation(errors.New("boom")))
}

func TestIsDriverError(t *testing.T) {
	assert.False(t, IsDriverError(gorm.ErrRecordNotFound))
	assert.True(t, IsDriverError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsDriverError(errors.New("boom")))
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)
}
