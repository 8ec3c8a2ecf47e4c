package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, material *Material) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Material, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Material, error)
	// LockByIDs selects the rows FOR UPDATE in ascending id order.
	LockByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Material, error)
	// Decrement subtracts qty only while enough stock remains and reports
	// whether the row was updated.
	Decrement(ctx context.Context, db *gorm.DB, id snowflake.ID, qty decimal.Decimal, now time.Time) (bool, error)
	InsertMovements(ctx context.Context, db *gorm.DB, movements []StockMovement) error
	// ListLowStock returns active materials at or below their minimum. An
	// empty ids slice means every material.
	ListLowStock(ctx context.Context, db *gorm.DB, ids []snowflake.ID, limit int) ([]Material, error)
	ListMovements(ctx context.Context, db *gorm.DB, materialID snowflake.ID, limit int) ([]StockMovement, error)
}
