package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, price *Price) error
	// FindEffectiveAt returns the active price covering day with the latest
	// ValidFrom, or nil when none matches.
	FindEffectiveAt(ctx context.Context, db *gorm.DB, productID snowflake.ID, u unit.Unit, day time.Time) (*Price, error)
	ListByProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID, u unit.Unit) ([]Price, error)
	// LockByProduct is ListByProduct holding row locks on the product and its
	// prices until tx ends.
	LockByProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID, u unit.Unit) ([]Price, error)
	Close(ctx context.Context, db *gorm.DB, id snowflake.ID, validTo time.Time, now time.Time) error
}
