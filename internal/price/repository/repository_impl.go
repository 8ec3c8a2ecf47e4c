package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() pricedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *pricedomain.Price) error {
	return db.WithContext(ctx).Create(p).Error
}

func (r *repo) FindEffectiveAt(ctx context.Context, db *gorm.DB, productID snowflake.ID, u unit.Unit, day time.Time) (*pricedomain.Price, error) {
	var items []pricedomain.Price
	err := db.WithContext(ctx).
		Where("product_id = ? AND unit = ? AND active = ?", productID, u, true).
		Where("valid_from <= ?", day).
		Where("valid_to IS NULL OR valid_to >= ?", day).
		Order("valid_from DESC").
		Order("id DESC").
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListByProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID, u unit.Unit) ([]pricedomain.Price, error) {
	var items []pricedomain.Price
	err := db.WithContext(ctx).
		Where("product_id = ? AND unit = ?", productID, u).
		Order("valid_from ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// LockByProduct takes the product row lock before reading the history, so
// concurrent writers for one product serialize even when it has no rows yet.
func (r *repo) LockByProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID, u unit.Unit) ([]pricedomain.Price, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Table("products").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	var items []pricedomain.Price
	err = db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND unit = ?", productID, u).
		Order("valid_from ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Close(ctx context.Context, db *gorm.DB, id snowflake.ID, validTo time.Time, now time.Time) error {
	return db.WithContext(ctx).
		Model(&pricedomain.Price{}).
		Where("id = ? AND valid_to IS NULL", id).
		Updates(map[string]any{"valid_to": validTo, "updated_at": now}).Error
}
