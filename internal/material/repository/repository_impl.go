package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/material/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, material *domain.Material) error {
	return db.WithContext(ctx).Create(material).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Material, error) {
	var m domain.Material
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, unit, stock_quantity, unit_price, minimum_stock, active, metadata, created_at, updated_at
		 FROM materials WHERE id = ?`,
		id,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, nil
	}
	return &m, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Material, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []domain.Material
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repo) LockByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Material, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []domain.Material
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repo) Decrement(ctx context.Context, db *gorm.DB, id snowflake.ID, qty decimal.Decimal, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE materials
		 SET stock_quantity = stock_quantity - ?, updated_at = ?
		 WHERE id = ? AND stock_quantity >= ?`,
		qty, now, id, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertMovements(ctx context.Context, db *gorm.DB, movements []domain.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&movements).Error
}

func (r *repo) ListLowStock(ctx context.Context, db *gorm.DB, ids []snowflake.ID, limit int) ([]domain.Material, error) {
	q := db.WithContext(ctx).
		Where("active = ?", true).
		Where("minimum_stock > 0").
		Where("stock_quantity <= minimum_stock")
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []domain.Material
	err := q.Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *repo) ListMovements(ctx context.Context, db *gorm.DB, materialID snowflake.ID, limit int) ([]domain.StockMovement, error) {
	q := db.WithContext(ctx).
		Where("material_id = ?", materialID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []domain.StockMovement
	err := q.Find(&rows).Error
	return rows, err
}
