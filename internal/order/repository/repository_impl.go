package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/order/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order, lines []domain.Line) error {
	if err := db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var rows []domain.Order
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var rows []domain.Order
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.Line, error) {
	var rows []domain.Line
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repo) UpdateLineAmounts(ctx context.Context, db *gorm.DB, line *domain.Line, now time.Time) error {
	line.UpdatedAt = now
	return db.WithContext(ctx).Exec(
		`UPDATE order_lines
		 SET unit_price = ?, subtotal = ?, tax_rate = ?, tax_amount = ?, total = ?,
		     priced = ?, price_id = ?, updated_at = ?
		 WHERE id = ?`,
		line.UnitPrice, line.Subtotal, line.TaxRate, line.TaxAmount, line.Total,
		line.Priced, line.PriceID, now, line.ID,
	).Error
}

func (r *repo) UpdateTotals(ctx context.Context, db *gorm.DB, orderID snowflake.ID, subtotal, tax, total decimal.Decimal, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET subtotal = ?, tax_amount = ?, total = ?, updated_at = ? WHERE id = ?`,
		subtotal, tax, total, now, orderID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, id, from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkStockConsumed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders SET stock_consumed_at = ?, updated_at = ? WHERE id = ? AND stock_consumed_at IS NULL`,
		at, at, id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListIDs(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]snowflake.ID, error) {
	q := db.WithContext(ctx).Model(&domain.Order{})
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}
	if filter.From != nil {
		q = q.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("date <= ?", *filter.To)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.AfterID != 0 {
		q = q.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var ids []snowflake.ID
	err := q.Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}
