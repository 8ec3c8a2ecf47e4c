package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	"github.com/smallbiznis/bakehouse/pkg/db"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Create appends a price row, refusing windows that would overlap an
// existing active row for the same product and unit.
func (s *Service) Create(ctx context.Context, req pricedomain.CreateRequest) (*pricedomain.Price, error) {
	u, err := unit.Parse(req.Unit)
	if err != nil {
		return nil, err
	}
	if u.Canonical() != u {
		return nil, pricedomain.ErrNotCanonical
	}
	if req.Amount.IsNegative() {
		return nil, pricedomain.ErrInvalidAmount
	}
	if req.ValidFrom.IsZero() {
		return nil, pricedomain.ErrInvalidWindow
	}

	now := s.clock.Now()
	entity := &pricedomain.Price{
		ID:        s.genID.Generate(),
		ProductID: req.ProductID,
		Unit:      u,
		Amount:    req.Amount,
		ValidFrom: pricedomain.Day(req.ValidFrom),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.ValidTo != nil {
		end := pricedomain.Day(*req.ValidTo)
		if end.Before(entity.ValidFrom) {
			return nil, pricedomain.ErrInvalidWindow
		}
		entity.ValidTo = &end
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.LockByProduct(ctx, tx, entity.ProductID, u)
		if err != nil {
			return err
		}

		for i := range existing {
			cur := &existing[i]
			if !cur.Active {
				continue
			}
			if req.CloseOpen && cur.ValidTo == nil && cur.ValidFrom.Before(entity.ValidFrom) {
				end := entity.ValidFrom.AddDate(0, 0, -1)
				if err := s.repo.Close(ctx, tx, cur.ID, end, now); err != nil {
					return err
				}
				cur.ValidTo = &end
			}
			if overlaps(*cur, *entity) {
				return pricedomain.ErrOverlap
			}
		}

		return s.repo.Insert(ctx, tx, entity)
	})
	if db.IsDuplicateKeyErr(err) {
		return nil, pricedomain.ErrOverlap
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("price created",
		zap.String("price_id", entity.ID.String()),
		zap.String("product_id", entity.ProductID.String()),
		zap.String("amount", entity.Amount.String()),
	)
	return entity, nil
}

func (s *Service) History(ctx context.Context, productID snowflake.ID, u unit.Unit) ([]pricedomain.Price, error) {
	if !u.Valid() {
		return nil, unit.ErrInvalidUnit
	}
	return s.repo.ListByProduct(ctx, s.db, productID, u.Canonical())
}

// ValidateWindows reports data that breaks the non-overlap rule. Resolution
// stays deterministic regardless; this is an operator diagnostic.
func (s *Service) ValidateWindows(ctx context.Context, productID snowflake.ID, u unit.Unit) ([]pricedomain.WindowIssue, error) {
	rows, err := s.History(ctx, productID, u)
	if err != nil {
		return nil, err
	}
	return findWindowIssues(rows), nil
}

func findWindowIssues(rows []pricedomain.Price) []pricedomain.WindowIssue {
	var issues []pricedomain.WindowIssue
	var open []snowflake.ID

	for i := range rows {
		a := rows[i]
		if !a.Active {
			continue
		}
		if a.ValidTo != nil && a.ValidTo.Before(a.ValidFrom) {
			issues = append(issues, pricedomain.WindowIssue{
				Kind:    pricedomain.IssueInvertedRange,
				PriceID: a.ID,
				Detail:  fmt.Sprintf("valid_to %s precedes valid_from %s", a.ValidTo.Format("2006-01-02"), a.ValidFrom.Format("2006-01-02")),
			})
		}
		if a.ValidTo == nil {
			open = append(open, a.ID)
		}
		for j := i + 1; j < len(rows); j++ {
			b := rows[j]
			if b.Active && overlaps(a, b) {
				issues = append(issues, pricedomain.WindowIssue{
					Kind:    pricedomain.IssueOverlap,
					PriceID: a.ID,
					OtherID: b.ID,
					Detail:  "validity windows share at least one day",
				})
			}
		}
	}

	if len(open) > 1 {
		for _, id := range open[1:] {
			issues = append(issues, pricedomain.WindowIssue{
				Kind:    pricedomain.IssueMultipleOpen,
				PriceID: id,
				OtherID: open[0],
				Detail:  "more than one open-ended price",
			})
		}
	}
	return issues
}

// overlaps treats a nil ValidTo as unbounded.
func overlaps(a, b pricedomain.Price) bool {
	if a.ValidTo != nil && b.ValidFrom.After(*a.ValidTo) {
		return false
	}
	if b.ValidTo != nil && a.ValidFrom.After(*b.ValidTo) {
		return false
	}
	return true
}
