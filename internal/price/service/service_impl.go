package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/config"
	obsmetrics "github.com/smallbiznis/bakehouse/internal/observability/metrics"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    pricedomain.Repository
	Units   *unit.Converter
	Policy  *config.CostingPolicyHolder
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    pricedomain.Repository
	units   *unit.Converter
	policy  *config.CostingPolicyHolder
	metrics *obsmetrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("price.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		units:   p.Units,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
}

func (s *Service) ResolvePrice(ctx context.Context, productID snowflake.ID, u unit.Unit, asOf time.Time) (pricedomain.Resolution, error) {
	return s.resolve(ctx, s.db, productID, u, asOf)
}

func (s *Service) ResolvePriceTx(ctx context.Context, tx *gorm.DB, productID snowflake.ID, u unit.Unit, asOf time.Time) (pricedomain.Resolution, error) {
	return s.resolve(ctx, tx, productID, u, asOf)
}

func (s *Service) ComputeLineAmounts(ctx context.Context, productID snowflake.ID, qty decimal.Decimal, u unit.Unit, date time.Time) (pricedomain.LineAmounts, error) {
	return s.ComputeLineAmountsTx(ctx, s.db, productID, qty, u, date)
}

func (s *Service) ComputeLineAmountsTx(ctx context.Context, tx *gorm.DB, productID snowflake.ID, qty decimal.Decimal, u unit.Unit, date time.Time) (pricedomain.LineAmounts, error) {
	if err := unit.ValidateQuantity(qty, u); err != nil {
		return pricedomain.LineAmounts{}, err
	}

	res, err := s.resolve(ctx, tx, productID, u, date)
	if err != nil {
		return pricedomain.LineAmounts{}, err
	}

	amounts := pricedomain.Amounts(res.Amount, qty, s.policy.Get().TaxRate)
	amounts.Priced = res.Priced
	amounts.PriceID = res.PriceID
	return amounts, nil
}

// resolve looks up the canonical price in effect on asOf's UTC day and
// scales it to u. A missing price is not an error.
func (s *Service) resolve(ctx context.Context, db *gorm.DB, productID snowflake.ID, u unit.Unit, asOf time.Time) (pricedomain.Resolution, error) {
	if !u.Valid() {
		return pricedomain.Resolution{}, unit.ErrInvalidUnit
	}

	day := pricedomain.Day(asOf)
	res := pricedomain.Resolution{Amount: decimal.Zero, Unit: u, AsOf: day}

	row, err := s.repo.FindEffectiveAt(ctx, db, productID, u.Canonical(), day)
	if err != nil {
		return pricedomain.Resolution{}, fmt.Errorf("find effective price: %w", err)
	}
	if row == nil {
		s.log.Warn("no price in effect",
			zap.String("product_id", productID.String()),
			zap.String("unit", u.String()),
			zap.String("as_of", day.Format(time.DateOnly)),
		)
		s.metrics.RecordUnpriced(ctx)
		return res, nil
	}

	factor, err := s.units.Factor(u)
	if err != nil {
		return pricedomain.Resolution{}, err
	}

	res.Amount = row.Amount.Mul(factor)
	res.Priced = true
	res.PriceID = row.ID
	return res, nil
}
