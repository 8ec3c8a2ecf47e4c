package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/order/domain"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	productdomain "github.com/smallbiznis/bakehouse/internal/product/domain"
	stockdomain "github.com/smallbiznis/bakehouse/internal/stock/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/smallbiznis/bakehouse/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ProductRepo productdomain.Repository
	Prices      pricedomain.Resolver
	Stock       stockdomain.Consumer
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	productRepo productdomain.Repository
	prices      pricedomain.Resolver
	stock       stockdomain.Consumer
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
		prices:      p.Prices,
		stock:       p.Stock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Detail, error) {
	number := strings.TrimSpace(req.Number)
	if number == "" {
		return nil, domain.ErrInvalidNumber
	}
	if req.Date.IsZero() {
		return nil, domain.ErrInvalidDate
	}
	if len(req.Lines) == 0 {
		return nil, domain.ErrNoLines
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:        s.genID.Generate(),
		Number:    number,
		Date:      pricedomain.Day(req.Date),
		Status:    domain.StatusPending,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: now,
		UpdatedAt: now,
	}

	lines := make([]domain.Line, 0, len(req.Lines))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, lr := range req.Lines {
			u, err := unit.Parse(lr.Unit)
			if err != nil {
				return err
			}
			product, err := s.productRepo.FindByID(ctx, tx, lr.ProductID)
			if err != nil {
				return err
			}
			if product == nil {
				return productdomain.ErrNotFound
			}
			amounts, err := s.prices.ComputeLineAmountsTx(ctx, tx, lr.ProductID, lr.Quantity, u, order.Date)
			if err != nil {
				return err
			}
			line := domain.Line{
				ID:        s.genID.Generate(),
				OrderID:   order.ID,
				ProductID: lr.ProductID,
				Quantity:  lr.Quantity,
				Unit:      u,
				CreatedAt: now,
				UpdatedAt: now,
			}
			line.Apply(amounts)
			lines = append(lines, line)
		}
		order.Subtotal, order.TaxAmount, order.Total = domain.Totals(lines)
		return s.repo.Insert(ctx, tx, order, lines)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicate
		}
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("number", order.Number),
		zap.Int("lines", len(lines)),
		zap.String("total", order.Total.String()),
	)
	return &domain.Detail{Order: *order, Lines: lines}, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Detail, error) {
	return s.load(ctx, s.db, id)
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Detail, error) {
	order, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	lines, err := s.repo.ListLines(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return &domain.Detail{Order: *order, Lines: lines}, nil
}

func (s *Service) Transition(ctx context.Context, id snowflake.ID, to domain.Status) (*domain.Detail, error) {
	if _, ok := domain.ParseStatus(string(to)); !ok {
		return nil, domain.ErrInvalidStatus
	}

	var (
		detail   *domain.Detail
		consumed *stockdomain.Result
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		if !order.Status.CanTransition(to) {
			return domain.ErrInvalidTransition
		}

		// Stock is consumed only on entry into prepared.
		if to == domain.StatusPrepared {
			consumed, err = s.stock.ConsumeTx(ctx, tx, id)
			if err != nil {
				return err
			}
		}

		ok, err := s.repo.UpdateStatus(ctx, tx, id, order.Status, to, s.clock.Now())
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if !ok {
			return domain.ErrStatusChanged
		}

		detail, err = s.load(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if consumed != nil {
		s.stock.ReportLowStock(ctx, consumed.MaterialIDs())
	}
	s.log.Info("order transitioned",
		zap.String("order_id", id.String()),
		zap.String("status", string(to)),
	)
	return detail, nil
}

func (s *Service) Reprice(ctx context.Context, id snowflake.ID) (*domain.Detail, error) {
	var detail *domain.Detail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		lines, err := s.repo.ListLines(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		for i := range lines {
			amounts, err := s.prices.ComputeLineAmountsTx(ctx, tx, lines[i].ProductID, lines[i].Quantity, lines[i].Unit, order.Date)
			if err != nil {
				return err
			}
			if !amounts.Priced {
				s.log.Warn("no price for order line, left unchanged",
					zap.String("order_id", id.String()),
					zap.String("line_id", lines[i].ID.String()),
				)
				continue
			}
			lines[i].Apply(amounts)
			if err := s.repo.UpdateLineAmounts(ctx, tx, &lines[i], now); err != nil {
				return err
			}
		}
		subtotal, tax, total := domain.Totals(lines)
		if err := s.repo.UpdateTotals(ctx, tx, id, subtotal, tax, total, now); err != nil {
			return err
		}

		detail, err = s.load(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}
