package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/material/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/smallbiznis/bakehouse/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultListLimit = 100

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Units *unit.Converter
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	units *unit.Converter
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("material.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		units: p.Units,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Material, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	u, err := unit.Parse(req.Unit)
	if err != nil {
		return nil, err
	}
	if req.StockQuantity.IsNegative() || req.MinimumStock.IsNegative() {
		return nil, domain.ErrInvalidQuantity
	}
	if req.UnitPrice.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}

	// Stock and minimum are held canonically; the unit price follows them.
	stock, canonical, err := s.units.ToCanonical(req.StockQuantity, u)
	if err != nil {
		return nil, err
	}
	minimum, _, err := s.units.ToCanonical(req.MinimumStock, u)
	if err != nil {
		return nil, err
	}
	factor, err := s.units.Factor(u)
	if err != nil {
		return nil, err
	}
	unitPrice := req.UnitPrice.Div(factor)

	code := slug.Make(strings.TrimSpace(req.Code))
	if code == "" {
		code = slug.Make(name)
	}

	now := s.clock.Now()
	entity := &domain.Material{
		ID:            s.genID.Generate(),
		Code:          code,
		Name:          name,
		Unit:          canonical,
		StockQuantity: stock,
		UnitPrice:     unitPrice,
		MinimumStock:  minimum,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Metadata != nil {
		entity.Metadata = datatypes.JSONMap(req.Metadata)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, entity); err != nil {
			return err
		}
		if !stock.IsPositive() {
			return nil
		}
		return s.repo.InsertMovements(ctx, tx, []domain.StockMovement{{
			ID:           s.genID.Generate(),
			MaterialID:   entity.ID,
			Quantity:     stock,
			BalanceAfter: stock,
			Reason:       domain.ReasonOpeningBalance,
			CreatedAt:    now,
		}})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicate
		}
		return nil, err
	}

	s.log.Info("material created",
		zap.String("material_id", entity.ID.String()),
		zap.String("code", entity.Code),
		zap.String("unit", entity.Unit.String()),
	)
	return entity, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Material, error) {
	entity, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, domain.ErrNotFound
	}
	return entity, nil
}

func (s *Service) LowStock(ctx context.Context, limit int) ([]domain.Material, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListLowStock(ctx, s.db, nil, limit)
}

func (s *Service) Movements(ctx context.Context, materialID snowflake.ID, limit int) ([]domain.StockMovement, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if _, err := s.Get(ctx, materialID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, s.db, materialID, limit)
}
