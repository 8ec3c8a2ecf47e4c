package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/product/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/smallbiznis/bakehouse/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	salesUnit, err := unit.Parse(req.SalesUnit)
	if err != nil {
		return nil, err
	}
	if req.FallbackUnitCost.IsNegative() {
		return nil, domain.ErrInvalidCost
	}

	code := slug.Make(strings.TrimSpace(req.Code))
	if code == "" {
		code = slug.Make(name)
	}

	now := s.clock.Now()
	entity := &domain.Product{
		ID:               s.genID.Generate(),
		Code:             code,
		Name:             name,
		SalesUnit:        salesUnit,
		FallbackUnitCost: req.FallbackUnitCost,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.Metadata != nil {
		entity.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.Insert(ctx, s.db, entity); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicate
		}
		return nil, err
	}

	return toResponse(entity), nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || productID <= 0 {
		return nil, domain.ErrInvalidID
	}

	entity, err := s.repo.FindByID(ctx, s.db, snowflake.ID(productID))
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, domain.ErrNotFound
	}
	return toResponse(entity), nil
}

func toResponse(p *domain.Product) *domain.Response {
	return &domain.Response{
		ID:               p.ID.String(),
		Code:             p.Code,
		Name:             p.Name,
		SalesUnit:        p.SalesUnit.String(),
		FallbackUnitCost: p.FallbackUnitCost,
		Active:           p.Active,
		Metadata:         p.Metadata,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
