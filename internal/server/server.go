package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/bakehouse/internal/config"
	"github.com/smallbiznis/bakehouse/internal/costing"
	costingdomain "github.com/smallbiznis/bakehouse/internal/costing/domain"
	"github.com/smallbiznis/bakehouse/internal/material"
	materialdomain "github.com/smallbiznis/bakehouse/internal/material/domain"
	obslogger "github.com/smallbiznis/bakehouse/internal/observability/logger"
	obstracing "github.com/smallbiznis/bakehouse/internal/observability/tracing"
	"github.com/smallbiznis/bakehouse/internal/order"
	orderdomain "github.com/smallbiznis/bakehouse/internal/order/domain"
	"github.com/smallbiznis/bakehouse/internal/price"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	"github.com/smallbiznis/bakehouse/internal/product"
	productdomain "github.com/smallbiznis/bakehouse/internal/product/domain"
	"github.com/smallbiznis/bakehouse/internal/recipe"
	recipedomain "github.com/smallbiznis/bakehouse/internal/recipe/domain"
	"github.com/smallbiznis/bakehouse/internal/reconciliation"
	reconciliationdomain "github.com/smallbiznis/bakehouse/internal/reconciliation/domain"
	"github.com/smallbiznis/bakehouse/internal/runlock"
	"github.com/smallbiznis/bakehouse/internal/stock"
	stockdomain "github.com/smallbiznis/bakehouse/internal/stock/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Services bundles every domain module the HTTP adapter and the scheduler
// depend on.
var Services = fx.Options(
	unit.Module,
	product.Module,
	price.Module,
	material.Module,
	recipe.Module,
	costing.Module,
	order.Module,
	stock.Module,
	runlock.Module,
	reconciliation.Module,
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine()
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	productSvc     productdomain.Service
	priceSvc       pricedomain.Service
	materialSvc    materialdomain.Service
	recipeSvc      recipedomain.Service
	calculator     costingdomain.Calculator
	orderSvc       orderdomain.Service
	stock          stockdomain.Consumer
	reconciliation reconciliationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	ProductSvc     productdomain.Service
	PriceSvc       pricedomain.Service
	MaterialSvc    materialdomain.Service
	RecipeSvc      recipedomain.Service
	Calculator     costingdomain.Calculator
	OrderSvc       orderdomain.Service
	Stock          stockdomain.Consumer
	Reconciliation reconciliationdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		productSvc:     p.ProductSvc,
		priceSvc:       p.PriceSvc,
		materialSvc:    p.MaterialSvc,
		recipeSvc:      p.RecipeSvc,
		calculator:     p.Calculator,
		orderSvc:       p.OrderSvc,
		stock:          p.Stock,
		reconciliation: p.Reconciliation,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/products", s.CreateProduct)
	api.GET("/products/:id", s.GetProductByID)
	api.GET("/products/:id/prices", s.ListPriceHistory)
	api.GET("/products/:id/prices/issues", s.ValidatePriceWindows)

	api.POST("/prices", s.CreatePrice)
	api.GET("/prices/resolve", s.ResolvePrice)
	api.POST("/prices/line-amounts", s.ComputeLineAmounts)

	api.POST("/materials", s.CreateMaterial)
	api.GET("/materials/low-stock", s.ListLowStock)
	api.GET("/materials/:id", s.GetMaterialByID)
	api.GET("/materials/:id/movements", s.ListStockMovements)

	api.POST("/recipes", s.CreateRecipe)
	api.GET("/recipes/:id", s.GetRecipeByID)
	api.POST("/recipes/:id/refresh-cache", s.RefreshRecipeCache)

	api.POST("/requirements", s.ComputeRequirements)

	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:id", s.GetOrderByID)
	api.POST("/orders/:id/transition", s.TransitionOrder)
	api.POST("/orders/:id/reprice", s.RepriceOrder)
	api.POST("/orders/:id/consume-stock", s.ConsumeStock)

	api.POST("/reconciliations", s.ReconcilePrices)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
