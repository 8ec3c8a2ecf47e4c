package dbtest

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	materialdomain "github.com/smallbiznis/bakehouse/internal/material/domain"
	orderdomain "github.com/smallbiznis/bakehouse/internal/order/domain"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	productdomain "github.com/smallbiznis/bakehouse/internal/product/domain"
	recipedomain "github.com/smallbiznis/bakehouse/internal/recipe/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Epoch stamps fixture rows.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Fixtures inserts rows directly, bypassing service validation.
type Fixtures struct {
	t    testing.TB
	db   *gorm.DB
	node *snowflake.Node
}

func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db, node: Node(t)}
}

func (f *Fixtures) create(v any) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(v).Error)
}

func (f *Fixtures) Product(code string, sales unit.Unit, fallback string) productdomain.Product {
	p := productdomain.Product{
		ID:               f.node.Generate(),
		Code:             code,
		Name:             code,
		SalesUnit:        sales,
		FallbackUnitCost: Dec(fallback),
		Active:           true,
		CreatedAt:        Epoch,
		UpdatedAt:        Epoch,
	}
	f.create(&p)
	return p
}

// Material takes canonical quantities.
func (f *Fixtures) Material(code string, u unit.Unit, stock, unitPrice string) materialdomain.Material {
	m := materialdomain.Material{
		ID:            f.node.Generate(),
		Code:          code,
		Name:          code,
		Unit:          u,
		StockQuantity: Dec(stock),
		UnitPrice:     Dec(unitPrice),
		MinimumStock:  decimal.Zero,
		Active:        true,
		CreatedAt:     Epoch,
		UpdatedAt:     Epoch,
	}
	f.create(&m)
	return m
}

type IngredientSpec struct {
	Material materialdomain.Material
	Quantity string
	Unit     unit.Unit
	Fire1    string
	Fire2    string
}

func (f *Fixtures) Recipe(product productdomain.Product, yield unit.Unit, specs ...IngredientSpec) recipedomain.Recipe {
	r := recipedomain.Recipe{
		ID:        f.node.Generate(),
		ProductID: product.ID,
		Name:      product.Name,
		YieldUnit: yield,
		Active:    true,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	f.create(&r)
	for _, in := range specs {
		fire1, fire2 := decimal.Zero, decimal.Zero
		if in.Fire1 != "" {
			fire1 = Dec(in.Fire1)
		}
		if in.Fire2 != "" {
			fire2 = Dec(in.Fire2)
		}
		f.create(&recipedomain.Ingredient{
			ID:         f.node.Generate(),
			RecipeID:   r.ID,
			MaterialID: in.Material.ID,
			Quantity:   Dec(in.Quantity),
			Unit:       in.Unit,
			Fire1:      fire1,
			Fire2:      fire2,
			CreatedAt:  Epoch,
			UpdatedAt:  Epoch,
		})
	}
	return r
}

// Price inserts a canonical price. A nil to leaves the window open.
func (f *Fixtures) Price(product productdomain.Product, u unit.Unit, amount string, from time.Time, to *time.Time) pricedomain.Price {
	p := pricedomain.Price{
		ID:        f.node.Generate(),
		ProductID: product.ID,
		Unit:      u,
		Amount:    Dec(amount),
		ValidFrom: pricedomain.Day(from),
		Active:    true,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	if to != nil {
		end := pricedomain.Day(*to)
		p.ValidTo = &end
	}
	f.create(&p)
	return p
}

type LineSpec struct {
	Product   productdomain.Product
	Quantity  string
	Unit      unit.Unit
	UnitPrice string
}

// Order stores lines priced at UnitPrice without tax and totals that match.
func (f *Fixtures) Order(number string, date time.Time, status orderdomain.Status, specs ...LineSpec) (orderdomain.Order, []orderdomain.Line) {
	o := orderdomain.Order{
		ID:        f.node.Generate(),
		Number:    number,
		Date:      pricedomain.Day(date),
		Status:    status,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	lines := make([]orderdomain.Line, 0, len(specs))
	for _, ls := range specs {
		line := orderdomain.Line{
			ID:        f.node.Generate(),
			OrderID:   o.ID,
			ProductID: ls.Product.ID,
			Quantity:  Dec(ls.Quantity),
			Unit:      ls.Unit,
			CreatedAt: Epoch,
			UpdatedAt: Epoch,
		}
		if ls.UnitPrice != "" {
			amounts := pricedomain.Amounts(Dec(ls.UnitPrice), line.Quantity, decimal.Zero)
			amounts.Priced = true
			line.Apply(amounts)
		}
		lines = append(lines, line)
	}
	o.Subtotal, o.TaxAmount, o.Total = orderdomain.Totals(lines)
	f.create(&o)
	for i := range lines {
		f.create(&lines[i])
	}
	return o, lines
}

func (f *Fixtures) ReloadMaterial(id snowflake.ID) materialdomain.Material {
	f.t.Helper()
	var m materialdomain.Material
	require.NoError(f.t, f.db.First(&m, "id = ?", id).Error)
	return m
}

func (f *Fixtures) ReloadOrder(id snowflake.ID) (orderdomain.Order, []orderdomain.Line) {
	f.t.Helper()
	var o orderdomain.Order
	require.NoError(f.t, f.db.First(&o, "id = ?", id).Error)
	var lines []orderdomain.Line
	require.NoError(f.t, f.db.Where("order_id = ?", id).Order("id ASC").Find(&lines).Error)
	return o, lines
}
