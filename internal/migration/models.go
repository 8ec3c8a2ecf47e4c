package migration

import (
	materialdomain "github.com/smallbiznis/bakehouse/internal/material/domain"
	orderdomain "github.com/smallbiznis/bakehouse/internal/order/domain"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	productdomain "github.com/smallbiznis/bakehouse/internal/product/domain"
	recipedomain "github.com/smallbiznis/bakehouse/internal/recipe/domain"
	"gorm.io/gorm"
)

// Models lists every persisted type. Dialects without SQL migrations are
// brought up to date from it.
func Models() []any {
	return []any{
		&productdomain.Product{},
		&pricedomain.Price{},
		&materialdomain.Material{},
		&materialdomain.StockMovement{},
		&recipedomain.Recipe{},
		&recipedomain.Ingredient{},
		&orderdomain.Order{},
		&orderdomain.Line{},
	}
}

// openWindowIndex needs partial index support, which mysql lacks; there the
// overlap check in price creation is the only guard.
const openWindowIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_prices_open_window
ON prices (product_id, unit) WHERE valid_to IS NULL AND active`

func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return err
	}
	if conn.Dialector.Name() == "mysql" {
		return nil
	}
	return conn.Exec(openWindowIndex).Error
}
