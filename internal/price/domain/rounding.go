package domain

import "github.com/shopspring/decimal"

const (
	UnitPricePlaces = 4
	MoneyPlaces     = 2
)

// RoundUnitPrice rounds half away from zero to UnitPricePlaces.
func RoundUnitPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(UnitPricePlaces)
}

// RoundMoney rounds half away from zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Amounts derives line amounts from an unrounded unit price. Each field is
// computed from unrounded inputs and rounded exactly once.
func Amounts(unitPrice, qty, taxRate decimal.Decimal) LineAmounts {
	subtotal := unitPrice.Mul(qty)
	tax := subtotal.Mul(taxRate)
	return LineAmounts{
		UnitPrice: RoundUnitPrice(unitPrice),
		Subtotal:  RoundMoney(subtotal),
		TaxRate:   taxRate,
		TaxAmount: RoundMoney(tax),
		Total:     RoundMoney(subtotal.Add(tax)),
	}
}
