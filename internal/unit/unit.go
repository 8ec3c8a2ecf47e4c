package unit

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
	"go.uber.org/zap"
)

// Unit is the closed set of quantity units the engine understands.
type Unit string

const (
	KG    Unit = "KG"
	Gram  Unit = "GRAM"
	Litre Unit = "LITRE"
	ML    Unit = "ML"
	Piece Unit = "PIECE"
)

// Family groups units that share a canonical unit.
type Family string

const (
	Mass   Family = "mass"
	Volume Family = "volume"
)

var (
	ErrInvalidUnit       = apperror.New(apperror.KindValidation, "invalid_unit")
	ErrIncompatibleUnits = apperror.New(apperror.KindValidation, "incompatible_units")
	ErrInvalidQuantity   = apperror.New(apperror.KindValidation, "invalid_quantity")
)

// DefaultPieceWeightKg is the average weight assumed for one piece when
// no weight is configured. It is a sales approximation, not a physical constant.
var DefaultPieceWeightKg = decimal.RequireFromString("0.1")

var thousandth = decimal.New(1, -3)

var aliases = map[string]Unit{
	"KG":         KG,
	"KILOGRAM":   KG,
	"KGS":        KG,
	"GRAM":       Gram,
	"GR":         Gram,
	"G":          Gram,
	"GRAMS":      Gram,
	"LITRE":      Litre,
	"LITER":      Litre,
	"LT":         Litre,
	"L":          Litre,
	"ML":         ML,
	"MILLILITRE": ML,
	"MILLILITER": ML,
	"PIECE":      Piece,
	"PCS":        Piece,
	"ADET":       Piece,
}

// Parse maps a free-form unit string onto the enumeration.
func Parse(raw string) (Unit, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if u, ok := aliases[key]; ok {
		return u, nil
	}
	return "", ErrInvalidUnit
}

func (u Unit) Valid() bool {
	switch u {
	case KG, Gram, Litre, ML, Piece:
		return true
	default:
		return false
	}
}

// Family returns the unit family. Pieces are approximated as mass.
func (u Unit) Family() Family {
	switch u {
	case Litre, ML:
		return Volume
	default:
		return Mass
	}
}

// Canonical returns the storage unit of the unit's family.
func (u Unit) Canonical() Unit {
	if u.Family() == Volume {
		return Litre
	}
	return KG
}

func (u Unit) String() string {
	return string(u)
}

// Converter canonicalizes quantities and is safe for concurrent use.
type Converter struct {
	pieceWeight atomic.Pointer[decimal.Decimal]
	log         *zap.Logger
	warnOnce    sync.Once
}

func NewConverter(pieceWeightKg decimal.Decimal, log *zap.Logger) *Converter {
	if !pieceWeightKg.IsPositive() {
		pieceWeightKg = DefaultPieceWeightKg
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Converter{log: log.Named("unit.converter")}
	c.pieceWeight.Store(&pieceWeightKg)
	return c
}

// PieceWeight returns the configured kilograms per piece.
func (c *Converter) PieceWeight() decimal.Decimal {
	return *c.pieceWeight.Load()
}

// SetPieceWeight swaps the piece weight used by later conversions.
// Non-positive weights are ignored.
func (c *Converter) SetPieceWeight(kg decimal.Decimal) {
	if !kg.IsPositive() {
		return
	}
	c.pieceWeight.Store(&kg)
}

// Factor returns the multiplier taking one u into its canonical unit.
func (c *Converter) Factor(u Unit) (decimal.Decimal, error) {
	switch u {
	case KG, Litre:
		return decimal.NewFromInt(1), nil
	case Gram, ML:
		return thousandth, nil
	case Piece:
		weight := c.PieceWeight()
		c.warnOnce.Do(func() {
			c.log.Warn("piece quantities converted with average piece weight",
				zap.String("piece_weight_kg", weight.String()),
			)
		})
		return weight, nil
	default:
		return decimal.Zero, ErrInvalidUnit
	}
}

// ToCanonical converts qty expressed in u into the canonical unit of u's family.
func (c *Converter) ToCanonical(qty decimal.Decimal, u Unit) (decimal.Decimal, Unit, error) {
	factor, err := c.Factor(u)
	if err != nil {
		return decimal.Zero, "", err
	}
	return qty.Mul(factor), u.Canonical(), nil
}

// FromCanonical converts a canonical quantity back into u.
func (c *Converter) FromCanonical(qty decimal.Decimal, u Unit) (decimal.Decimal, error) {
	factor, err := c.Factor(u)
	if err != nil {
		return decimal.Zero, err
	}
	return qty.Div(factor), nil
}

// Convert moves qty between two units of the same family.
func (c *Converter) Convert(qty decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	if !from.Valid() || !to.Valid() {
		return decimal.Zero, ErrInvalidUnit
	}
	if from == to {
		return qty, nil
	}
	if from.Canonical() != to.Canonical() {
		return decimal.Zero, ErrIncompatibleUnits
	}
	canonical, _, err := c.ToCanonical(qty, from)
	if err != nil {
		return decimal.Zero, err
	}
	return c.FromCanonical(canonical, to)
}

// ValidateQuantity rejects non-positive quantities and unknown units.
func ValidateQuantity(qty decimal.Decimal, u Unit) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	if !u.Valid() {
		return ErrInvalidUnit
	}
	return nil
}
