// README: Material catalogue and per-kg point rates for recyclables.
package points

import "github.com/shopspring/decimal"

type Material string

const (
	Plastic     Material = "plastic"
	Paper       Material = "paper"
	Metal       Material = "metal"
	Glass       Material = "glass"
	EWaste      Material = "e-waste"
	Electronics Material = "electronics"
	Cardboard   Material = "cardboard"
	Clothes     Material = "clothes"
	Wood        Material = "wood"
)

// ratesPerKg are points awarded per kilogram.
var ratesPerKg = map[Material]int64{
	Plastic:     167,
	Paper:       53,
	Metal:       287,
	Glass:       23,
	EWaste:      20,
	Electronics: 2000,
	Cardboard:   53,
	Clothes:     117,
	Wood:        100,
}

// MaxWeightKg caps a single pickup's declared weight and each item weight.
const MaxWeightKg = 10000

// GainsPerPoint converts points into money.
var GainsPerPoint = decimal.RequireFromString("0.15")

func (m Material) Known() bool {
	_, ok := ratesPerKg[m]
	return ok
}

// Rate returns points per kg, 0 for unknown materials.
func Rate(m Material) int64 {
	return ratesPerKg[m]
}

func Materials() []Material {
	return []Material{Plastic, Paper, Metal, Glass, EWaste, Electronics, Cardboard, Clothes, Wood}
}

// Line is one item as seen by the engine; quantity does not scale weight.
type Line struct {
	Material Material
	WeightKg float64
}

type Result struct {
	Points int64
	Gains  decimal.Decimal
}
