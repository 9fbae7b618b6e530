// README: Deterministic points/gains computation for a pickup's items.
package points

import (
	"math"

	"github.com/shopspring/decimal"
)

var maxPoints = decimal.NewFromInt(math.MaxInt64)

// Compute returns points and gains for lines against totalWeightKg.
//
// When no line carries a positive weight the total is shared evenly by the distinct
// materials. Otherwise each line's own weight is credited to its material.
func Compute(lines []Line, totalWeightKg float64) Result {
	allocated := allocate(lines, totalWeightKg)

	sum := decimal.Zero
	for material, kg := range allocated {
		rate := Rate(material)
		if rate == 0 || kg.Sign() <= 0 {
			continue
		}
		sum = sum.Add(kg.Mul(decimal.NewFromInt(rate)))
	}

	// inputs are bounded by MaxWeightKg upstream; saturate rather than wrap if they are not
	sum = sum.Round(0)
	if !sum.LessThan(maxPoints) {
		return Result{Points: math.MaxInt64, Gains: GainsFor(math.MaxInt64)}
	}
	pts := sum.IntPart()
	if pts < 0 {
		pts = 0
	}
	return Result{Points: pts, Gains: GainsFor(pts)}
}

// GainsFor converts points to money rounded to cents.
func GainsFor(pts int64) decimal.Decimal {
	return decimal.NewFromInt(pts).Mul(GainsPerPoint).Round(2)
}

func allocate(lines []Line, totalWeightKg float64) map[Material]decimal.Decimal {
	out := make(map[Material]decimal.Decimal)
	if len(lines) == 0 {
		return out
	}

	perItem := false
	for _, l := range lines {
		if l.WeightKg > 0 {
			perItem = true
			break
		}
	}

	if perItem {
		for _, l := range lines {
			if l.WeightKg <= 0 {
				continue
			}
			out[l.Material] = out[l.Material].Add(decimal.NewFromFloat(l.WeightKg))
		}
		return out
	}

	if totalWeightKg <= 0 {
		return out
	}
	distinct := make([]Material, 0, len(lines))
	seen := make(map[Material]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.Material]; ok {
			continue
		}
		seen[l.Material] = struct{}{}
		distinct = append(distinct, l.Material)
	}
	share := decimal.NewFromFloat(totalWeightKg).Div(decimal.NewFromInt(int64(len(distinct))))
	for _, m := range distinct {
		out[m] = share
	}
	return out
}
