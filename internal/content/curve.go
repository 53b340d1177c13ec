package content

import (
	"math"

	"github.com/pkg/errors"
)

// CostCurve is a geometric cost progression: the nth unit costs
// Base * Growth^n. Quoting is a pure function of the owned count, so the
// same state always quotes the same price.
type CostCurve struct {
	Base   float64 `yaml:"base"`
	Growth float64 `yaml:"growth"` // 1.0 is flat pricing
}

func (c CostCurve) validate() error {
	if c.Base < 0 {
		return errors.Errorf("cost curve: negative base %v", c.Base)
	}
	if c.Growth <= 0 {
		return errors.Errorf("cost curve: growth must be positive, got %v", c.Growth)
	}
	return nil
}

// UnitCost returns the price of the unit purchased when owned units are
// already held.
func (c CostCurve) UnitCost(owned int) float64 {
	if owned < 0 {
		owned = 0
	}
	return c.Base * math.Pow(c.Growth, float64(owned))
}

// TotalCost returns the price of count consecutive units starting after
// owned. Uses the closed-form geometric sum when growth is not flat.
func (c CostCurve) TotalCost(owned, count int) float64 {
	if count <= 0 {
		return 0
	}
	if owned < 0 {
		owned = 0
	}
	first := c.UnitCost(owned)
	if c.Growth == 1 {
		return first * float64(count)
	}
	g := c.Growth
	return first * (math.Pow(g, float64(count)) - 1) / (g - 1)
}

// MaxAffordable returns how many consecutive units the budget buys
// starting after owned.
func (c CostCurve) MaxAffordable(owned int, budget float64) int {
	if c.Base == 0 {
		return math.MaxInt32 // free units, caller caps
	}
	if budget <= 0 {
		return 0
	}
	count := 0
	for c.TotalCost(owned, count+1) <= budget {
		count++
	}
	return count
}
