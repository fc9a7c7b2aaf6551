/*
formulas.go - Cost Formula Library

PURPOSE:
  Pure functions computing bid cost, actual labor and material cost,
  percent complete, and margins. Every rollup in the package goes through
  these functions so portfolio, project and line level numbers never diverge.

RULES:
  - Absent rows contribute zero. Every function is total on its inputs.
  - Margins divide by a value that may be zero. A zero denominator yields 0.

LABOR COST:
  (hours_st + hours_ot * 1.5) * hourly_rate * burden_multiplier

SCOPE CREEP ESTIMATE:
  estimated_labor_hours * 85 + estimated_material_cost

  The 85 is a fixed nominal rate for estimating unbilled work. It is not
  derived from actual labor rates.
*/
package margin

import "github.com/shopspring/decimal"

const (
	// ScopeCreepLaborRate is the nominal hourly rate used to price scope creep.
	ScopeCreepLaborRate = 85
)

var (
	overtimeFactor      = decimal.RequireFromString("1.5")
	scopeCreepLaborRate = decimal.NewFromInt(ScopeCreepLaborRate)
)

// =============================================================================
// BID COST
// =============================================================================

// BidCost returns labor + material + equipment + sub for one budget row.
func (b LineBudget) BidCost() decimal.Decimal {
	return b.LaborCost.Add(b.MaterialCost).Add(b.EquipmentCost).Add(b.SubCost)
}

// BidCost sums the bid cost of every budget row.
func BidCost(budgets []LineBudget) decimal.Decimal {
	total := decimal.Zero
	for _, b := range budgets {
		total = total.Add(b.BidCost())
	}
	return total
}

// BudgetedLaborCost sums the estimated labor cost of every budget row.
func BudgetedLaborCost(budgets []LineBudget) decimal.Decimal {
	total := decimal.Zero
	for _, b := range budgets {
		total = total.Add(b.LaborCost)
	}
	return total
}

// BudgetedLaborHours sums the estimated labor hours of every budget row.
func BudgetedLaborHours(budgets []LineBudget) decimal.Decimal {
	total := decimal.Zero
	for _, b := range budgets {
		total = total.Add(b.LaborHours)
	}
	return total
}

// =============================================================================
// ACTUAL COST
// =============================================================================

// LaborCost is the burdened cost of one labor entry.
func LaborCost(e LaborEntry) decimal.Decimal {
	weighted := e.StraightHours.Add(e.OvertimeHours.Mul(overtimeFactor))
	return weighted.Mul(e.HourlyRate).Mul(e.BurdenMultiplier)
}

// ActualLaborCost sums LaborCost over entries.
func ActualLaborCost(entries []LaborEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(LaborCost(e))
	}
	return total
}

// ActualLaborHours sums straight and overtime hours, unweighted.
func ActualLaborHours(entries []LaborEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours())
	}
	return total
}

// ActualMaterialCost sums delivery totals.
func ActualMaterialCost(deliveries []MaterialDelivery) decimal.Decimal {
	total := decimal.Zero
	for _, d := range deliveries {
		total = total.Add(d.TotalCost)
	}
	return total
}

// =============================================================================
// BILLING AND COMPLETION
// =============================================================================

// TotalBilled sums cumulative billed amounts. Callers pass only the latest
// application of each project.
func TotalBilled(apps []BillingApplication) decimal.Decimal {
	total := decimal.Zero
	for _, a := range apps {
		total = total.Add(a.CumulativeBilled)
	}
	return total
}

// PercentComplete averages percent complete over line items, 0 when empty.
func PercentComplete(items []BillingLineItem) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.PercentComplete)
	}
	return total.Div(decimal.NewFromInt(int64(len(items))))
}

// =============================================================================
// MARGINS
// =============================================================================

// BidMargin is (contractValue - bidCost) / contractValue, 0 when contractValue is 0.
func BidMargin(contractValue, bidCost decimal.Decimal) decimal.Decimal {
	return ratio(contractValue.Sub(bidCost), contractValue)
}

// RealizedMargin is (billed - actualCost) / billed, 0 when billed is 0.
func RealizedMargin(billed, actualCost decimal.Decimal) decimal.Decimal {
	return ratio(billed.Sub(actualCost), billed)
}

// ScopeCreepEstimate prices unbilled work at the nominal labor rate.
func ScopeCreepEstimate(hours, materialCost decimal.Decimal) decimal.Decimal {
	return hours.Mul(scopeCreepLaborRate).Add(materialCost)
}

func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}
