package margin

import "github.com/shopspring/decimal"

// LineItemMetrics is the cost and margin picture of one schedule line.
//
// BidMargin divides by the line's scheduled value, the line-level analogue
// of contract value. Variance is bid cost minus actual cost; a negative
// variance means the line is bleeding margin.
type LineItemMetrics struct {
	LineID             LineID          `json:"line_id"`
	LineNumber         int             `json:"line_number"`
	Description        string          `json:"description"`
	ScheduledValue     decimal.Decimal `json:"scheduled_value"`
	BidCost            decimal.Decimal `json:"bid_cost"`
	ActualLaborCost    decimal.Decimal `json:"actual_labor_cost"`
	ActualMaterialCost decimal.Decimal `json:"actual_material_cost"`
	ActualCost         decimal.Decimal `json:"actual_cost"`
	Billed             decimal.Decimal `json:"billed"`
	PercentComplete    decimal.Decimal `json:"percent_complete"`
	BidMargin          decimal.Decimal `json:"bid_margin"`
	RealizedMargin     decimal.Decimal `json:"realized_margin"`
	Variance           decimal.Decimal `json:"variance"`
}

// lineItemBreakdown joins each schedule line of the dataset's project to its
// budget, actual costs and latest billed amount. The dataset must be scoped.
// Lines come back ordered by line number.
func lineItemBreakdown(d *dataset) []LineItemMetrics {
	budgets := groupBy(d.budgets, func(b LineBudget) LineID { return b.LineID })
	labor := groupBy(d.labor, func(e LaborEntry) LineID { return e.LineID })
	materials := groupBy(d.materials, func(m MaterialDelivery) LineID { return m.LineID })
	billed := groupBy(d.latestLineItems, func(it BillingLineItem) LineID { return it.LineID })

	out := make([]LineItemMetrics, 0, len(d.lines))
	for _, l := range d.lines {
		m := LineItemMetrics{
			LineID:             l.LineID,
			LineNumber:         l.LineNumber,
			Description:        l.Description,
			ScheduledValue:     l.ScheduledValue,
			BidCost:            BidCost(budgets[l.LineID]),
			ActualLaborCost:    ActualLaborCost(labor[l.LineID]),
			ActualMaterialCost: ActualMaterialCost(materials[l.LineID]),
			Billed:             lineBilled(billed[l.LineID]),
			PercentComplete:    PercentComplete(billed[l.LineID]),
		}
		m.ActualCost = m.ActualLaborCost.Add(m.ActualMaterialCost)
		m.BidMargin = BidMargin(m.ScheduledValue, m.BidCost)
		m.RealizedMargin = RealizedMargin(m.Billed, m.ActualCost)
		m.Variance = m.BidCost.Sub(m.ActualCost)
		out = append(out, m)
	}
	return out
}

func lineBilled(items []BillingLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.CumulativeBilled)
	}
	return total
}
