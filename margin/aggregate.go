/*
aggregate.go - Aggregation Layer

PURPOSE:
  Portfolio-wide and per-project rollups: contract value, bid cost, billed
  to date, actual cost, margins, at-risk amount and change-order counts.

BILLED TO DATE:
  Billing applications are cumulative. Only the latest application number of
  each project counts. Summing across application numbers double counts.

MISSING DATA:
  A project with no budget, labor, material or billing rows still appears in
  the project list, with every derived metric at 0.
*/
package margin

import "github.com/shopspring/decimal"

// PortfolioSummary is the portfolio-wide rollup.
type PortfolioSummary struct {
	TotalContractValue decimal.Decimal `json:"total_contract_value"`
	TotalBidCost       decimal.Decimal `json:"total_bid_cost"`
	TotalBilled        decimal.Decimal `json:"total_billed"`
	ActualLaborCost    decimal.Decimal `json:"actual_labor_cost"`
	ActualMaterialCost decimal.Decimal `json:"actual_material_cost"`
	TotalActualCost    decimal.Decimal `json:"total_actual_cost"`
	BidMargin          decimal.Decimal `json:"bid_margin"`
	RealizedMargin     decimal.Decimal `json:"realized_margin"`
	ProjectCount       int             `json:"project_count"`
	AtRiskAmount       decimal.Decimal `json:"at_risk_amount"`
	PendingCOCount     int             `json:"pending_co_count"`
	PendingCOAmount    decimal.Decimal `json:"pending_co_amount"`
}

// ProjectSummary is the rollup of one project.
type ProjectSummary struct {
	ProjectID          ProjectID       `json:"project_id"`
	ProjectName        string          `json:"project_name"`
	ContractValue      decimal.Decimal `json:"contract_value"`
	BidCost            decimal.Decimal `json:"bid_cost"`
	Billed             decimal.Decimal `json:"billed"`
	ActualLaborCost    decimal.Decimal `json:"actual_labor_cost"`
	ActualMaterialCost decimal.Decimal `json:"actual_material_cost"`
	ActualCost         decimal.Decimal `json:"actual_cost"`
	BidMargin          decimal.Decimal `json:"bid_margin"`
	RealizedMargin     decimal.Decimal `json:"realized_margin"`
	MarginDelta        decimal.Decimal `json:"margin_delta"`
	PercentComplete    decimal.Decimal `json:"percent_complete"`
	ApprovedCOCount    int             `json:"approved_co_count"`
	PendingCOCount     int             `json:"pending_co_count"`
	PendingCOAmount    decimal.Decimal `json:"pending_co_amount"`
	ScopeCreepCount    int             `json:"scope_creep_count"`
	AtRiskAmount       decimal.Decimal `json:"at_risk_amount"`
}

// =============================================================================
// PORTFOLIO
// =============================================================================

func portfolioSummary(d *dataset) PortfolioSummary {
	s := PortfolioSummary{
		TotalContractValue: decimal.Zero,
		TotalBidCost:       BidCost(d.budgets),
		TotalBilled:        TotalBilled(d.latestBilling),
		ActualLaborCost:    ActualLaborCost(d.labor),
		ActualMaterialCost: ActualMaterialCost(d.materials),
		ProjectCount:       len(d.contracts),
		PendingCOAmount:    decimal.Zero,
	}
	for _, c := range d.contracts {
		s.TotalContractValue = s.TotalContractValue.Add(c.ContractValue)
	}
	s.TotalActualCost = s.ActualLaborCost.Add(s.ActualMaterialCost)
	s.BidMargin = BidMargin(s.TotalContractValue, s.TotalBidCost)
	s.RealizedMargin = RealizedMargin(s.TotalBilled, s.TotalActualCost)
	s.AtRiskAmount = atRiskAmount(d.candidates)
	s.PendingCOCount, s.PendingCOAmount = pendingChangeOrders(d.changeOrders)
	return s
}

// atRiskAmount sums estimates of candidates not yet submitted as change orders.
func atRiskAmount(candidates []ScopeCreepCandidate) decimal.Decimal {
	total := decimal.Zero
	for _, c := range candidates {
		if c.COStatus == ScopeNotSubmitted {
			total = total.Add(c.Estimate())
		}
	}
	return total
}

func pendingChangeOrders(orders []ChangeOrder) (int, decimal.Decimal) {
	count, amount := 0, decimal.Zero
	for _, co := range orders {
		if co.Status.IsPending() {
			count++
			amount = amount.Add(co.Amount)
		}
	}
	return count, amount
}

// =============================================================================
// PROJECTS
// =============================================================================

// projectSummaries returns one summary per contract, ordered by project id.
func projectSummaries(d *dataset) []ProjectSummary {
	groups := d.byProject()
	out := make([]ProjectSummary, 0, len(d.contracts))
	for _, c := range d.contracts {
		out = append(out, projectSummary(c, rowsFor(groups, c.ProjectID)))
	}
	return out
}

func projectSummary(c Contract, p *projectRows) ProjectSummary {
	labor, material, actual := p.actualCost()
	billed := decimal.Zero
	if p.latestBilling != nil {
		billed = p.latestBilling.CumulativeBilled
	}

	s := ProjectSummary{
		ProjectID:          c.ProjectID,
		ProjectName:        c.ProjectName,
		ContractValue:      c.ContractValue,
		BidCost:            BidCost(p.budgets),
		Billed:             billed,
		ActualLaborCost:    labor,
		ActualMaterialCost: material,
		ActualCost:         actual,
		PercentComplete:    PercentComplete(p.latestLineItems),
		ScopeCreepCount:    len(p.candidates),
		AtRiskAmount:       atRiskAmount(p.candidates),
	}
	s.BidMargin = BidMargin(s.ContractValue, s.BidCost)
	s.RealizedMargin = RealizedMargin(s.Billed, s.ActualCost)
	s.MarginDelta = decimal.Zero
	if !s.ContractValue.IsZero() && !s.Billed.IsZero() {
		s.MarginDelta = s.RealizedMargin.Sub(s.BidMargin)
	}
	for _, co := range p.changeOrders {
		if co.Status == COApproved {
			s.ApprovedCOCount++
		}
	}
	s.PendingCOCount, s.PendingCOAmount = pendingChangeOrders(p.changeOrders)
	return s
}
