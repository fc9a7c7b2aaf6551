package margin

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ProjectDetails is the full drill-down of one project.
type ProjectDetails struct {
	Contract         Contract              `json:"contract"`
	LatestBilling    *BillingApplication   `json:"latest_billing"`
	Labor            LaborDetail           `json:"labor"`
	Materials        CostComparison        `json:"materials"`
	EquipmentBudget  decimal.Decimal       `json:"equipment_budget"`
	SubBudget        decimal.Decimal       `json:"sub_budget"`
	ChangeOrders     []ChangeOrder         `json:"change_orders"`
	ScopeCreepItems  []ScopeCreepItem      `json:"scope_creep_items"`
	BillingLineItems []BillingLineProgress `json:"billing_line_items"`
}

// LaborDetail compares actual labor against budget. Rework covers entries
// tagged with ReworkLogPrefix.
type LaborDetail struct {
	ActualCost     decimal.Decimal `json:"actual_cost"`
	BudgetedCost   decimal.Decimal `json:"budgeted_cost"`
	ActualHours    decimal.Decimal `json:"actual_hours"`
	BudgetedHours  decimal.Decimal `json:"budgeted_hours"`
	ReworkHours    decimal.Decimal `json:"rework_hours"`
	ReworkCost     decimal.Decimal `json:"rework_cost"`
	ReworkCostRate decimal.Decimal `json:"rework_cost_share"`
}

// CostComparison pairs an actual cost with its budget.
type CostComparison struct {
	Actual   decimal.Decimal `json:"actual"`
	Budgeted decimal.Decimal `json:"budgeted"`
}

// BillingLineProgress is a latest-application line item with its description.
type BillingLineProgress struct {
	LineID            LineID          `json:"line_id"`
	LineNumber        int             `json:"line_number"`
	Description       string          `json:"description"`
	ApplicationNumber int             `json:"application_number"`
	PercentComplete   decimal.Decimal `json:"percent_complete"`
	Billed            decimal.Decimal `json:"billed"`
}

// projectDetails builds the drill-down for a scoped dataset. It returns nil
// when the project has no contract.
func projectDetails(d *dataset) *ProjectDetails {
	if len(d.contracts) == 0 {
		return nil
	}
	p := rowsFor(d.byProject(), d.contracts[0].ProjectID)

	out := &ProjectDetails{
		Contract:         d.contracts[0],
		LatestBilling:    p.latestBilling,
		ChangeOrders:     append(make([]ChangeOrder, 0, len(p.changeOrders)), p.changeOrders...),
		ScopeCreepItems:  scopeCreepItems(d.contracts, p.candidates),
		BillingLineItems: billingProgress(p.lines, p.latestLineItems),
	}

	out.Labor = laborDetail(p.labor, p.budgets)
	out.Materials = CostComparison{
		Actual:   ActualMaterialCost(p.materials),
		Budgeted: decimal.Zero,
	}
	out.EquipmentBudget, out.SubBudget = decimal.Zero, decimal.Zero
	for _, b := range p.budgets {
		out.Materials.Budgeted = out.Materials.Budgeted.Add(b.MaterialCost)
		out.EquipmentBudget = out.EquipmentBudget.Add(b.EquipmentCost)
		out.SubBudget = out.SubBudget.Add(b.SubCost)
	}

	sort.SliceStable(out.ChangeOrders, func(i, j int) bool {
		return out.ChangeOrders[i].DateSubmitted.After(out.ChangeOrders[j].DateSubmitted)
	})
	return out
}

func laborDetail(entries []LaborEntry, budgets []LineBudget) LaborDetail {
	var rework []LaborEntry
	for _, e := range entries {
		if e.IsRework() {
			rework = append(rework, e)
		}
	}
	ld := LaborDetail{
		ActualCost:    ActualLaborCost(entries),
		BudgetedCost:  BudgetedLaborCost(budgets),
		ActualHours:   ActualLaborHours(entries),
		BudgetedHours: BudgetedLaborHours(budgets),
		ReworkHours:   ActualLaborHours(rework),
		ReworkCost:    ActualLaborCost(rework),
	}
	ld.ReworkCostRate = ratio(ld.ReworkCost, ld.ActualCost)
	return ld
}

// billingProgress joins latest line items to their schedule line, ordered by
// line number. Items without a schedule line are dropped.
func billingProgress(lines []ScheduleLine, items []BillingLineItem) []BillingLineProgress {
	byLine := make(map[LineID]ScheduleLine, len(lines))
	for _, l := range lines {
		byLine[l.LineID] = l
	}
	out := make([]BillingLineProgress, 0, len(items))
	for _, it := range items {
		l, ok := byLine[it.LineID]
		if !ok {
			continue
		}
		out = append(out, BillingLineProgress{
			LineID:            it.LineID,
			LineNumber:        l.LineNumber,
			Description:       l.Description,
			ApplicationNumber: it.ApplicationNumber,
			PercentComplete:   it.PercentComplete,
			Billed:            it.CumulativeBilled,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LineNumber < out[j].LineNumber })
	return out
}
