/*
detect.go - Risk Detection Engine

PURPOSE:
  Four independent detectors, each producing zero or more dollar-denominated
  alerts for the projects in scope:

    scope creep     unsubmitted owner/gc work    high above 50,000
    labor overrun   actual > budget * 1.1        high above 20% over
    billing lag     (cost - billed)/billed > 0.1 high above 0.2
    pending COs     pending sum > 100,000        always high

  Each detector is one aggregation parameterized by the dataset's Filter.
  Detectors never rank their own output; see rank.go.

GUARDS:
  Every ratio checks its denominator first. A project with zero budget or
  zero billed is never flagged, and a project with no matching rows never
  appears in the corresponding result.

  The thresholds are hard limits, not configuration.
*/
package margin

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	laborTolerance       = decimal.RequireFromString("1.1")
	laborHighRatio       = decimal.RequireFromString("0.2")
	billingLagTrigger    = decimal.RequireFromString("0.1")
	billingLagHighRatio  = decimal.RequireFromString("0.2")
	scopeCreepHighAmount = decimal.NewFromInt(50000)
	pendingCOLimit       = decimal.NewFromInt(100000)
)

// RiskAlert is one actionable risk. Alerts are computed per call, never stored.
type RiskAlert struct {
	Type        AlertType       `json:"type"`
	Severity    Severity        `json:"severity"`
	ProjectID   ProjectID       `json:"project_id"`
	ProjectName string          `json:"project_name"`
	Message     string          `json:"message"`
	Amount      decimal.Decimal `json:"amount"`
}

// =============================================================================
// SHARED PREDICATES
// =============================================================================

// laborOverrun compares actual to budgeted labor cost. ratio is 0 when the
// budget is 0, and flagged requires a positive budget.
func laborOverrun(actual, budgeted decimal.Decimal) (overrunRatio decimal.Decimal, flagged bool) {
	if !budgeted.IsPositive() {
		return decimal.Zero, false
	}
	overrunRatio = actual.Sub(budgeted).Div(budgeted)
	return overrunRatio, actual.GreaterThan(budgeted.Mul(laborTolerance))
}

// billingLag compares actual cost to billed. flagged requires billed > 0.
func billingLag(actual, billed decimal.Decimal) (lagRatio decimal.Decimal, flagged bool) {
	if !billed.IsPositive() {
		return decimal.Zero, false
	}
	lagRatio = actual.Sub(billed).Div(billed)
	return lagRatio, lagRatio.GreaterThan(billingLagTrigger)
}

func severityAbove(value, limit decimal.Decimal) Severity {
	if value.GreaterThan(limit) {
		return SeverityHigh
	}
	return SeverityMedium
}

// Absorbed is true for work the company is eating.
func (c ScopeCreepCandidate) Absorbed() bool {
	return c.COStatus == ScopeAbsorbed || c.Responsibility == ResponsibilitySelfAbsorbed
}

// =============================================================================
// SCOPE CREEP
// =============================================================================

// ScopeCreepItem is a candidate with its project name and dollar estimate.
type ScopeCreepItem struct {
	ScopeCreepCandidate
	ProjectName        string          `json:"project_name"`
	EstimatedTotalCost decimal.Decimal `json:"estimated_total_cost"`
}

// ScopeCreepSummary counts and totals items by outcome. An item can be both
// absorbed and pending, so the buckets may overlap.
type ScopeCreepSummary struct {
	TotalItems       int             `json:"total_items"`
	RecoverableCount int             `json:"recoverable_count"`
	RecoverableTotal decimal.Decimal `json:"recoverable_total"`
	AbsorbedCount    int             `json:"absorbed_count"`
	AbsorbedTotal    decimal.Decimal `json:"absorbed_total"`
	PendingCount     int             `json:"pending_count"`
	PendingTotal     decimal.Decimal `json:"pending_total"`
}

// ScopeCreepReport is the result of DetectScopeCreep.
type ScopeCreepReport struct {
	Items   []ScopeCreepItem  `json:"items"`
	Summary ScopeCreepSummary `json:"summary"`
	Alerts  []RiskAlert       `json:"alerts"`
}

// scopeCreepItems keeps candidates of contracted projects, ordered by
// project, change-order status, then responsibility.
func scopeCreepItems(contracts []Contract, candidates []ScopeCreepCandidate) []ScopeCreepItem {
	names := contractNames(contracts)
	out := make([]ScopeCreepItem, 0, len(candidates))
	for _, c := range candidates {
		name, ok := names[c.ProjectID]
		if !ok {
			continue
		}
		out = append(out, ScopeCreepItem{
			ScopeCreepCandidate: c,
			ProjectName:         name,
			EstimatedTotalCost:  c.Estimate(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.COStatus != b.COStatus {
			return a.COStatus < b.COStatus
		}
		return a.Responsibility < b.Responsibility
	})
	return out
}

func scopeCreepAlerts(d *dataset) []RiskAlert {
	groups := d.byProject()
	var alerts []RiskAlert
	for _, c := range d.contracts {
		count, amount := 0, decimal.Zero
		for _, cand := range rowsFor(groups, c.ProjectID).candidates {
			if cand.Recoverable() {
				count++
				amount = amount.Add(cand.Estimate())
			}
		}
		if count == 0 {
			continue
		}
		alerts = append(alerts, RiskAlert{
			Type:        AlertScopeCreep,
			Severity:    severityAbove(amount, scopeCreepHighAmount),
			ProjectID:   c.ProjectID,
			ProjectName: c.ProjectName,
			Message:     fmt.Sprintf("%d unsubmitted scope creep item(s) totaling %s", count, formatUSD(amount)),
			Amount:      amount,
		})
	}
	return alerts
}

func scopeCreepReport(d *dataset) ScopeCreepReport {
	r := ScopeCreepReport{
		Items: scopeCreepItems(d.contracts, d.candidates),
		Summary: ScopeCreepSummary{
			RecoverableTotal: decimal.Zero,
			AbsorbedTotal:    decimal.Zero,
			PendingTotal:     decimal.Zero,
		},
		Alerts: scopeCreepAlerts(d),
	}
	s := &r.Summary
	s.TotalItems = len(r.Items)
	for _, it := range r.Items {
		if it.Recoverable() {
			s.RecoverableCount++
			s.RecoverableTotal = s.RecoverableTotal.Add(it.EstimatedTotalCost)
		}
		if it.Absorbed() {
			s.AbsorbedCount++
			s.AbsorbedTotal = s.AbsorbedTotal.Add(it.EstimatedTotalCost)
		}
		if it.COStatus.IsPending() {
			s.PendingCount++
			s.PendingTotal = s.PendingTotal.Add(it.EstimatedTotalCost)
		}
	}
	return r
}

// =============================================================================
// LABOR OVERRUN
// =============================================================================

// LaborLine compares budgeted and actual labor on one schedule line.
type LaborLine struct {
	ProjectID         ProjectID       `json:"project_id"`
	ProjectName       string          `json:"project_name"`
	LineID            LineID          `json:"line_id"`
	LineNumber        int             `json:"line_number"`
	Description       string          `json:"description"`
	BudgetedHours     decimal.Decimal `json:"budgeted_hours"`
	ActualHours       decimal.Decimal `json:"actual_hours"`
	HoursVariance     decimal.Decimal `json:"hours_variance"`
	HoursOverrunRatio decimal.Decimal `json:"hours_overrun_ratio"`
	BudgetedCost      decimal.Decimal `json:"budgeted_cost"`
	ActualCost        decimal.Decimal `json:"actual_cost"`
	CostVariance      decimal.Decimal `json:"cost_variance"`
	CostOverrunRatio  decimal.Decimal `json:"cost_overrun_ratio"`
	ReworkHours       decimal.Decimal `json:"rework_hours"`
	ReworkCost        decimal.Decimal `json:"rework_cost"`
	Flagged           bool            `json:"flagged"`
}

// LaborOverrunReport is the result of DetectLaborOverruns.
type LaborOverrunReport struct {
	Lines              []LaborLine     `json:"lines"`
	FlaggedLines       []LaborLine     `json:"flagged_lines"`
	FlaggedCount       int             `json:"flagged_count"`
	TotalOverrunAmount decimal.Decimal `json:"total_overrun_amount"`
	Alerts             []RiskAlert     `json:"alerts"`
}

func laborOverrunAlerts(d *dataset) []RiskAlert {
	groups := d.byProject()
	var alerts []RiskAlert
	for _, c := range d.contracts {
		p := rowsFor(groups, c.ProjectID)
		actual := ActualLaborCost(p.labor)
		budgeted := BudgetedLaborCost(p.budgets)
		overrunRatio, flagged := laborOverrun(actual, budgeted)
		if !flagged {
			continue
		}
		alerts = append(alerts, RiskAlert{
			Type:        AlertLaborOverrun,
			Severity:    severityAbove(overrunRatio, laborHighRatio),
			ProjectID:   c.ProjectID,
			ProjectName: c.ProjectName,
			Message: fmt.Sprintf("Labor cost %s exceeds budget %s by %s",
				formatUSD(actual), formatUSD(budgeted), formatPercent(overrunRatio)),
			Amount: actual.Sub(budgeted),
		})
	}
	return alerts
}

type lineKey struct {
	project ProjectID
	line    LineID
}

// laborOverrunReport walks budget rows that have both a schedule line and a
// contract, ordered by project then line number.
func laborOverrunReport(d *dataset) LaborOverrunReport {
	names := contractNames(d.contracts)
	lines := make(map[lineKey]ScheduleLine, len(d.lines))
	for _, l := range d.lines {
		lines[lineKey{l.ProjectID, l.LineID}] = l
	}
	labor := groupBy(d.labor, func(e LaborEntry) lineKey { return lineKey{e.ProjectID, e.LineID} })

	r := LaborOverrunReport{
		Lines:              []LaborLine{},
		FlaggedLines:       []LaborLine{},
		TotalOverrunAmount: decimal.Zero,
		Alerts:             laborOverrunAlerts(d),
	}
	for _, b := range d.budgets {
		key := lineKey{b.ProjectID, b.LineID}
		sl, ok := lines[key]
		if !ok {
			continue
		}
		name, ok := names[b.ProjectID]
		if !ok {
			continue
		}
		entries := labor[key]
		var rework []LaborEntry
		for _, e := range entries {
			if e.IsRework() {
				rework = append(rework, e)
			}
		}

		ll := LaborLine{
			ProjectID:     b.ProjectID,
			ProjectName:   name,
			LineID:        b.LineID,
			LineNumber:    sl.LineNumber,
			Description:   sl.Description,
			BudgetedHours: b.LaborHours,
			ActualHours:   ActualLaborHours(entries),
			BudgetedCost:  b.LaborCost,
			ActualCost:    ActualLaborCost(entries),
			ReworkHours:   ActualLaborHours(rework),
			ReworkCost:    ActualLaborCost(rework),
		}
		ll.HoursVariance = ll.ActualHours.Sub(ll.BudgetedHours)
		ll.HoursOverrunRatio = ratio(ll.HoursVariance, ll.BudgetedHours)
		ll.CostVariance = ll.ActualCost.Sub(ll.BudgetedCost)
		ll.CostOverrunRatio, ll.Flagged = laborOverrun(ll.ActualCost, ll.BudgetedCost)
		r.Lines = append(r.Lines, ll)
	}

	sort.SliceStable(r.Lines, func(i, j int) bool {
		a, b := r.Lines[i], r.Lines[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		return a.LineNumber < b.LineNumber
	})
	for _, ll := range r.Lines {
		if ll.Flagged {
			r.FlaggedLines = append(r.FlaggedLines, ll)
			r.TotalOverrunAmount = r.TotalOverrunAmount.Add(ll.CostVariance)
		}
	}
	r.FlaggedCount = len(r.FlaggedLines)
	return r
}

// =============================================================================
// BILLING LAG
// =============================================================================

// ProjectLag compares one project's actual cost to its latest billed amount.
// LagRatio is 0 when nothing has been billed.
type ProjectLag struct {
	ProjectID   ProjectID       `json:"project_id"`
	ProjectName string          `json:"project_name"`
	ActualCost  decimal.Decimal `json:"actual_cost"`
	Billed      decimal.Decimal `json:"billed"`
	Lag         decimal.Decimal `json:"lag"`
	LagRatio    decimal.Decimal `json:"lag_ratio"`
	Flagged     bool            `json:"flagged"`
}

// LineLag compares one schedule line's actual cost to its latest line billing.
type LineLag struct {
	LineID             LineID          `json:"line_id"`
	LineNumber         int             `json:"line_number"`
	Description        string          `json:"description"`
	ActualLaborCost    decimal.Decimal `json:"actual_labor_cost"`
	ActualMaterialCost decimal.Decimal `json:"actual_material_cost"`
	ActualCost         decimal.Decimal `json:"actual_cost"`
	Billed             decimal.Decimal `json:"billed"`
	Lag                decimal.Decimal `json:"lag"`
	LagRatio           decimal.Decimal `json:"lag_ratio"`
}

// BillingLagReport has project rows always and line rows when scoped to one
// project. TotalLag sums line lags when scoped, project lags otherwise.
type BillingLagReport struct {
	Projects []ProjectLag    `json:"projects"`
	Lines    []LineLag       `json:"lines,omitempty"`
	TotalLag decimal.Decimal `json:"total_lag"`
	Alerts   []RiskAlert     `json:"alerts"`
}

func projectLags(d *dataset) []ProjectLag {
	groups := d.byProject()
	out := make([]ProjectLag, 0, len(d.contracts))
	for _, c := range d.contracts {
		p := rowsFor(groups, c.ProjectID)
		_, _, actual := p.actualCost()
		billed := decimal.Zero
		if p.latestBilling != nil {
			billed = p.latestBilling.CumulativeBilled
		}
		pl := ProjectLag{
			ProjectID:   c.ProjectID,
			ProjectName: c.ProjectName,
			ActualCost:  actual,
			Billed:      billed,
			Lag:         actual.Sub(billed),
		}
		pl.LagRatio, pl.Flagged = billingLag(actual, billed)
		out = append(out, pl)
	}
	return out
}

func billingLagAlerts(d *dataset) []RiskAlert {
	var alerts []RiskAlert
	for _, pl := range projectLags(d) {
		if !pl.Flagged {
			continue
		}
		alerts = append(alerts, RiskAlert{
			Type:        AlertBillingLag,
			Severity:    severityAbove(pl.LagRatio, billingLagHighRatio),
			ProjectID:   pl.ProjectID,
			ProjectName: pl.ProjectName,
			Message: fmt.Sprintf("Costs exceed billing by %s (actual %s vs billed %s)",
				formatPercent(pl.LagRatio), formatUSD(pl.ActualCost), formatUSD(pl.Billed)),
			Amount: pl.Lag,
		})
	}
	return alerts
}

func billingLagReport(d *dataset) BillingLagReport {
	r := BillingLagReport{
		Projects: projectLags(d),
		TotalLag: decimal.Zero,
		Alerts:   billingLagAlerts(d),
	}
	if !d.filter.Scoped() {
		for _, pl := range r.Projects {
			r.TotalLag = r.TotalLag.Add(pl.Lag)
		}
		return r
	}

	labor := groupBy(d.labor, func(e LaborEntry) LineID { return e.LineID })
	materials := groupBy(d.materials, func(m MaterialDelivery) LineID { return m.LineID })
	billed := groupBy(d.latestLineItems, func(it BillingLineItem) LineID { return it.LineID })

	r.Lines = []LineLag{}
	for _, l := range d.lines {
		ll := LineLag{
			LineID:             l.LineID,
			LineNumber:         l.LineNumber,
			Description:        l.Description,
			ActualLaborCost:    ActualLaborCost(labor[l.LineID]),
			ActualMaterialCost: ActualMaterialCost(materials[l.LineID]),
			Billed:             lineBilled(billed[l.LineID]),
		}
		ll.ActualCost = ll.ActualLaborCost.Add(ll.ActualMaterialCost)
		ll.Lag = ll.ActualCost.Sub(ll.Billed)
		ll.LagRatio = ratio(ll.Lag, ll.Billed)
		r.Lines = append(r.Lines, ll)
		r.TotalLag = r.TotalLag.Add(ll.Lag)
	}
	return r
}

// =============================================================================
// PENDING CHANGE-ORDER EXPOSURE
// =============================================================================

func changeOrderExposureAlerts(d *dataset) []RiskAlert {
	groups := d.byProject()
	var alerts []RiskAlert
	for _, c := range d.contracts {
		count, amount := pendingChangeOrders(rowsFor(groups, c.ProjectID).changeOrders)
		if count == 0 || !amount.GreaterThan(pendingCOLimit) {
			continue
		}
		alerts = append(alerts, RiskAlert{
			Type:        AlertPendingCO,
			Severity:    SeverityHigh,
			ProjectID:   c.ProjectID,
			ProjectName: c.ProjectName,
			Message:     fmt.Sprintf("%d pending change order(s) totaling %s", count, formatUSD(amount)),
			Amount:      amount,
		})
	}
	return alerts
}

func contractNames(contracts []Contract) map[ProjectID]string {
	out := make(map[ProjectID]string, len(contracts))
	for _, c := range contracts {
		out[c.ProjectID] = c.ProjectName
	}
	return out
}
