package margin

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// table selects which collections an operation reads.
type table uint16

const (
	tableContracts table = 1 << iota
	tableScheduleLines
	tableLineBudgets
	tableLabor
	tableMaterials
	tableChangeOrders
	tableLatestBilling
	tableLatestLineItems
	tableScopeCreep

	tableAll = tableContracts | tableScheduleLines | tableLineBudgets | tableLabor |
		tableMaterials | tableChangeOrders | tableLatestBilling | tableLatestLineItems | tableScopeCreep
)

// dataset is everything one operation read from a single snapshot.
type dataset struct {
	filter          Filter
	contracts       []Contract
	lines           []ScheduleLine
	budgets         []LineBudget
	labor           []LaborEntry
	materials       []MaterialDelivery
	changeOrders    []ChangeOrder
	latestBilling   []BillingApplication
	latestLineItems []BillingLineItem
	candidates      []ScopeCreepCandidate
}

// unrecognized counts status values outside their documented sets. They are
// kept verbatim; the count only feeds logging.
func (d *dataset) unrecognized() map[string]int {
	out := make(map[string]int)
	for _, co := range d.changeOrders {
		if !co.Status.Known() {
			out["change_order_status"]++
		}
	}
	for _, c := range d.candidates {
		if !c.Responsibility.Known() {
			out["responsibility"]++
		}
		if !c.COStatus.Known() {
			out["scope_co_status"]++
		}
	}
	return out
}

func readDataset(ctx context.Context, r Reader, f Filter, tables table) (*dataset, error) {
	d := &dataset{filter: f}
	var err error

	if tables&tableContracts != 0 {
		if d.contracts, err = r.Contracts(ctx, f); err != nil {
			return nil, err
		}
		sort.SliceStable(d.contracts, func(i, j int) bool {
			return d.contracts[i].ProjectID < d.contracts[j].ProjectID
		})
	}
	if tables&tableScheduleLines != 0 {
		if d.lines, err = r.ScheduleLines(ctx, f); err != nil {
			return nil, err
		}
		sort.SliceStable(d.lines, func(i, j int) bool {
			a, b := d.lines[i], d.lines[j]
			if a.ProjectID != b.ProjectID {
				return a.ProjectID < b.ProjectID
			}
			return a.LineNumber < b.LineNumber
		})
	}
	if tables&tableLineBudgets != 0 {
		if d.budgets, err = r.LineBudgets(ctx, f); err != nil {
			return nil, err
		}
	}
	if tables&tableLabor != 0 {
		if d.labor, err = r.LaborEntries(ctx, f); err != nil {
			return nil, err
		}
	}
	if tables&tableMaterials != 0 {
		if d.materials, err = r.MaterialDeliveries(ctx, f); err != nil {
			return nil, err
		}
	}
	if tables&tableChangeOrders != 0 {
		if d.changeOrders, err = r.ChangeOrders(ctx, f); err != nil {
			return nil, err
		}
	}
	if tables&tableLatestBilling != 0 {
		if d.latestBilling, err = r.LatestBillingApplications(ctx, f); err != nil {
			return nil, err
		}
	}
	if tables&tableLatestLineItems != 0 {
		if d.latestLineItems, err = r.LatestBillingLineItems(ctx, f); err != nil {
			return nil, err
		}
	}
	if tables&tableScopeCreep != 0 {
		if d.candidates, err = r.ScopeCreepCandidates(ctx, f); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// =============================================================================
// GROUPING
// =============================================================================

// projectRows holds one project's slice of every collection.
type projectRows struct {
	lines           []ScheduleLine
	budgets         []LineBudget
	labor           []LaborEntry
	materials       []MaterialDelivery
	changeOrders    []ChangeOrder
	latestBilling   *BillingApplication
	latestLineItems []BillingLineItem
	candidates      []ScopeCreepCandidate
}

func (p *projectRows) billed() (billed BillingApplication, ok bool) {
	if p.latestBilling == nil {
		return BillingApplication{}, false
	}
	return *p.latestBilling, true
}

// actualCost is labor plus material.
func (p *projectRows) actualCost() (labor, material, total decimal.Decimal) {
	labor = ActualLaborCost(p.labor)
	material = ActualMaterialCost(p.materials)
	return labor, material, labor.Add(material)
}

// byProject partitions the dataset. Projects without rows get an empty entry
// on lookup through rowsFor.
func (d *dataset) byProject() map[ProjectID]*projectRows {
	out := make(map[ProjectID]*projectRows)
	get := func(id ProjectID) *projectRows {
		p, ok := out[id]
		if !ok {
			p = &projectRows{}
			out[id] = p
		}
		return p
	}
	for _, l := range d.lines {
		get(l.ProjectID).lines = append(get(l.ProjectID).lines, l)
	}
	for _, b := range d.budgets {
		get(b.ProjectID).budgets = append(get(b.ProjectID).budgets, b)
	}
	for _, e := range d.labor {
		get(e.ProjectID).labor = append(get(e.ProjectID).labor, e)
	}
	for _, m := range d.materials {
		get(m.ProjectID).materials = append(get(m.ProjectID).materials, m)
	}
	for _, co := range d.changeOrders {
		get(co.ProjectID).changeOrders = append(get(co.ProjectID).changeOrders, co)
	}
	for i := range d.latestBilling {
		app := d.latestBilling[i]
		get(app.ProjectID).latestBilling = &app
	}
	for _, it := range d.latestLineItems {
		get(it.ProjectID).latestLineItems = append(get(it.ProjectID).latestLineItems, it)
	}
	for _, c := range d.candidates {
		get(c.ProjectID).candidates = append(get(c.ProjectID).candidates, c)
	}
	return out
}

func rowsFor(groups map[ProjectID]*projectRows, id ProjectID) *projectRows {
	if p, ok := groups[id]; ok {
		return p
	}
	return &projectRows{}
}

func groupBy[T any, K comparable](rows []T, key func(T) K) map[K][]T {
	out := make(map[K][]T)
	for _, r := range rows {
		k := key(r)
		out[k] = append(out[k], r)
	}
	return out
}
