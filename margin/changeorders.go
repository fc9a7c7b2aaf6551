package margin

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ChangeOrderPipeline lists change orders with status and reason rollups.
type ChangeOrderPipeline struct {
	Orders  []ChangeOrderRow       `json:"change_orders"`
	Summary ChangeOrderTotals      `json:"summary"`
	Reasons []ChangeOrderReasonSum `json:"reasons"`
}

// ChangeOrderRow is a change order with its project name.
type ChangeOrderRow struct {
	ChangeOrder
	ProjectName string `json:"project_name"`
}

// ChangeOrderTotals counts orders by status. Total includes unrecognized
// statuses, which fall in none of the buckets.
type ChangeOrderTotals struct {
	Total          int             `json:"total"`
	ApprovedCount  int             `json:"approved_count"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	PendingCount   int             `json:"pending_count"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	RejectedCount  int             `json:"rejected_count"`
	RejectedAmount decimal.Decimal `json:"rejected_amount"`
}

// ChangeOrderReasonSum totals change orders of one reason category.
type ChangeOrderReasonSum struct {
	Reason      ReasonCategory  `json:"reason"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// changeOrderPipeline keeps orders of contracted projects only, ordered by
// project then newest first.
func changeOrderPipeline(d *dataset) ChangeOrderPipeline {
	names := contractNames(d.contracts)

	p := ChangeOrderPipeline{
		Orders: []ChangeOrderRow{},
		Summary: ChangeOrderTotals{
			ApprovedAmount: decimal.Zero,
			PendingAmount:  decimal.Zero,
			RejectedAmount: decimal.Zero,
		},
		Reasons: []ChangeOrderReasonSum{},
	}
	reasons := make(map[ReasonCategory]*ChangeOrderReasonSum)

	for _, co := range d.changeOrders {
		name, ok := names[co.ProjectID]
		if !ok {
			continue
		}
		p.Orders = append(p.Orders, ChangeOrderRow{ChangeOrder: co, ProjectName: name})

		s := &p.Summary
		s.Total++
		switch {
		case co.Status == COApproved:
			s.ApprovedCount++
			s.ApprovedAmount = s.ApprovedAmount.Add(co.Amount)
		case co.Status.IsPending():
			s.PendingCount++
			s.PendingAmount = s.PendingAmount.Add(co.Amount)
		case co.Status == CORejected:
			s.RejectedCount++
			s.RejectedAmount = s.RejectedAmount.Add(co.Amount)
		}

		label := co.Reason.Label()
		r, ok := reasons[label]
		if !ok {
			r = &ChangeOrderReasonSum{Reason: label, TotalAmount: decimal.Zero}
			reasons[label] = r
		}
		r.Count++
		r.TotalAmount = r.TotalAmount.Add(co.Amount)
	}

	sort.SliceStable(p.Orders, func(i, j int) bool {
		a, b := p.Orders[i], p.Orders[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		return a.DateSubmitted.After(b.DateSubmitted)
	})

	for _, r := range reasons {
		p.Reasons = append(p.Reasons, *r)
	}
	sort.Slice(p.Reasons, func(i, j int) bool { return p.Reasons[i].Reason < p.Reasons[j].Reason })
	return p
}
