package margin_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/margin-engine/margin"
)

// =============================================================================
// PORTFOLIO SUMMARY
// =============================================================================

func TestPortfolioSummary_BilledUsesLatestApplicationOnly(t *testing.T) {
	// GIVEN: P-1 has two cumulative applications, P-2 has one
	// WHEN: Computing the portfolio summary
	// THEN: Total billed is 250,000 + 50,000, not the sum of all applications

	eng := newTestEngine(margin.Records{
		Contracts: []margin.Contract{
			contract("P-1", "Riverside", "1000000"),
			contract("P-2", "Harbor", "500000"),
		},
		BillingApplications: []margin.BillingApplication{
			app("P-1", 1, "100000"),
			app("P-1", 2, "250000"),
			app("P-2", 1, "50000"),
		},
	})

	s, err := eng.PortfolioSummary(ctx)
	require.NoError(t, err)
	assertDec(t, "300000", s.TotalBilled)
	assertDec(t, "1500000", s.TotalContractValue)
	assert.Equal(t, 2, s.ProjectCount)
}

func TestPortfolioSummary_Totals(t *testing.T) {
	eng := newTestEngine(margin.Records{
		Contracts: []margin.Contract{contract("P-1", "Riverside", "1000000")},
		LineBudgets: []margin.LineBudget{
			budget("P-1", "L1", "1000", "300000", "200000", "50000", "250000"),
		},
		LaborEntries: []margin.LaborEntry{flatLabor("LOG-1", "P-1", "L1", "150000")},
		MaterialDeliveries: []margin.MaterialDelivery{
			delivery("D-1", "P-1", "L1", "50000"),
		},
		BillingApplications: []margin.BillingApplication{app("P-1", 1, "250000")},
		ChangeOrders: []margin.ChangeOrder{
			changeOrder("P-1", "CO-1", "20000", margin.COPending, day(2025, time.April, 1)),
			changeOrder("P-1", "CO-2", "5000", margin.COUnderReview, day(2025, time.April, 2)),
			changeOrder("P-1", "CO-3", "9000", margin.COApproved, day(2025, time.April, 3)),
		},
		ScopeCreepCandidates: []margin.ScopeCreepCandidate{
			candidate("SC-1", "P-1", margin.ResponsibilityMorrison, margin.ScopeNotSubmitted, "100", "500"),
			candidate("SC-2", "P-1", margin.ResponsibilityOwner, margin.ScopeSubmitted, "100", "500"),
		},
	})

	s, err := eng.PortfolioSummary(ctx)
	require.NoError(t, err)
	assertDec(t, "800000", s.TotalBidCost)
	assertDec(t, "200000", s.TotalActualCost)
	assertDec(t, "0.2", s.BidMargin)
	assertDec(t, "0.2", s.RealizedMargin)
	assertDec(t, "9000", s.AtRiskAmount)
	assert.Equal(t, 2, s.PendingCOCount)
	assertDec(t, "25000", s.PendingCOAmount)
}

func TestPortfolioSummary_EmptyStore(t *testing.T) {
	s, err := newTestEngine(margin.Records{}).PortfolioSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, s.ProjectCount)
	assert.True(t, s.BidMargin.IsZero())
	assert.True(t, s.RealizedMargin.IsZero())
}

// =============================================================================
// PROJECT SUMMARIES
// =============================================================================

func TestProjectSummaries_OrderedByProjectID(t *testing.T) {
	eng := newTestEngine(margin.Records{
		Contracts: []margin.Contract{
			contract("P-103", "Eastside", "300000"),
			contract("P-101", "Riverside", "100000"),
			contract("P-102", "Harbor", "200000"),
		},
	})

	list, err := eng.ProjectSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, margin.ProjectID("P-101"), list[0].ProjectID)
	assert.Equal(t, margin.ProjectID("P-102"), list[1].ProjectID)
	assert.Equal(t, margin.ProjectID("P-103"), list[2].ProjectID)
}

func TestProjectSummaries_ProjectWithoutRowsHasZeroMetrics(t *testing.T) {
	// GIVEN: A new project with a contract but nothing else
	// WHEN: Listing project summaries
	// THEN: It appears, every derived metric at zero

	eng := newTestEngine(margin.Records{
		Contracts: []margin.Contract{contract("P-9", "New Build", "0")},
	})

	list, err := eng.ProjectSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	s := list[0]
	assert.True(t, s.BidCost.IsZero())
	assert.True(t, s.Billed.IsZero())
	assert.True(t, s.ActualCost.IsZero())
	assert.True(t, s.BidMargin.IsZero())
	assert.True(t, s.RealizedMargin.IsZero())
	assert.True(t, s.MarginDelta.IsZero())
	assert.True(t, s.PercentComplete.IsZero())
	assert.Equal(t, 0, s.ScopeCreepCount)
}

func TestProjectSummaries_MetricsPerProject(t *testing.T) {
	eng := newTestEngine(margin.Records{
		Contracts: []margin.Contract{
			contract("P-1", "Riverside", "1000000"),
			contract("P-2", "Harbor", "400000"),
		},
		LineBudgets: []margin.LineBudget{
			budget("P-1", "L1", "0", "400000", "400000", "0", "0"),
			budget("P-2", "L1", "0", "100000", "0", "0", "0"),
		},
		LaborEntries: []margin.LaborEntry{
			flatLabor("LOG-1", "P-1", "L1", "120000"),
			flatLabor("LOG-2", "P-2", "L1", "999"),
		},
		BillingApplications: []margin.BillingApplication{
			app("P-1", 1, "50000"),
			app("P-1", 2, "200000"),
		},
		BillingLineItems: []margin.BillingLineItem{
			lineItem("P-1", "L1", 1, "10", "50000"),
			lineItem("P-1", "L1", 2, "30", "150000"),
			lineItem("P-1", "L2", 2, "50", "50000"),
		},
		ChangeOrders: []margin.ChangeOrder{
			changeOrder("P-1", "CO-1", "1000", margin.COApproved, day(2025, time.May, 1)),
			changeOrder("P-1", "CO-2", "2000", margin.ChangeOrderStatus("On Hold"), day(2025, time.May, 2)),
		},
		ScopeCreepCandidates: []margin.ScopeCreepCandidate{
			candidate("SC-1", "P-1", margin.ResponsibilityGC, margin.ScopeApproved, "1", "0"),
		},
	})

	list, err := eng.ProjectSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	p1 := list[0]
	assertDec(t, "800000", p1.BidCost)
	assertDec(t, "200000", p1.Billed)
	assertDec(t, "120000", p1.ActualCost)
	assertDec(t, "0.2", p1.BidMargin)
	assertDec(t, "0.4", p1.RealizedMargin)
	assertDec(t, "0.2", p1.MarginDelta)
	assertDec(t, "40", p1.PercentComplete)
	assert.Equal(t, 1, p1.ApprovedCOCount)
	assert.Equal(t, 0, p1.PendingCOCount)
	assert.Equal(t, 1, p1.ScopeCreepCount)

	p2 := list[1]
	assertDec(t, "999", p2.ActualCost)
	assert.True(t, p2.RealizedMargin.IsZero(), "no billing means zero realized margin")
	assert.True(t, p2.MarginDelta.IsZero())
}

// =============================================================================
// LINE-ITEM BREAKDOWN
// =============================================================================

func TestLineItemBreakdown_BidMarginUsesScheduledValue(t *testing.T) {
	eng := newTestEngine(margin.Records{
		Contracts:     []margin.Contract{contract("P-1", "Riverside", "2000000")},
		ScheduleLines: []margin.ScheduleLine{line("P-1", "L1", 1, "500000")},
		LineBudgets:   []margin.LineBudget{budget("P-1", "L1", "0", "60000", "40000", "0", "0")},
	})

	lines, err := eng.LineItemBreakdown(ctx, "P-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assertDec(t, "100000", lines[0].BidCost)
	assertDec(t, "0.8", lines[0].BidMargin)
	assertDec(t, "100000", lines[0].Variance)
}

func TestLineItemBreakdown_PerLineActualsAndBilling(t *testing.T) {
	eng := newTestEngine(margin.Records{
		Contracts: []margin.Contract{contract("P-1", "Riverside", "1000000")},
		ScheduleLines: []margin.ScheduleLine{
			line("P-1", "L2", 2, "300000"),
			line("P-1", "L1", 1, "200000"),
		},
		LineBudgets: []margin.LineBudget{
			budget("P-1", "L1", "0", "50000", "50000", "0", "0"),
			budget("P-1", "L2", "0", "100000", "50000", "0", "0"),
		},
		LaborEntries: []margin.LaborEntry{
			flatLabor("LOG-1", "P-1", "L1", "60000"),
			flatLabor("LOG-2", "P-1", "L2", "30000"),
		},
		MaterialDeliveries: []margin.MaterialDelivery{
			delivery("D-1", "P-1", "L1", "55000"),
		},
		BillingLineItems: []margin.BillingLineItem{
			lineItem("P-1", "L1", 1, "20", "40000"),
			lineItem("P-1", "L1", 2, "50", "100000"),
			lineItem("P-1", "L2", 2, "10", "30000"),
		},
	})

	lines, err := eng.LineItemBreakdown(ctx, "P-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)

	l1 := lines[0]
	assert.Equal(t, 1, l1.LineNumber)
	assertDec(t, "115000", l1.ActualCost)
	assertDec(t, "100000", l1.Billed)
	assertDec(t, "-0.15", l1.RealizedMargin)
	assertDec(t, "-15000", l1.Variance)

	l2 := lines[1]
	assert.Equal(t, 2, l2.LineNumber)
	assertDec(t, "30000", l2.ActualCost)
	assertDec(t, "30000", l2.Billed)
	assert.True(t, l2.RealizedMargin.IsZero())
}

func TestLineItemBreakdown_UnknownProjectIsEmpty(t *testing.T) {
	eng := newTestEngine(margin.Records{
		Contracts: []margin.Contract{contract("P-1", "Riverside", "1")},
	})

	lines, err := eng.LineItemBreakdown(ctx, "P-404")
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = eng.LineItemBreakdown(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

// =============================================================================
// PROJECT DETAILS
// =============================================================================

func TestProjectDetails_UnknownProjectIsNil(t *testing.T) {
	details, err := newTestEngine(margin.Records{}).ProjectDetails(ctx, "P-404")
	require.NoError(t, err)
	assert.Nil(t, details)
}

func TestProjectDetails_EmptyCollectionsAreEmptyLists(t *testing.T) {
	// GIVEN: A contract with no change orders, scope creep or billing
	// WHEN: Serializing its details
	// THEN: Every collection is an empty JSON array, never null

	eng := newTestEngine(margin.Records{
		Contracts: []margin.Contract{contract("P-1", "Riverside", "1000000")},
	})
	details, err := eng.ProjectDetails(ctx, "P-1")
	require.NoError(t, err)
	require.NotNil(t, details)

	raw, err := json.Marshal(details)
	require.NoError(t, err)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &body))
	for _, key := range []string{"change_orders", "scope_creep_items", "billing_line_items"} {
		assert.JSONEq(t, "[]", string(body[key]), key)
	}
	assert.Equal(t, "null", string(body["latest_billing"]))
}

func TestProjectDetails_LaborReworkAndOrdering(t *testing.T) {
	eng := newTestEngine(margin.Records{
		Contracts:     []margin.Contract{contract("P-1", "Riverside", "1000000")},
		ScheduleLines: []margin.ScheduleLine{line("P-1", "L1", 1, "400000"), line("P-1", "L2", 2, "600000")},
		LineBudgets: []margin.LineBudget{
			budget("P-1", "L1", "100", "8000", "3000", "700", "0"),
			budget("P-1", "L2", "50", "2000", "1000", "300", "9000"),
		},
		LaborEntries: []margin.LaborEntry{
			flatLabor("LOG-1", "P-1", "L1", "3000"),
			flatLabor("OVR-1", "P-1", "L1", "1000"),
		},
		ChangeOrders: []margin.ChangeOrder{
			changeOrder("P-1", "CO-1", "100", margin.COApproved, day(2025, time.January, 10)),
			changeOrder("P-1", "CO-2", "200", margin.COPending, day(2025, time.March, 10)),
		},
		BillingApplications: []margin.BillingApplication{app("P-1", 1, "10"), app("P-1", 2, "20")},
		BillingLineItems: []margin.BillingLineItem{
			lineItem("P-1", "L2", 2, "5", "10"),
			lineItem("P-1", "L1", 2, "5", "10"),
		},
	})

	d, err := eng.ProjectDetails(ctx, "P-1")
	require.NoError(t, err)
	require.NotNil(t, d)

	assertDec(t, "4000", d.Labor.ActualCost)
	assertDec(t, "10000", d.Labor.BudgetedCost)
	assertDec(t, "150", d.Labor.BudgetedHours)
	assertDec(t, "1000", d.Labor.ReworkCost)
	assertDec(t, "0.25", d.Labor.ReworkCostRate)
	assertDec(t, "4000", d.Materials.Budgeted)
	assertDec(t, "1000", d.EquipmentBudget)
	assertDec(t, "9000", d.SubBudget)

	require.NotNil(t, d.LatestBilling)
	assert.Equal(t, 2, d.LatestBilling.ApplicationNumber)

	require.Len(t, d.ChangeOrders, 2)
	assert.Equal(t, "CO-2", d.ChangeOrders[0].Number, "newest first")

	require.Len(t, d.BillingLineItems, 2)
	assert.Equal(t, margin.LineID("L1"), d.BillingLineItems[0].LineID)
}

// =============================================================================
// CHANGE-ORDER PIPELINE
// =============================================================================

func TestChangeOrderPipeline_StatusAndReasonRollup(t *testing.T) {
	unknownReason := changeOrder("P-1", "CO-4", "400", margin.CORejected, day(2025, time.April, 4))
	unknownReason.Reason = ""

	eng := newTestEngine(margin.Records{
		Contracts: []margin.Contract{contract("P-1", "Riverside", "1")},
		ChangeOrders: []margin.ChangeOrder{
			changeOrder("P-1", "CO-1", "100", margin.COApproved, day(2025, time.April, 1)),
			changeOrder("P-1", "CO-2", "200", margin.COPending, day(2025, time.April, 2)),
			changeOrder("P-1", "CO-3", "300", margin.COUnderReview, day(2025, time.April, 3)),
			unknownReason,
			changeOrder("P-1", "CO-5", "500", margin.ChangeOrderStatus("Void"), day(2025, time.April, 5)),
			changeOrder("P-X", "CO-6", "999", margin.COPending, day(2025, time.April, 6)),
		},
	})

	p, err := eng.ChangeOrderPipeline(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, 5, p.Summary.Total, "orders of uncontracted projects are dropped")
	assert.Equal(t, 1, p.Summary.ApprovedCount)
	assert.Equal(t, 2, p.Summary.PendingCount)
	assertDec(t, "500", p.Summary.PendingAmount)
	assert.Equal(t, 1, p.Summary.RejectedCount)

	require.Len(t, p.Orders, 5)
	assert.Equal(t, "CO-5", p.Orders[0].Number)
	assert.Equal(t, margin.ChangeOrderStatus("Void"), p.Orders[0].Status)

	require.Len(t, p.Reasons, 2)
	assert.Equal(t, margin.ReasonCategory("Owner Request"), p.Reasons[0].Reason)
	assert.Equal(t, 4, p.Reasons[0].Count)
	assert.Equal(t, margin.UnknownReason, p.Reasons[1].Reason)
}
