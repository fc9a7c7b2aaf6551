package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/margin-engine/margin"
	"github.com/warp/margin-engine/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlstore.Store {
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleRecords() margin.Records {
	return margin.Records{
		Contracts: []margin.Contract{
			{ProjectID: "P-2", ProjectName: "Harbor", ContractValue: dec("500000"), CompletionDate: day(time.December, 1)},
			{ProjectID: "P-1", ProjectName: "Riverside", ContractValue: dec("1000000.50"), GCName: "Turner", CompletionDate: day(time.November, 1)},
		},
		ScheduleLines: []margin.ScheduleLine{
			{ProjectID: "P-1", LineID: "L2", LineNumber: 2, Description: "Rough-in", ScheduledValue: dec("600000")},
			{ProjectID: "P-1", LineID: "L1", LineNumber: 1, Description: "Mobilization", ScheduledValue: dec("400000")},
		},
		LineBudgets: []margin.LineBudget{
			{ProjectID: "P-1", LineID: "L1", LaborHours: dec("100"), LaborCost: dec("10000"), MaterialCost: dec("2000"), EquipmentCost: dec("0"), SubCost: dec("0")},
		},
		LaborEntries: []margin.LaborEntry{
			{LogID: "LOG-1", ProjectID: "P-1", LineID: "L1", Date: day(time.March, 3), StraightHours: dec("40"), OvertimeHours: dec("10"), HourlyRate: dec("50"), BurdenMultiplier: dec("1.3")},
			{LogID: "LOG-2", ProjectID: "P-2", LineID: "L1", Date: day(time.March, 4), StraightHours: dec("8"), OvertimeHours: dec("0"), HourlyRate: dec("40"), BurdenMultiplier: dec("1.5")},
		},
		MaterialDeliveries: []margin.MaterialDelivery{
			{DeliveryID: "D-1", ProjectID: "P-1", LineID: "L1", Date: day(time.March, 5), TotalCost: dec("1234.56")},
		},
		ChangeOrders: []margin.ChangeOrder{
			{ProjectID: "P-1", Number: "CO-1", DateSubmitted: day(time.April, 1), Reason: "Owner Request", Amount: dec("150000"), Status: margin.COUnderReview},
		},
		BillingApplications: []margin.BillingApplication{
			{ProjectID: "P-1", ApplicationNumber: 1, PeriodEnd: day(time.January, 31), CumulativeBilled: dec("100000")},
			{ProjectID: "P-1", ApplicationNumber: 3, PeriodEnd: day(time.March, 31), CumulativeBilled: dec("300000")},
			{ProjectID: "P-1", ApplicationNumber: 2, PeriodEnd: day(time.February, 28), CumulativeBilled: dec("200000")},
			{ProjectID: "P-2", ApplicationNumber: 1, PeriodEnd: day(time.January, 31), CumulativeBilled: dec("50000")},
		},
		BillingLineItems: []margin.BillingLineItem{
			{ProjectID: "P-1", LineID: "L1", ApplicationNumber: 1, PercentComplete: dec("10"), CumulativeBilled: dec("40000")},
			{ProjectID: "P-1", LineID: "L1", ApplicationNumber: 2, PercentComplete: dec("25"), CumulativeBilled: dec("100000")},
			{ProjectID: "P-1", LineID: "L2", ApplicationNumber: 2, PercentComplete: dec("5"), CumulativeBilled: dec("30000")},
		},
		ScopeCreepCandidates: []margin.ScopeCreepCandidate{
			{ScopeID: "SC-1", ProjectID: "P-1", LineID: "L1", Responsibility: margin.ResponsibilityOwner, COStatus: margin.ScopeNotSubmitted, EstimatedLaborHours: dec("100"), EstimatedMaterialCost: dec("1500")},
			{ScopeID: "SC-2", ProjectID: "P-2", LineID: "L1", Responsibility: "architect", COStatus: "disputed", EstimatedLaborHours: dec("1"), EstimatedMaterialCost: dec("0")},
		},
	}
}

func loadedStore(t *testing.T) *sqlstore.Store {
	store := newTestStore(t)
	require.NoError(t, store.Replace(context.Background(), sampleRecords()))
	return store
}

// =============================================================================
// READS
// =============================================================================

func TestView_RoundTripsRecords(t *testing.T) {
	store := loadedStore(t)
	ctx := context.Background()

	err := store.View(ctx, func(r margin.Reader) error {
		contracts, err := r.Contracts(ctx, margin.Filter{})
		require.NoError(t, err)
		require.Len(t, contracts, 2)
		assert.Equal(t, margin.ProjectID("P-1"), contracts[0].ProjectID)
		assert.True(t, dec("1000000.50").Equal(contracts[0].ContractValue))
		assert.Equal(t, "Turner", contracts[0].GCName)
		assert.True(t, day(time.November, 1).Equal(contracts[0].CompletionDate))

		lines, err := r.ScheduleLines(ctx, margin.ForProject("P-1"))
		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Equal(t, 1, lines[0].LineNumber)

		entries, err := r.LaborEntries(ctx, margin.ForProject("P-1"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, dec("3575").Equal(margin.LaborCost(entries[0])))

		deliveries, err := r.MaterialDeliveries(ctx, margin.Filter{})
		require.NoError(t, err)
		require.Len(t, deliveries, 1)
		assert.True(t, dec("1234.56").Equal(deliveries[0].TotalCost))

		candidates, err := r.ScopeCreepCandidates(ctx, margin.ForProject("P-2"))
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, margin.Responsibility("architect"), candidates[0].Responsibility)
		assert.Equal(t, margin.ScopeCOStatus("disputed"), candidates[0].COStatus)
		return nil
	})
	require.NoError(t, err)
}

func TestView_LatestBillingApplications(t *testing.T) {
	store := loadedStore(t)
	ctx := context.Background()

	err := store.View(ctx, func(r margin.Reader) error {
		all, err := r.BillingApplications(ctx, margin.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 4)

		latest, err := r.LatestBillingApplications(ctx, margin.Filter{})
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, 3, latest[0].ApplicationNumber)
		assert.True(t, dec("300000").Equal(latest[0].CumulativeBilled))
		assert.Equal(t, margin.ProjectID("P-2"), latest[1].ProjectID)

		scoped, err := r.LatestBillingApplications(ctx, margin.ForProject("P-2"))
		require.NoError(t, err)
		require.Len(t, scoped, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestView_LatestBillingLineItems(t *testing.T) {
	store := loadedStore(t)
	ctx := context.Background()

	err := store.View(ctx, func(r margin.Reader) error {
		items, err := r.LatestBillingLineItems(ctx, margin.ForProject("P-1"))
		require.NoError(t, err)
		require.Len(t, items, 2)
		for _, it := range items {
			assert.Equal(t, 2, it.ApplicationNumber)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestReplace_ClearsPreviousContents(t *testing.T) {
	store := loadedStore(t)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, margin.Records{
		Contracts: []margin.Contract{{ProjectID: "P-9", ProjectName: "Only", ContractValue: dec("1"), CompletionDate: day(time.May, 1)}},
	}))

	err := store.View(ctx, func(r margin.Reader) error {
		contracts, err := r.Contracts(ctx, margin.Filter{})
		require.NoError(t, err)
		require.Len(t, contracts, 1)
		assert.Equal(t, margin.ProjectID("P-9"), contracts[0].ProjectID)

		entries, err := r.LaborEntries(ctx, margin.Filter{})
		require.NoError(t, err)
		assert.Empty(t, entries)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))
	err = store.View(ctx, func(r margin.Reader) error {
		contracts, err := r.Contracts(ctx, margin.Filter{})
		require.NoError(t, err)
		assert.Empty(t, contracts)
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// AD HOC QUERIES
// =============================================================================

func TestQuery_ReturnsRowsAndCount(t *testing.T) {
	store := loadedStore(t)

	res, err := store.Query(context.Background(), "SELECT project_id, project_name FROM contracts ORDER BY project_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"project_id", "project_name"}, res.Columns)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, "P-1", res.Rows[0]["project_id"])
}

func TestQuery_WriteBlockedByQueryOnly(t *testing.T) {
	store := loadedStore(t)
	ctx := context.Background()

	// Validation lives in the engine; the store still refuses writes.
	_, err := store.Query(ctx, "DELETE FROM contracts")
	require.Error(t, err)

	res, err := store.Query(ctx, "SELECT COUNT(*) AS n FROM contracts")
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Rows[0]["n"])
}

// =============================================================================
// ENGINE OVER SQLITE
// =============================================================================

func TestEngine_PortfolioSummaryOverSQLite(t *testing.T) {
	eng := margin.NewEngine(loadedStore(t))

	s, err := eng.PortfolioSummary(context.Background())
	require.NoError(t, err)
	assert.True(t, dec("350000").Equal(s.TotalBilled), "latest app per project: 300,000 + 50,000")
	assert.Equal(t, 2, s.ProjectCount)
	assert.Equal(t, 1, s.PendingCOCount)
	assert.True(t, dec("10000").Equal(s.AtRiskAmount))
}

func TestEngine_RiskAlertsOverSQLite(t *testing.T) {
	eng := margin.NewEngine(loadedStore(t))

	alerts, err := eng.RiskAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, margin.AlertPendingCO, alerts[0].Type)
	assert.Equal(t, margin.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, margin.ProjectID("P-1"), alerts[0].ProjectID)
	assert.Equal(t, margin.AlertScopeCreep, alerts[1].Type)
	assert.Equal(t, margin.SeverityMedium, alerts[1].Severity)
	assert.True(t, dec("10000").Equal(alerts[1].Amount))
}

func TestEngine_QueryOverSQLite(t *testing.T) {
	eng := margin.NewEngine(loadedStore(t))

	res, err := eng.Query(context.Background(), "select co_number from change_orders")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowCount)

	// A semicolon inside a literal is part of a single read.
	res, err = eng.Query(context.Background(), "SELECT ';' AS sep, COUNT(*) AS n FROM sov WHERE description NOT LIKE '%;%';")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, ";", res.Rows[0]["sep"])

	_, err = eng.Query(context.Background(), "UPDATE contracts SET project_name = 'x'")
	assert.ErrorIs(t, err, margin.ErrInvalidQuery)
}

// =============================================================================
// DIALECT
// =============================================================================

func TestPingAndDialect(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, sqlstore.SQLite, s.Dialect())
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

func TestParseDialect(t *testing.T) {
	d, err := sqlstore.ParseDialect("SQLite")
	require.NoError(t, err)
	assert.Equal(t, sqlstore.SQLite, d)

	d, err = sqlstore.ParseDialect("postgresql")
	require.NoError(t, err)
	assert.Equal(t, sqlstore.Postgres, d)

	_, err = sqlstore.ParseDialect("mysql")
	assert.Error(t, err)
}
