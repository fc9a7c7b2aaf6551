package margin_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/margin-engine/margin"
	"github.com/warp/margin-engine/margin/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestEngine(recs margin.Records) *margin.Engine {
	return margin.NewEngine(store.NewMemoryWith(recs))
}

func contract(id, name, value string) margin.Contract {
	return margin.Contract{
		ProjectID:      margin.ProjectID(id),
		ProjectName:    name,
		ContractValue:  dec(value),
		CompletionDate: day(2026, time.June, 30),
	}
}

func line(project, id string, number int, scheduled string) margin.ScheduleLine {
	return margin.ScheduleLine{
		ProjectID:      margin.ProjectID(project),
		LineID:         margin.LineID(id),
		LineNumber:     number,
		Description:    "Line " + id,
		ScheduledValue: dec(scheduled),
	}
}

func budget(project, lineID, hours, labor, material, equipment, sub string) margin.LineBudget {
	return margin.LineBudget{
		ProjectID:     margin.ProjectID(project),
		LineID:        margin.LineID(lineID),
		LaborHours:    dec(hours),
		LaborCost:     dec(labor),
		MaterialCost:  dec(material),
		EquipmentCost: dec(equipment),
		SubCost:       dec(sub),
	}
}

func labor(logID, project, lineID, st, ot, rate, burden string) margin.LaborEntry {
	return margin.LaborEntry{
		LogID:            logID,
		ProjectID:        margin.ProjectID(project),
		LineID:           margin.LineID(lineID),
		Date:             day(2025, time.March, 3),
		StraightHours:    dec(st),
		OvertimeHours:    dec(ot),
		HourlyRate:       dec(rate),
		BurdenMultiplier: dec(burden),
	}
}

// flatLabor is one entry whose cost equals hours exactly.
func flatLabor(logID, project, lineID, cost string) margin.LaborEntry {
	return labor(logID, project, lineID, cost, "0", "1", "1")
}

func delivery(id, project, lineID, cost string) margin.MaterialDelivery {
	return margin.MaterialDelivery{
		DeliveryID: id,
		ProjectID:  margin.ProjectID(project),
		LineID:     margin.LineID(lineID),
		Date:       day(2025, time.March, 5),
		TotalCost:  dec(cost),
	}
}

func app(project string, number int, billed string) margin.BillingApplication {
	return margin.BillingApplication{
		ProjectID:         margin.ProjectID(project),
		ApplicationNumber: number,
		PeriodEnd:         day(2025, time.Month(number), 28),
		CumulativeBilled:  dec(billed),
		Status:            "Paid",
	}
}

func lineItem(project, lineID string, number int, pct, billed string) margin.BillingLineItem {
	return margin.BillingLineItem{
		ProjectID:         margin.ProjectID(project),
		LineID:            margin.LineID(lineID),
		ApplicationNumber: number,
		PercentComplete:   dec(pct),
		CumulativeBilled:  dec(billed),
	}
}

func changeOrder(project, number, amount string, status margin.ChangeOrderStatus, submitted time.Time) margin.ChangeOrder {
	return margin.ChangeOrder{
		ProjectID:     margin.ProjectID(project),
		Number:        number,
		DateSubmitted: submitted,
		Reason:        "Owner Request",
		Description:   "CO " + number,
		Amount:        dec(amount),
		Status:        status,
	}
}

func candidate(id, project string, resp margin.Responsibility, status margin.ScopeCOStatus, hours, material string) margin.ScopeCreepCandidate {
	return margin.ScopeCreepCandidate{
		ScopeID:               id,
		ProjectID:             margin.ProjectID(project),
		LineID:                "L1",
		Description:           "Scope " + id,
		Responsibility:        resp,
		COStatus:              status,
		EstimatedLaborHours:   dec(hours),
		EstimatedMaterialCost: dec(material),
	}
}

var ctx = context.Background()
