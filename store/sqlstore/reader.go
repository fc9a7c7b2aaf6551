package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/margin-engine/margin"
)

// =============================================================================
// READER (margin.Reader) - every read goes through the View transaction
// =============================================================================

type reader struct {
	tx      *sql.Tx
	dialect Dialect
}

// scoped appends the project filter on column col.
func scoped(q string, f margin.Filter, col string) (string, []any) {
	if !f.Scoped() {
		return q, nil
	}
	return q + " WHERE " + col + " = ?", []any{string(f.ProjectID)}
}

func collect[T any](ctx context.Context, r *reader, what, q string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := r.tx.QueryContext(ctx, r.dialect.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", what, err)
	}
	return out, nil
}

const (
	contractCols  = "project_id, project_name, original_contract_value, gc_name, substantial_completion_date"
	lineCols      = "project_id, sov_line_id, line_number, description, scheduled_value"
	budgetCols    = "project_id, sov_line_id, estimated_labor_hours, estimated_labor_cost, estimated_material_cost, estimated_equipment_cost, estimated_sub_cost"
	laborCols     = "log_id, project_id, sov_line_id, date, hours_st, hours_ot, hourly_rate, burden_multiplier"
	deliveryCols  = "delivery_id, project_id, sov_line_id, date, total_cost"
	coCols        = "project_id, co_number, date_submitted, reason_category, description, amount, status"
	billingCols   = "bh.project_id, bh.application_number, bh.period_end, bh.cumulative_billed, bh.retention_held, bh.status"
	lineItemCols  = "bli.project_id, bli.sov_line_id, bli.application_number, bli.pct_complete, bli.total_billed"
	candidateCols = "scope_id, project_id, sov_line_id, description, responsibility, co_status, estimated_labor_hours, estimated_material_cost"
)

func (r *reader) Contracts(ctx context.Context, f margin.Filter) ([]margin.Contract, error) {
	q, args := scoped("SELECT "+contractCols+" FROM contracts", f, "project_id")
	return collect(ctx, r, "contracts", q+" ORDER BY project_id", args, func(rows *sql.Rows) (margin.Contract, error) {
		var c margin.Contract
		err := rows.Scan(&c.ProjectID, &c.ProjectName, &c.ContractValue, &c.GCName, &c.CompletionDate)
		return c, err
	})
}

func (r *reader) ScheduleLines(ctx context.Context, f margin.Filter) ([]margin.ScheduleLine, error) {
	q, args := scoped("SELECT "+lineCols+" FROM sov", f, "project_id")
	return collect(ctx, r, "schedule lines", q+" ORDER BY project_id, line_number", args, func(rows *sql.Rows) (margin.ScheduleLine, error) {
		var l margin.ScheduleLine
		err := rows.Scan(&l.ProjectID, &l.LineID, &l.LineNumber, &l.Description, &l.ScheduledValue)
		return l, err
	})
}

func (r *reader) LineBudgets(ctx context.Context, f margin.Filter) ([]margin.LineBudget, error) {
	q, args := scoped("SELECT "+budgetCols+" FROM sov_budget", f, "project_id")
	return collect(ctx, r, "line budgets", q+" ORDER BY project_id, sov_line_id", args, func(rows *sql.Rows) (margin.LineBudget, error) {
		var b margin.LineBudget
		err := rows.Scan(&b.ProjectID, &b.LineID, &b.LaborHours, &b.LaborCost, &b.MaterialCost, &b.EquipmentCost, &b.SubCost)
		return b, err
	})
}

func (r *reader) LaborEntries(ctx context.Context, f margin.Filter) ([]margin.LaborEntry, error) {
	q, args := scoped("SELECT "+laborCols+" FROM labor_logs", f, "project_id")
	return collect(ctx, r, "labor entries", q+" ORDER BY project_id, log_id", args, func(rows *sql.Rows) (margin.LaborEntry, error) {
		var e margin.LaborEntry
		err := rows.Scan(&e.LogID, &e.ProjectID, &e.LineID, &e.Date,
			&e.StraightHours, &e.OvertimeHours, &e.HourlyRate, &e.BurdenMultiplier)
		return e, err
	})
}

func (r *reader) MaterialDeliveries(ctx context.Context, f margin.Filter) ([]margin.MaterialDelivery, error) {
	q, args := scoped("SELECT "+deliveryCols+" FROM material_deliveries", f, "project_id")
	return collect(ctx, r, "material deliveries", q+" ORDER BY project_id, delivery_id", args, func(rows *sql.Rows) (margin.MaterialDelivery, error) {
		var m margin.MaterialDelivery
		err := rows.Scan(&m.DeliveryID, &m.ProjectID, &m.LineID, &m.Date, &m.TotalCost)
		return m, err
	})
}

func (r *reader) ChangeOrders(ctx context.Context, f margin.Filter) ([]margin.ChangeOrder, error) {
	q, args := scoped("SELECT "+coCols+" FROM change_orders", f, "project_id")
	return collect(ctx, r, "change orders", q+" ORDER BY project_id, co_number", args, func(rows *sql.Rows) (margin.ChangeOrder, error) {
		var co margin.ChangeOrder
		err := rows.Scan(&co.ProjectID, &co.Number, &co.DateSubmitted, &co.Reason, &co.Description, &co.Amount, &co.Status)
		return co, err
	})
}

func scanBilling(rows *sql.Rows) (margin.BillingApplication, error) {
	var a margin.BillingApplication
	err := rows.Scan(&a.ProjectID, &a.ApplicationNumber, &a.PeriodEnd, &a.CumulativeBilled, &a.RetentionHeld, &a.Status)
	return a, err
}

func scanLineItem(rows *sql.Rows) (margin.BillingLineItem, error) {
	var it margin.BillingLineItem
	err := rows.Scan(&it.ProjectID, &it.LineID, &it.ApplicationNumber, &it.PercentComplete, &it.CumulativeBilled)
	return it, err
}

func (r *reader) BillingApplications(ctx context.Context, f margin.Filter) ([]margin.BillingApplication, error) {
	q, args := scoped("SELECT "+billingCols+" FROM billing_history bh", f, "bh.project_id")
	return collect(ctx, r, "billing applications", q+" ORDER BY bh.project_id, bh.application_number", args, scanBilling)
}

func (r *reader) BillingLineItems(ctx context.Context, f margin.Filter) ([]margin.BillingLineItem, error) {
	q, args := scoped("SELECT "+lineItemCols+" FROM billing_line_items bli", f, "bli.project_id")
	return collect(ctx, r, "billing line items", q+" ORDER BY bli.project_id, bli.application_number, bli.sov_line_id", args, scanLineItem)
}

func (r *reader) ScopeCreepCandidates(ctx context.Context, f margin.Filter) ([]margin.ScopeCreepCandidate, error) {
	q, args := scoped("SELECT "+candidateCols+" FROM scope_creep_candidates", f, "project_id")
	return collect(ctx, r, "scope creep candidates", q+" ORDER BY project_id, scope_id", args, func(rows *sql.Rows) (margin.ScopeCreepCandidate, error) {
		var c margin.ScopeCreepCandidate
		err := rows.Scan(&c.ScopeID, &c.ProjectID, &c.LineID, &c.Description, &c.Responsibility, &c.COStatus,
			&c.EstimatedLaborHours, &c.EstimatedMaterialCost)
		return c, err
	})
}

// =============================================================================
// LATEST APPLICATION JOINS
// =============================================================================

func (r *reader) LatestBillingApplications(ctx context.Context, f margin.Filter) ([]margin.BillingApplication, error) {
	q, args := scoped(`SELECT `+billingCols+`
		FROM billing_history bh
		INNER JOIN (
			SELECT project_id, MAX(application_number) AS max_app
			FROM billing_history
			GROUP BY project_id
		) latest ON bh.project_id = latest.project_id AND bh.application_number = latest.max_app`,
		f, "bh.project_id")
	return collect(ctx, r, "latest billing applications", q+" ORDER BY bh.project_id", args, scanBilling)
}

func (r *reader) LatestBillingLineItems(ctx context.Context, f margin.Filter) ([]margin.BillingLineItem, error) {
	q, args := scoped(`SELECT `+lineItemCols+`
		FROM billing_line_items bli
		INNER JOIN (
			SELECT project_id, MAX(application_number) AS max_app
			FROM billing_line_items
			GROUP BY project_id
		) latest ON bli.project_id = latest.project_id AND bli.application_number = latest.max_app`,
		f, "bli.project_id")
	return collect(ctx, r, "latest billing line items", q+" ORDER BY bli.project_id, bli.sov_line_id", args, scanLineItem)
}
