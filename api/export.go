package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/margin-engine/margin"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportPortfolio streams a workbook with the portfolio summary, project
// summaries and ranked alerts.
func (h *Handler) ExportPortfolio(w http.ResponseWriter, r *http.Request) {
	f, err := h.portfolioWorkbook(r.Context())
	if err != nil {
		h.fail(w, r, "ExportPortfolio", "Failed to build workbook", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=portfolio.xlsx")
	if err := f.Write(w); err != nil {
		h.Log.WithError(err).Error("failed to write workbook")
	}
}

func (h *Handler) portfolioWorkbook(ctx context.Context) (*excelize.File, error) {
	summary, err := h.Engine.PortfolioSummary(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := h.Engine.ProjectSummaries(ctx)
	if err != nil {
		return nil, err
	}
	alerts, err := h.Engine.RiskAlerts(ctx)
	if err != nil {
		return nil, err
	}
	return BuildWorkbook(summary, projects, alerts)
}

// =============================================================================
// WORKBOOK
// =============================================================================

const (
	summarySheet  = "Summary"
	projectsSheet = "Projects"
	alertsSheet   = "Alerts"
)

// BuildWorkbook lays out the three export sheets. Amounts are written as
// numbers, ratios as fractions.
func BuildWorkbook(summary margin.PortfolioSummary, projects []margin.ProjectSummary, alerts []margin.RiskAlert) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	for _, name := range []string{projectsSheet, alertsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	summaryRows := [][]any{
		{"Metric", "Value"},
		{"Projects", summary.ProjectCount},
		{"Total Contract Value", num(summary.TotalContractValue)},
		{"Total Bid Cost", num(summary.TotalBidCost)},
		{"Total Billed", num(summary.TotalBilled)},
		{"Actual Labor Cost", num(summary.ActualLaborCost)},
		{"Actual Material Cost", num(summary.ActualMaterialCost)},
		{"Total Actual Cost", num(summary.TotalActualCost)},
		{"Bid Margin", num(summary.BidMargin)},
		{"Realized Margin", num(summary.RealizedMargin)},
		{"At Risk Amount", num(summary.AtRiskAmount)},
		{"Pending Change Orders", summary.PendingCOCount},
		{"Pending Change Order Amount", num(summary.PendingCOAmount)},
	}
	if err := writeRows(f, summarySheet, summaryRows, bold); err != nil {
		return nil, err
	}

	projectRows := [][]any{{
		"Project ID", "Project", "Contract Value", "Bid Cost", "Billed", "Actual Cost",
		"Bid Margin", "Realized Margin", "Margin Delta", "% Complete",
		"Pending COs", "Pending CO Amount", "At Risk",
	}}
	for _, p := range projects {
		projectRows = append(projectRows, []any{
			string(p.ProjectID), p.ProjectName, num(p.ContractValue), num(p.BidCost), num(p.Billed),
			num(p.ActualCost), num(p.BidMargin), num(p.RealizedMargin), num(p.MarginDelta),
			num(p.PercentComplete), p.PendingCOCount, num(p.PendingCOAmount), num(p.AtRiskAmount),
		})
	}
	if err := writeRows(f, projectsSheet, projectRows, bold); err != nil {
		return nil, err
	}

	alertRows := [][]any{{"Rank", "Severity", "Type", "Project ID", "Project", "Amount", "Message"}}
	for i, a := range alerts {
		alertRows = append(alertRows, []any{
			i + 1, string(a.Severity), string(a.Type), string(a.ProjectID), a.ProjectName, num(a.Amount), a.Message,
		})
	}
	if err := writeRows(f, alertsSheet, alertRows, bold); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// writeRows writes rows from A1 down and bolds the first.
func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, headerStyle)
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
