/*
Package margin provides the margin analytics and risk detection engine for a
portfolio of fixed-price construction projects.

PURPOSE:
  Turns raw project records (contracts, schedule of values, budgets, labor,
  material deliveries, change orders, billing) into portfolio and project
  margin summaries, per-line cost breakdowns, and a ranked list of
  dollar-denominated risk alerts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Contract: one per project, contract value is the bid margin denominator
  - ScheduleLine / LineBudget: schedule-of-values lines and their bid budget
  - LaborEntry / MaterialDelivery: actual cost facts
  - ChangeOrder, BillingApplication, BillingLineItem, ScopeCreepCandidate
  - Records: a whole portfolio of facts, used to load a store

DESIGN PRINCIPLES:
  1. Immutability: records are facts at a point in project history. The
     engine never mutates them.
  2. Precision: every amount, hour count and ratio is a decimal.Decimal.
  3. Open enumerations: statuses and categories keep the source string
     verbatim, even when it is not one of the known values.

SEE ALSO:
  - formulas.go: Cost Formula Library
  - store.go: Record Store Adapter interface
  - engine.go: Public operations
*/
package margin

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProjectID string
type LineID string

// =============================================================================
// CONTRACT AND SCHEDULE OF VALUES
// =============================================================================

// Contract is the fixed-price agreement for one project.
type Contract struct {
	ProjectID      ProjectID       `yaml:"project_id" json:"project_id"`
	ProjectName    string          `yaml:"project_name" json:"project_name"`
	ContractValue  decimal.Decimal `yaml:"contract_value" json:"contract_value"`
	GCName         string          `yaml:"gc_name" json:"gc_name"`
	CompletionDate time.Time       `yaml:"completion_date" json:"completion_date"`
}

// ScheduleLine is one line of a project's schedule of values.
type ScheduleLine struct {
	ProjectID      ProjectID       `yaml:"project_id" json:"project_id"`
	LineID         LineID          `yaml:"line_id" json:"line_id"`
	LineNumber     int             `yaml:"line_number" json:"line_number"`
	Description    string          `yaml:"description" json:"description"`
	ScheduledValue decimal.Decimal `yaml:"scheduled_value" json:"scheduled_value"`
}

// LineBudget is the bid-time estimate for a schedule line.
// The four cost fields sum to the line's bid cost.
type LineBudget struct {
	ProjectID     ProjectID       `yaml:"project_id" json:"project_id"`
	LineID        LineID          `yaml:"line_id" json:"line_id"`
	LaborHours    decimal.Decimal `yaml:"labor_hours" json:"labor_hours"`
	LaborCost     decimal.Decimal `yaml:"labor_cost" json:"labor_cost"`
	MaterialCost  decimal.Decimal `yaml:"material_cost" json:"material_cost"`
	EquipmentCost decimal.Decimal `yaml:"equipment_cost" json:"equipment_cost"`
	SubCost       decimal.Decimal `yaml:"sub_cost" json:"sub_cost"`
}

// =============================================================================
// ACTUAL COST FACTS
// =============================================================================

// ReworkLogPrefix tags labor entries logged as overtime or rework.
// These correlate with scope creep.
const ReworkLogPrefix = "OVR-"

// LaborEntry is one logged labor record.
type LaborEntry struct {
	LogID            string          `yaml:"log_id" json:"log_id"`
	ProjectID        ProjectID       `yaml:"project_id" json:"project_id"`
	LineID           LineID          `yaml:"line_id" json:"line_id"`
	Date             time.Time       `yaml:"date" json:"date"`
	StraightHours    decimal.Decimal `yaml:"hours_st" json:"hours_st"`
	OvertimeHours    decimal.Decimal `yaml:"hours_ot" json:"hours_ot"`
	HourlyRate       decimal.Decimal `yaml:"hourly_rate" json:"hourly_rate"`
	BurdenMultiplier decimal.Decimal `yaml:"burden_multiplier" json:"burden_multiplier"`
}

// IsRework reports whether the entry carries the overtime/rework tag.
func (e LaborEntry) IsRework() bool {
	return strings.HasPrefix(e.LogID, ReworkLogPrefix)
}

// Hours is straight plus overtime hours, unweighted.
func (e LaborEntry) Hours() decimal.Decimal {
	return e.StraightHours.Add(e.OvertimeHours)
}

// MaterialDelivery is one received material delivery.
type MaterialDelivery struct {
	DeliveryID string          `yaml:"delivery_id" json:"delivery_id"`
	ProjectID  ProjectID       `yaml:"project_id" json:"project_id"`
	LineID     LineID          `yaml:"line_id" json:"line_id"`
	Date       time.Time       `yaml:"date" json:"date"`
	TotalCost  decimal.Decimal `yaml:"total_cost" json:"total_cost"`
}

// =============================================================================
// CHANGE ORDERS AND BILLING
// =============================================================================

type ChangeOrder struct {
	ProjectID     ProjectID         `yaml:"project_id" json:"project_id"`
	Number        string            `yaml:"co_number" json:"co_number"`
	DateSubmitted time.Time         `yaml:"date_submitted" json:"date_submitted"`
	Reason        ReasonCategory    `yaml:"reason_category" json:"reason_category"`
	Description   string            `yaml:"description" json:"description"`
	Amount        decimal.Decimal   `yaml:"amount" json:"amount"`
	Status        ChangeOrderStatus `yaml:"status" json:"status"`
}

// BillingApplication is one pay application. Billed amounts are cumulative,
// so only the highest application number per project is "current billed".
type BillingApplication struct {
	ProjectID         ProjectID       `yaml:"project_id" json:"project_id"`
	ApplicationNumber int             `yaml:"application_number" json:"application_number"`
	PeriodEnd         time.Time       `yaml:"period_end" json:"period_end"`
	CumulativeBilled  decimal.Decimal `yaml:"cumulative_billed" json:"cumulative_billed"`
	RetentionHeld     decimal.Decimal `yaml:"retention_held" json:"retention_held"`
	Status            string          `yaml:"status" json:"status"`
}

// BillingLineItem is the per-line detail of a pay application.
type BillingLineItem struct {
	ProjectID         ProjectID       `yaml:"project_id" json:"project_id"`
	LineID            LineID          `yaml:"line_id" json:"line_id"`
	ApplicationNumber int             `yaml:"application_number" json:"application_number"`
	PercentComplete   decimal.Decimal `yaml:"pct_complete" json:"pct_complete"`
	CumulativeBilled  decimal.Decimal `yaml:"total_billed" json:"total_billed"`
}

// =============================================================================
// SCOPE CREEP
// =============================================================================

// ScopeCreepCandidate is field-identified work that may be outside contract scope.
type ScopeCreepCandidate struct {
	ScopeID               string          `yaml:"scope_id" json:"scope_id"`
	ProjectID             ProjectID       `yaml:"project_id" json:"project_id"`
	LineID                LineID          `yaml:"line_id" json:"line_id"`
	Description           string          `yaml:"description" json:"description"`
	Responsibility        Responsibility  `yaml:"responsibility" json:"responsibility"`
	COStatus              ScopeCOStatus   `yaml:"co_status" json:"co_status"`
	EstimatedLaborHours   decimal.Decimal `yaml:"estimated_labor_hours" json:"estimated_labor_hours"`
	EstimatedMaterialCost decimal.Decimal `yaml:"estimated_material_cost" json:"estimated_material_cost"`
}

// Estimate is the nominal dollar value of the candidate.
func (c ScopeCreepCandidate) Estimate() decimal.Decimal {
	return ScopeCreepEstimate(c.EstimatedLaborHours, c.EstimatedMaterialCost)
}

// Recoverable reports whether the work is billable to someone else and has
// not been submitted as a change order yet.
func (c ScopeCreepCandidate) Recoverable() bool {
	return c.COStatus == ScopeNotSubmitted && c.Responsibility.Billable()
}

// =============================================================================
// RECORDS - a whole portfolio of facts
// =============================================================================

// Records bundles every entity collection. Stores load it as one unit.
type Records struct {
	Contracts            []Contract            `yaml:"contracts"`
	ScheduleLines        []ScheduleLine        `yaml:"schedule_lines"`
	LineBudgets          []LineBudget          `yaml:"line_budgets"`
	LaborEntries         []LaborEntry          `yaml:"labor_entries"`
	MaterialDeliveries   []MaterialDelivery    `yaml:"material_deliveries"`
	ChangeOrders         []ChangeOrder         `yaml:"change_orders"`
	BillingApplications  []BillingApplication  `yaml:"billing_applications"`
	BillingLineItems     []BillingLineItem     `yaml:"billing_line_items"`
	ScopeCreepCandidates []ScopeCreepCandidate `yaml:"scope_creep_candidates"`
}
