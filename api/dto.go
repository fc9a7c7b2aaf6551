/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Request bodies and the few response wrappers that are not engine types.
  Engine results (PortfolioSummary, RiskAlert, ...) are serialized as they
  are; their json tags are the API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - margin/: engine result types
*/
package api

import "github.com/warp/margin-engine/fixture"

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Current     bool   `json:"current"`
}

// LoadScenarioResponse reports what a load put into the store.
type LoadScenarioResponse struct {
	Status   string         `json:"status"`
	Scenario ScenarioDTO    `json:"scenario"`
	Counts   map[string]int `json:"counts"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toScenarioDTO(s fixture.Scenario, current string) ScenarioDTO {
	return ScenarioDTO{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Current:     s.ID == current,
	}
}

func recordCounts(ds *fixture.Dataset) map[string]int {
	r := ds.Records
	return map[string]int{
		"contracts":              len(r.Contracts),
		"schedule_lines":         len(r.ScheduleLines),
		"line_budgets":           len(r.LineBudgets),
		"labor_entries":          len(r.LaborEntries),
		"material_deliveries":    len(r.MaterialDeliveries),
		"change_orders":          len(r.ChangeOrders),
		"billing_applications":   len(r.BillingApplications),
		"billing_line_items":     len(r.BillingLineItems),
		"scope_creep_candidates": len(r.ScopeCreepCandidates),
	}
}
