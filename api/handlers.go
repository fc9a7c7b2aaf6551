/*
handlers.go - HTTP API handlers for the margin engine

PURPOSE:
  Exposes portfolio rollups, project drill-downs, risk detectors and the ad
  hoc query capability over REST. Handlers parse the request, call one
  Engine operation and serialize its result. No business logic lives here.

ENDPOINTS:
  Portfolio:
    GET    /api/portfolio                     Portfolio summary
    GET    /api/projects                      Project summaries
    GET    /api/projects/{id}                 Project drill-down
    GET    /api/projects/{id}/line-items      Schedule-of-values breakdown

  Risks:
    GET    /api/risks                         Ranked alerts, all detectors
    GET    /api/risks/scope-creep             ?project= optional
    GET    /api/risks/labor-overruns          ?project= optional
    GET    /api/risks/billing-lag             ?project= optional
    GET    /api/risks/change-orders           ?project= optional
    GET    /api/risks/scan                    Last periodic scan (scheduler.go)

  Change orders:
    GET    /api/change-orders                 Pipeline, ?project= optional

  Query:
    POST   /api/query                         {"query": "SELECT ..."}

  Export:
    GET    /api/export/portfolio.xlsx         Workbook (export.go)

  Scenarios:
    GET    /api/scenarios                     List demo datasets
    POST   /api/scenarios/load                Load a demo dataset

AMOUNTS:
  Amounts are decimal.Decimal. The server binary sets
  decimal.MarshalJSONWithoutQuotes at startup so they encode as JSON numbers;
  this package does not change that global.

ERROR HANDLING:
  Errors are returned as JSON {"error": ..., "details": ...}:
  - 400: malformed body, rejected query
  - 404: unknown project or scenario, no completed scan
  - 500: store failures
  Server errors are logged through config.LogError.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/margin-engine/config"
	"github.com/warp/margin-engine/margin"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *margin.Engine
	// Writer receives demo datasets. Nil disables scenario loading.
	Writer margin.Writer
	Log    logrus.FieldLogger
	// Scanner reports the last periodic scan. Nil when not running.
	Scanner *RiskScanner

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. A nil logger discards output.
func NewHandler(engine *margin.Engine, writer margin.Writer, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Handler{
		Engine: engine,
		Writer: writer,
		Log:    logger.WithField("module", "api"),
	}
}

// =============================================================================
// PORTFOLIO HANDLERS
// =============================================================================

// GetPortfolio returns the portfolio summary.
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Engine.PortfolioSummary(r.Context())
	if err != nil {
		h.fail(w, r, "GetPortfolio", "Failed to compute portfolio summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ListProjects returns one summary per contracted project.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Engine.ProjectSummaries(r.Context())
	if err != nil {
		h.fail(w, r, "ListProjects", "Failed to list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetProject returns the drill-down of one project.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := margin.ProjectID(chi.URLParam(r, "id"))

	details, err := h.Engine.ProjectDetails(r.Context(), id)
	if err != nil {
		h.fail(w, r, "GetProject", "Failed to load project", err)
		return
	}
	if details == nil {
		writeError(w, http.StatusNotFound, "Project not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// GetLineItems returns the schedule-of-values breakdown. Unknown projects
// yield an empty list.
func (h *Handler) GetLineItems(w http.ResponseWriter, r *http.Request) {
	id := margin.ProjectID(chi.URLParam(r, "id"))

	lines, err := h.Engine.LineItemBreakdown(r.Context(), id)
	if err != nil {
		h.fail(w, r, "GetLineItems", "Failed to compute line items", err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// =============================================================================
// RISK HANDLERS
// =============================================================================

// ListRisks returns the ranked alerts of every detector.
func (h *Handler) ListRisks(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Engine.RiskAlerts(r.Context())
	if err != nil {
		h.fail(w, r, "ListRisks", "Failed to detect risks", err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) GetScopeCreep(w http.ResponseWriter, r *http.Request) {
	report, err := h.Engine.DetectScopeCreep(r.Context(), projectParam(r))
	if err != nil {
		h.fail(w, r, "GetScopeCreep", "Failed to detect scope creep", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) GetLaborOverruns(w http.ResponseWriter, r *http.Request) {
	report, err := h.Engine.DetectLaborOverruns(r.Context(), projectParam(r))
	if err != nil {
		h.fail(w, r, "GetLaborOverruns", "Failed to detect labor overruns", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) GetBillingLag(w http.ResponseWriter, r *http.Request) {
	report, err := h.Engine.DetectBillingLag(r.Context(), projectParam(r))
	if err != nil {
		h.fail(w, r, "GetBillingLag", "Failed to detect billing lag", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) GetChangeOrderExposure(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Engine.DetectChangeOrderExposure(r.Context(), projectParam(r))
	if err != nil {
		h.fail(w, r, "GetChangeOrderExposure", "Failed to detect change order exposure", err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// =============================================================================
// CHANGE ORDER HANDLERS
// =============================================================================

// GetChangeOrders returns the change-order pipeline.
func (h *Handler) GetChangeOrders(w http.ResponseWriter, r *http.Request) {
	pipeline, err := h.Engine.ChangeOrderPipeline(r.Context(), projectParam(r))
	if err != nil {
		h.fail(w, r, "GetChangeOrders", "Failed to load change orders", err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline)
}

// =============================================================================
// QUERY HANDLER
// =============================================================================

// RunQuery executes one read-only SELECT.
func (h *Handler) RunQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Engine.Query(r.Context(), req.Query)
	if err != nil {
		var iq *margin.InvalidQueryError
		if errors.As(err, &iq) {
			writeError(w, http.StatusBadRequest, "Invalid query", errors.New(iq.Reason))
			return
		}
		h.fail(w, r, "RunQuery", "Query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// HELPERS
// =============================================================================

// projectParam reads the optional ?project= scope. Empty means portfolio.
func projectParam(r *http.Request) margin.ProjectID {
	return margin.ProjectID(strings.TrimSpace(r.URL.Query().Get("project")))
}

// fail maps an engine error to a status. Client errors are not logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, fn, message string, err error) {
	if margin.IsClientError(err) {
		writeError(w, http.StatusBadRequest, message, err)
		return
	}
	config.LogError(h.Log, "api", fn, r.Method+" "+r.URL.Path, nil, err)
	writeError(w, http.StatusInternalServerError, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
