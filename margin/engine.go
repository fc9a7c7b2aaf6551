/*
engine.go - Public operations of the margin engine

PURPOSE:
  Engine is the facade callers use (HTTP handlers, CLI commands, the risk
  scanner). Each method performs all of its reads inside one Store.View
  snapshot, then computes results with the pure functions of this package.

CONCURRENCY:
  Engine holds no mutable state. Every method is safe for concurrent use.
  RiskAlerts runs the four detectors concurrently, each in its own snapshot;
  if any read fails the whole call fails.

SEE ALSO:
  - aggregate.go, breakdown.go, detect.go, rank.go
  - store.go: the snapshot contract
*/
package margin

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Engine computes rollups and risk alerts from a Store. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	store Store
	log   logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. A nil logger keeps the default, which
// discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an engine reading from store. Without WithLogger it logs
// nothing.
func NewEngine(store Store, opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{store: store, log: discard}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("module", "margin")
	return e
}

// read loads the selected collections from one snapshot.
func (e *Engine) read(ctx context.Context, f Filter, tables table) (*dataset, error) {
	var d *dataset
	err := e.store.View(ctx, func(r Reader) error {
		var err error
		d, err = readDataset(ctx, r, f, tables)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	if counts := d.unrecognized(); len(counts) > 0 {
		fields := logrus.Fields{"project_id": f.ProjectID}
		for k, n := range counts {
			fields[k] = n
		}
		e.log.WithFields(fields).Debug("unrecognized status values kept verbatim")
	}
	return d, nil
}

// =============================================================================
// AGGREGATION
// =============================================================================

// PortfolioSummary rolls up every contracted project. Billed uses only each
// project's latest application.
func (e *Engine) PortfolioSummary(ctx context.Context) (PortfolioSummary, error) {
	d, err := e.read(ctx, Filter{}, tableContracts|tableLineBudgets|tableLabor|
		tableMaterials|tableChangeOrders|tableLatestBilling|tableScopeCreep)
	if err != nil {
		return PortfolioSummary{}, err
	}
	return portfolioSummary(d), nil
}

// ProjectSummaries returns one summary per contracted project, ordered by id.
func (e *Engine) ProjectSummaries(ctx context.Context) ([]ProjectSummary, error) {
	d, err := e.read(ctx, Filter{}, tableAll&^tableScheduleLines)
	if err != nil {
		return nil, err
	}
	return projectSummaries(d), nil
}

// LineItemBreakdown returns per-line metrics ordered by line number. An
// unknown project yields an empty list, not an error.
func (e *Engine) LineItemBreakdown(ctx context.Context, id ProjectID) ([]LineItemMetrics, error) {
	if id == "" {
		return []LineItemMetrics{}, nil
	}
	d, err := e.read(ctx, ForProject(id), tableContracts|tableScheduleLines|
		tableLineBudgets|tableLabor|tableMaterials|tableLatestLineItems)
	if err != nil {
		return nil, err
	}
	if len(d.contracts) == 0 {
		e.log.WithField("project_id", id).Debug("line item breakdown for unknown project")
		return []LineItemMetrics{}, nil
	}
	return lineItemBreakdown(d), nil
}

// ProjectDetails returns nil for a project without a contract.
func (e *Engine) ProjectDetails(ctx context.Context, id ProjectID) (*ProjectDetails, error) {
	if id == "" {
		return nil, nil
	}
	d, err := e.read(ctx, ForProject(id), tableAll)
	if err != nil {
		return nil, err
	}
	return projectDetails(d), nil
}

// ChangeOrderPipeline lists change orders with status and reason totals. An
// empty id covers the whole portfolio.
func (e *Engine) ChangeOrderPipeline(ctx context.Context, id ProjectID) (ChangeOrderPipeline, error) {
	d, err := e.read(ctx, ForProject(id), tableContracts|tableChangeOrders)
	if err != nil {
		return ChangeOrderPipeline{}, err
	}
	return changeOrderPipeline(d), nil
}

// =============================================================================
// DETECTION
// =============================================================================

// Each Detect method accepts an empty id for the whole portfolio.

// DetectScopeCreep returns every scope creep item with recoverable, absorbed
// and pending subtotals, plus the ranked project alerts.
func (e *Engine) DetectScopeCreep(ctx context.Context, id ProjectID) (ScopeCreepReport, error) {
	d, err := e.read(ctx, ForProject(id), tableContracts|tableScopeCreep)
	if err != nil {
		return ScopeCreepReport{}, err
	}
	r := scopeCreepReport(d)
	r.Alerts = RankAlerts(r.Alerts)
	return r, nil
}

// DetectLaborOverruns compares actual and budgeted labor per schedule line
// and per project.
func (e *Engine) DetectLaborOverruns(ctx context.Context, id ProjectID) (LaborOverrunReport, error) {
	d, err := e.read(ctx, ForProject(id), tableContracts|tableScheduleLines|tableLineBudgets|tableLabor)
	if err != nil {
		return LaborOverrunReport{}, err
	}
	r := laborOverrunReport(d)
	r.Alerts = RankAlerts(r.Alerts)
	return r, nil
}

// DetectBillingLag compares actual cost to the latest billed amount. Line rows
// are included only when scoped to one project.
func (e *Engine) DetectBillingLag(ctx context.Context, id ProjectID) (BillingLagReport, error) {
	d, err := e.read(ctx, ForProject(id), tableContracts|tableScheduleLines|
		tableLabor|tableMaterials|tableLatestBilling|tableLatestLineItems)
	if err != nil {
		return BillingLagReport{}, err
	}
	r := billingLagReport(d)
	r.Alerts = RankAlerts(r.Alerts)
	return r, nil
}

// DetectChangeOrderExposure returns ranked pending change-order alerts.
func (e *Engine) DetectChangeOrderExposure(ctx context.Context, id ProjectID) ([]RiskAlert, error) {
	d, err := e.read(ctx, ForProject(id), tableContracts|tableChangeOrders)
	if err != nil {
		return nil, err
	}
	return RankAlerts(changeOrderExposureAlerts(d)), nil
}

type detector struct {
	name   AlertType
	tables table
	run    func(*dataset) []RiskAlert
}

// detectors lists the four detectors in emission order.
var detectors = []detector{
	{AlertScopeCreep, tableContracts | tableScopeCreep, scopeCreepAlerts},
	{AlertLaborOverrun, tableContracts | tableLineBudgets | tableLabor, laborOverrunAlerts},
	{AlertBillingLag, tableContracts | tableLabor | tableMaterials | tableLatestBilling, billingLagAlerts},
	{AlertPendingCO, tableContracts | tableChangeOrders, changeOrderExposureAlerts},
}

// RiskAlerts runs every detector over the whole portfolio and ranks the
// concatenated result.
func (e *Engine) RiskAlerts(ctx context.Context) ([]RiskAlert, error) {
	start := time.Now()
	results := make([][]RiskAlert, len(detectors))

	g, gctx := errgroup.WithContext(ctx)
	for i, det := range detectors {
		i, det := i, det
		g.Go(func() error {
			d, err := e.read(gctx, Filter{}, det.tables)
			if err != nil {
				return fmt.Errorf("%s detector: %w", det.name, err)
			}
			results[i] = det.run(d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []RiskAlert
	for _, r := range results {
		all = append(all, r...)
	}
	ranked := RankAlerts(all)
	e.log.WithFields(logrus.Fields{
		"func":     "RiskAlerts",
		"alerts":   len(ranked),
		"duration": time.Since(start).String(),
	}).Debug("risk detection complete")
	return ranked, nil
}

// =============================================================================
// AD HOC QUERY
// =============================================================================

// Query validates that query is a single SELECT and forwards it unchanged to
// the store. Rejections are *InvalidQueryError.
func (e *Engine) Query(ctx context.Context, query string) (QueryResult, error) {
	queryID := uuid.NewString()
	log := e.log.WithFields(logrus.Fields{"func": "Query", "query_id": queryID})

	if err := ValidateReadOnly(query); err != nil {
		log.WithError(err).Warn("rejected ad hoc query")
		return QueryResult{}, err
	}

	res, err := e.store.Query(ctx, query)
	if err != nil {
		return QueryResult{}, err
	}
	res.QueryID = queryID
	log.WithField("rows", res.RowCount).Info("ad hoc query executed")
	return res, nil
}
