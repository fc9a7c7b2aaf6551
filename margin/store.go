/*
store.go - Record Store Adapter interfaces

PURPOSE:
  The engine never talks to a database directly. It reads the nine entity
  collections through a Reader obtained from Store.View, which guarantees one
  consistent snapshot for every read issued inside the callback.

SNAPSHOT SEMANTICS:
  A portfolio summary is assembled from several collection reads. If a write
  lands between two of them, totals disagree with each other. Every public
  engine operation therefore performs all of its reads inside a single View.
  Separate calls are not consistent with each other, and need not be.

IMPLEMENTATIONS:
  - margin/store: in-memory, for tests and demos
  - store/sqlstore: SQLite and PostgreSQL

SEE ALSO:
  - engine.go: issues reads inside View
  - query.go: validates ad hoc queries before Store.Query
*/
package margin

import "context"

// Filter restricts reads to one project. The zero value means the whole portfolio.
type Filter struct {
	ProjectID ProjectID
}

// ForProject scopes to one project. An empty id scopes to the whole portfolio.
func ForProject(id ProjectID) Filter {
	return Filter{ProjectID: id}
}

// Scoped reports whether the filter targets a single project.
func (f Filter) Scoped() bool {
	return f.ProjectID != ""
}

// Matches reports whether a record of project id passes the filter.
func (f Filter) Matches(id ProjectID) bool {
	return f.ProjectID == "" || f.ProjectID == id
}

// Reader reads entity collections from one consistent snapshot.
// Results are ordered by project id, then by the collection's natural key.
type Reader interface {
	Contracts(ctx context.Context, f Filter) ([]Contract, error)
	ScheduleLines(ctx context.Context, f Filter) ([]ScheduleLine, error)
	LineBudgets(ctx context.Context, f Filter) ([]LineBudget, error)
	LaborEntries(ctx context.Context, f Filter) ([]LaborEntry, error)
	MaterialDeliveries(ctx context.Context, f Filter) ([]MaterialDelivery, error)
	ChangeOrders(ctx context.Context, f Filter) ([]ChangeOrder, error)
	BillingApplications(ctx context.Context, f Filter) ([]BillingApplication, error)
	BillingLineItems(ctx context.Context, f Filter) ([]BillingLineItem, error)
	ScopeCreepCandidates(ctx context.Context, f Filter) ([]ScopeCreepCandidate, error)

	// LatestBillingApplications returns one row per project: the highest
	// application number.
	LatestBillingApplications(ctx context.Context, f Filter) ([]BillingApplication, error)

	// LatestBillingLineItems returns the line items of each project's highest
	// application number among its billing line items.
	LatestBillingLineItems(ctx context.Context, f Filter) ([]BillingLineItem, error)
}

// Store provides snapshot reads and raw read-only queries.
type Store interface {
	// View runs fn against one consistent snapshot.
	View(ctx context.Context, fn func(Reader) error) error

	// Query executes a raw read. Callers validate the query first.
	Query(ctx context.Context, query string) (QueryResult, error)
}

// Writer replaces the whole contents of a store. Used for ingestion and
// fixtures only; the engine never writes.
type Writer interface {
	Replace(ctx context.Context, recs Records) error
}

// QueryResult holds the rows of an ad hoc query.
type QueryResult struct {
	QueryID  string           `json:"query_id,omitempty"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}
